package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/signalnode/internal/events"
)

// sseKeepalive is how often an idle event stream sends a heartbeat.
const sseKeepalive = 30 * time.Second

// HeartbeatEvent keeps idle event streams open through proxies.
type HeartbeatEvent struct {
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of streaming transitions, timing changes, detection failures and registrations",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stream-state-changed": events.StreamStateChangedEvent{},
		"timing-changed":       events.TimingChangedEvent{},
		"detection-failed":     events.DetectionFailedEvent{},
		"debug-toggled":        events.DebugToggledEvent{},
		"subdevice-registered": events.SubdeviceRegisteredEvent{},
		"heartbeat":            HeartbeatEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribe := events.SubscribeAllToChannel(s.eventBus, eventCh)
		defer unsubscribe()

		// Current state first so clients need no separate fetch.
		for _, sd := range s.host.List() {
			initial := events.StreamStateChangedEvent{
				Subdevice: sd.Name(),
				Streaming: sd.Streaming(),
				Signal:    sd.Snapshot().SignalPresent,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
			if err := send.Data(initial); err != nil {
				return
			}
		}

		ticker := time.NewTicker(sseKeepalive)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			case t := <-ticker.C:
				if err := send.Data(HeartbeatEvent{Timestamp: t.UTC().Format(time.RFC3339)}); err != nil {
					return
				}
			}
		}
	})
}
