package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/subdev"
	"github.com/smazurov/signalnode/internal/timing"
)

// Registry resolves subdevices by name.
type Registry interface {
	Get(name string) (*subdev.Subdevice, error)
}

// ControlSubscriber applies stream commands received over NATS.
type ControlSubscriber struct {
	url      string
	registry Registry
	timeout  time.Duration
	conn     *nats.Conn
	sub      *nats.Subscription
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewControlSubscriber creates a subscriber that resolves names in registry.
// timeout bounds each command.
func NewControlSubscriber(url string, registry Registry, timeout time.Duration, logger *slog.Logger) *ControlSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ControlSubscriber{
		url:      url,
		registry: registry,
		timeout:  timeout,
		logger:   logger.With("component", "nats-control"),
	}
}

// Start connects and subscribes to every subdevice control subject.
func (c *ControlSubscriber) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := nats.Connect(c.url,
		nats.Name("signalnode-control"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("NATS control disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(SubjectControlPrefix+".*.stream", c.handle)
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.sub = sub
	c.logger.Info("NATS control subscribed", "subject", sub.Subject)
	return nil
}

func (c *ControlSubscriber) handle(msg *nats.Msg) {
	ctrl, err := unmarshal[ControlMessage](msg.Data)
	if err != nil {
		c.logger.Warn("Failed to unmarshal control message", "error", err, "subject", msg.Subject)
		c.reply(msg, ControlReply{Code: string(fault.CodeInvalidArgument), Error: err.Error()})
		return
	}

	c.logger.Info("Received control command", "action", ctrl.Action, "subdevice", ctrl.Subdevice, "reason", ctrl.Reason)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	d, err := c.apply(ctx, ctrl)
	reply := ControlReply{OK: err == nil, Timing: d}
	if err != nil {
		c.logger.Warn("Control command failed", "action", ctrl.Action, "subdevice", ctrl.Subdevice, "error", err)
		reply.Code = string(fault.CodeOf(err))
		reply.Error = err.Error()
	}
	c.reply(msg, reply)
}

func (c *ControlSubscriber) apply(ctx context.Context, ctrl ControlMessage) (timing.Descriptor, error) {
	sd, err := c.registry.Get(ctrl.Subdevice)
	if err != nil {
		return timing.Descriptor{}, err
	}

	switch ctrl.Action {
	case ActionEnable:
		err = sd.Enable(ctx)
	case ActionDisable:
		err = sd.Disable(ctx)
	case ActionRedetect:
		_, err = sd.Redetect(ctx)
	default:
		return timing.Descriptor{}, fault.New(fault.CodeInvalidArgument, fmt.Sprintf("unknown action %q", ctrl.Action),
			map[string]any{"subdevice": ctrl.Subdevice})
	}
	return sd.Snapshot(), err
}

func (c *ControlSubscriber) reply(msg *nats.Msg, r ControlReply) {
	if msg.Reply == "" {
		return
	}
	data, err := marshal(r)
	if err != nil {
		c.logger.Warn("Failed to marshal control reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		c.logger.Warn("Failed to send control reply", "error", err)
	}
}

// Stop unsubscribes and closes the connection.
func (c *ControlSubscriber) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// ControlPublisher sends stream commands.
type ControlPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewControlPublisher connects a command sender to url.
func NewControlPublisher(url string, logger *slog.Logger) (*ControlPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("signalnode-cli"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, err
	}

	return &ControlPublisher{
		conn:   conn,
		logger: logger.With("component", "nats-control"),
	}, nil
}

// Send issues action to a subdevice and waits for the reply.
func (p *ControlPublisher) Send(ctx context.Context, subdevice, action, reason string) (ControlReply, error) {
	data, err := marshal(ControlMessage{
		Action:    action,
		Subdevice: subdevice,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
	})
	if err != nil {
		return ControlReply{}, err
	}

	msg, err := p.conn.RequestWithContext(ctx, SubjectControl(subdevice), data)
	if err != nil {
		return ControlReply{}, err
	}

	reply, err := unmarshal[ControlReply](msg.Data)
	if err != nil {
		return ControlReply{}, err
	}
	p.logger.Debug("Control command answered", "subdevice", subdevice, "action", action, "ok", reply.OK)
	return reply, nil
}

// Close closes the publisher connection.
func (p *ControlPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
