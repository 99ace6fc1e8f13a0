package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/signalnode/internal/api/models"
	"github.com/smazurov/signalnode/internal/logging"
)

// registerRuntimeRoutes registers the debug flag, logging levels and LED status.
func (s *Server) registerRuntimeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-debug",
		Method:      http.MethodGet,
		Path:        "/api/debug",
		Summary:     "Get Debug Flag",
		Description: "Get the process-wide debug_enable flag shared by every subdevice",
		Tags:        []string{"runtime"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.DebugResponse, error) {
		return &models.DebugResponse{Body: models.DebugData{Enabled: s.options.Debug.Enabled()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-debug",
		Method:      http.MethodPut,
		Path:        "/api/debug",
		Summary:     "Set Debug Flag",
		Description: "Turn verbose detection logging on or off for every subdevice",
		Tags:        []string{"runtime"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(_ context.Context, input *models.DebugRequest) (*models.DebugResponse, error) {
		s.options.Debug.Set(input.Body.Enabled)
		return &models.DebugResponse{Body: models.DebugData{Enabled: s.options.Debug.Enabled()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-logging-levels",
		Method:      http.MethodGet,
		Path:        "/api/logging",
		Summary:     "List Logging Levels",
		Description: "List module loggers and their current levels",
		Tags:        []string{"runtime"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LoggingLevelsResponse, error) {
		resp := &models.LoggingLevelsResponse{}
		resp.Body.Modules = logging.ModuleLevels()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-logging-level",
		Method:      http.MethodPut,
		Path:        "/api/logging/{module}",
		Summary:     "Set Logging Level",
		Description: "Override one module's level until the next config reload or reset",
		Tags:        []string{"runtime"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(_ context.Context, input *models.LoggingLevelRequest) (*models.LoggingLevelsResponse, error) {
		if err := logging.SetModuleLevel(input.Module, input.Body.Level); err != nil {
			return nil, huma.Error400BadRequest(err.Error(), err)
		}
		s.logger.Info("Logging level changed", "target", input.Module, "level", input.Body.Level)
		resp := &models.LoggingLevelsResponse{}
		resp.Body.Modules = logging.ModuleLevels()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reset-logging-level",
		Method:      http.MethodDelete,
		Path:        "/api/logging/{module}",
		Summary:     "Reset Logging Level",
		Description: "Restore one module to its configured level",
		Tags:        []string{"runtime"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LoggingModulePath) (*models.LoggingLevelsResponse, error) {
		logging.ResetModuleLevel(input.Module)
		resp := &models.LoggingLevelsResponse{}
		resp.Body.Modules = logging.ModuleLevels()
		return resp, nil
	})

	if s.options.LED == nil {
		s.logger.Debug("LED status not available, skipping LED route")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led",
		Method:      http.MethodGet,
		Path:        "/api/led",
		Summary:     "Get LED State",
		Description: "Get the status LED state: off when nothing streams, solid when every streaming subdevice has a signal, blink otherwise",
		Tags:        []string{"runtime"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LEDResponse, error) {
		resp := &models.LEDResponse{}
		resp.Body.Device = s.options.LED.Device()
		resp.Body.State = s.options.LED.State()
		return resp, nil
	})
}
