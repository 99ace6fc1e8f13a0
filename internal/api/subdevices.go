package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/signalnode/internal/api/models"
	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/format"
	"github.com/smazurov/signalnode/internal/subdev"
)

func summarize(sd *subdev.Subdevice) models.SubdeviceSummary {
	return models.SubdeviceSummary{
		Name:       sd.Name(),
		InstanceID: sd.InstanceID(),
		Variant:    sd.Variant(),
		State:      sd.State(),
		Signal:     sd.Snapshot().String(),
	}
}

func (s *Server) subdeviceData(sd *subdev.Subdevice) models.SubdeviceData {
	return models.SubdeviceData{
		SubdeviceSummary: summarize(sd),
		Pads:             sd.Pads(),
		Timing:           sd.Snapshot(),
	}
}

func (s *Server) lookup(name string) (*subdev.Subdevice, error) {
	sd, err := s.host.Get(name)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return sd, nil
}

func (s *Server) registerSubdeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-subdevices",
		Method:      http.MethodGet,
		Path:        "/api/subdevices",
		Summary:     "List Subdevices",
		Description: "List registered subdevices with their state and current signal",
		Tags:        []string{"subdevices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SubdeviceListResponse, error) {
		resp := &models.SubdeviceListResponse{}
		resp.Body.Subdevices = []models.SubdeviceSummary{}
		for _, sd := range s.host.List() {
			resp.Body.Subdevices = append(resp.Body.Subdevices, summarize(sd))
		}
		resp.Body.Count = len(resp.Body.Subdevices)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-subdevice",
		Method:      http.MethodGet,
		Path:        "/api/subdevices/{name}",
		Summary:     "Get Subdevice",
		Description: "Get a subdevice with its pads and latest published timing",
		Tags:        []string{"subdevices"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.SubdevicePath) (*models.SubdeviceResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		return &models.SubdeviceResponse{Body: s.subdeviceData(sd)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-subdevice-stream",
		Method:      http.MethodPut,
		Path:        "/api/subdevices/{name}/stream",
		Summary:     "Set Streaming",
		Description: "Start or stop streaming. Starting runs detection; a failed detection leaves the subdevice idle.",
		Tags:        []string{"subdevices"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 503},
	}, func(ctx context.Context, input *models.StreamRequest) (*models.SubdeviceResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		if input.Body.Streaming {
			err = sd.Enable(ctx)
		} else {
			err = sd.Disable(ctx)
		}
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.SubdeviceResponse{Body: s.subdeviceData(sd)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "redetect-subdevice",
		Method:      http.MethodPost,
		Path:        "/api/subdevices/{name}/redetect",
		Summary:     "Re-detect",
		Description: "Run detection again on a streaming subdevice and publish the result",
		Tags:        []string{"subdevices"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 503},
	}, func(ctx context.Context, input *models.SubdevicePath) (*models.TimingResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		d, err := sd.Redetect(ctx)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.TimingResponse{Body: d}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-subdevice-timing",
		Method:      http.MethodGet,
		Path:        "/api/subdevices/{name}/timing",
		Summary:     "Get Timing",
		Description: "Get the latest published timing descriptor",
		Tags:        []string{"subdevices"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.SubdevicePath) (*models.TimingResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		return &models.TimingResponse{Body: sd.Snapshot()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-links",
		Method:      http.MethodGet,
		Path:        "/api/links",
		Summary:     "List Links",
		Description: "List pad links between subdevices",
		Tags:        []string{"subdevices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LinksResponse, error) {
		resp := &models.LinksResponse{}
		resp.Body.Links = s.host.Links()
		if resp.Body.Links == nil {
			resp.Body.Links = []subdev.Link{}
		}
		return resp, nil
	})
}

// control resolves a control by name, or by numeric ID when the path
// segment parses as one.
func control(surface *controls.Surface, key string) (controls.Value, error) {
	if id, err := strconv.ParseUint(key, 0, 32); err == nil {
		return surface.GetByID(uint32(id))
	}
	return surface.Get(key)
}

func (s *Server) registerControlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-controls",
		Method:      http.MethodGet,
		Path:        "/api/subdevices/{name}/controls",
		Summary:     "List Controls",
		Description: "List the controls of a subdevice with their current values",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.SubdevicePath) (*models.ControlListResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		resp := &models.ControlListResponse{}
		resp.Body.Controls = sd.Controls().List()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-control",
		Method:      http.MethodGet,
		Path:        "/api/subdevices/{name}/controls/{control}",
		Summary:     "Get Control",
		Description: "Read one control by name or ID",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(_ context.Context, input *models.ControlPath) (*models.ControlResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		v, err := control(sd.Controls(), input.Control)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.ControlResponse{Body: v}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-control",
		Method:      http.MethodPut,
		Path:        "/api/subdevices/{name}/controls/{control}",
		Summary:     "Set Control",
		Description: "Write a control. Only debug_enable is writable; detected values are read-only.",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 403, 404},
	}, func(_ context.Context, input *models.ControlSetRequest) (*models.ControlResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		surface := sd.Controls()
		current, err := control(surface, input.Control)
		if err != nil {
			return nil, toHTTPError(err)
		}
		if err := surface.SetByID(current.ID, input.Body.Value); err != nil {
			return nil, toHTTPError(err)
		}
		v, err := surface.GetByID(current.ID)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.ControlResponse{Body: v}, nil
	})
}

func (s *Server) registerFormatRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pad-format",
		Method:      http.MethodGet,
		Path:        "/api/subdevices/{name}/pads/{pad}/format",
		Summary:     "Get Pad Format",
		Description: "Get the media bus format implied by the detected signal",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(_ context.Context, input *models.PadPath) (*models.FormatResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		f, err := sd.Formats().GetFormat(input.Pad)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.FormatResponse{Body: f}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-pad-format",
		Method:      http.MethodPut,
		Path:        "/api/subdevices/{name}/pads/{pad}/format",
		Summary:     "Set Pad Format",
		Description: "Request a format. The chips cannot be configured, so the detected format is returned.",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(_ context.Context, input *models.FormatSetRequest) (*models.FormatResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		f, err := sd.Formats().SetFormat(input.Pad, input.Body)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.FormatResponse{Body: f}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-mbus-codes",
		Method:      http.MethodGet,
		Path:        "/api/subdevices/{name}/pads/{pad}/mbus-codes",
		Summary:     "List Media Bus Codes",
		Description: "Enumerate the media bus codes a pad supports",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(_ context.Context, input *models.PadPath) (*models.MBusCodesResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		codes, err := enumerate(func(i uint32) (uint32, error) { return sd.Formats().EnumMBusCode(input.Pad, i) })
		if err != nil {
			return nil, toHTTPError(err)
		}
		resp := &models.MBusCodesResponse{}
		resp.Body.Codes = codes
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-frame-sizes",
		Method:      http.MethodGet,
		Path:        "/api/subdevices/{name}/pads/{pad}/frame-sizes",
		Summary:     "List Frame Sizes",
		Description: "Enumerate the frame sizes a pad supports",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(_ context.Context, input *models.PadPath) (*models.FrameSizesResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		sizes, err := enumerate(func(i uint32) (format.FrameSize, error) { return sd.Formats().EnumFrameSize(input.Pad, i) })
		if err != nil {
			return nil, toHTTPError(err)
		}
		resp := &models.FrameSizesResponse{}
		resp.Body.Sizes = sizes
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-frame-interval",
		Method:      http.MethodGet,
		Path:        "/api/subdevices/{name}/frame-interval",
		Summary:     "Get Frame Interval",
		Description: "Get the frame interval of the detected signal",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.SubdevicePath) (*models.FrameIntervalResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		resp := &models.FrameIntervalResponse{}
		resp.Body.Fraction = sd.Formats().FrameInterval()
		resp.Body.Text = resp.Body.Fraction.String()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "query-dv-timings",
		Method:      http.MethodGet,
		Path:        "/api/subdevices/{name}/dv-timings",
		Summary:     "Query DV Timings",
		Description: "Get the detected timing in BT form",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.SubdevicePath) (*models.DVTimingsResponse, error) {
		sd, err := s.lookup(input.Name)
		if err != nil {
			return nil, err
		}
		return &models.DVTimingsResponse{Body: sd.Formats().QueryDVTimings()}, nil
	})
}

// enumerate calls next with increasing indexes until it reports OUT_OF_RANGE.
func enumerate[T any](next func(index uint32) (T, error)) ([]T, error) {
	out := []T{}
	for i := uint32(0); ; i++ {
		v, err := next(i)
		if fault.CodeOf(err) == fault.CodeOutOfRange {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}
