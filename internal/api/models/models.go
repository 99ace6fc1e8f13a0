// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/format"
	"github.com/smazurov/signalnode/internal/logging"
	"github.com/smazurov/signalnode/internal/subdev"
	"github.com/smazurov/signalnode/internal/timing"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionData struct {
	Name      string `json:"name" example:"signalnode" doc:"Service name"`
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Subdevice models

// SubdevicePath selects a subdevice by name.
type SubdevicePath struct {
	Name string `path:"name" example:"vga" doc:"Subdevice name"`
}

type SubdeviceSummary struct {
	Name       string         `json:"name" example:"vga" doc:"Subdevice name"`
	InstanceID string         `json:"instance_id" doc:"Instance identifier assigned at registration"`
	Variant    timing.Variant `json:"variant" example:"decoder" doc:"Chip variant"`
	State      subdev.State   `json:"state" example:"streaming" doc:"Streaming state"`
	Signal     string         `json:"signal" example:"640x480@60" doc:"Summary of the published timing"`
}

type SubdeviceListResponse struct {
	Body struct {
		Subdevices []SubdeviceSummary `json:"subdevices" doc:"Registered subdevices"`
		Count      int                `json:"count" example:"2" doc:"Number of subdevices"`
	}
}

type SubdeviceData struct {
	SubdeviceSummary
	Pads   []subdev.Pad      `json:"pads" doc:"Media pads"`
	Timing timing.Descriptor `json:"timing" doc:"Latest published timing"`
}

type SubdeviceResponse struct {
	Body SubdeviceData
}

type StreamRequest struct {
	SubdevicePath
	Body struct {
		Streaming bool `json:"streaming" example:"true" doc:"Whether the subdevice should stream"`
	}
}

type TimingResponse struct {
	Body timing.Descriptor
}

// Control models

type ControlPath struct {
	SubdevicePath
	Control string `path:"control" example:"framerate" doc:"Control name or numeric ID"`
}

type ControlSetRequest struct {
	ControlPath
	Body struct {
		Value int64 `json:"value" example:"1" doc:"New value"`
	}
}

type ControlListResponse struct {
	Body struct {
		Controls []controls.Value `json:"controls" doc:"Controls with current values"`
	}
}

type ControlResponse struct {
	Body controls.Value
}

// Format models

type PadPath struct {
	SubdevicePath
	Pad uint32 `path:"pad" example:"0" doc:"Pad index"`
}

type FormatSetRequest struct {
	PadPath
	Body format.MBusFormat
}

type FormatResponse struct {
	Body format.MBusFormat
}

type MBusCodesResponse struct {
	Body struct {
		Codes []uint32 `json:"codes" doc:"Supported media bus codes"`
	}
}

type FrameSizesResponse struct {
	Body struct {
		Sizes []format.FrameSize `json:"sizes" doc:"Supported frame sizes"`
	}
}

type FrameIntervalResponse struct {
	Body struct {
		format.Fraction
		Text string `json:"text" example:"1/60" doc:"Interval as a fraction"`
	}
}

type DVTimingsResponse struct {
	Body format.DVTimings
}

// Topology models

type LinksResponse struct {
	Body struct {
		Links []subdev.Link `json:"links" doc:"Pad links between subdevices"`
	}
}

// Runtime models

type DebugData struct {
	Enabled bool `json:"enabled" example:"false" doc:"Process-wide debug output"`
}

type DebugRequest struct {
	Body DebugData
}

type DebugResponse struct {
	Body DebugData
}

type LoggingLevelsResponse struct {
	Body struct {
		Modules []logging.ModuleLevel `json:"modules" doc:"Module loggers and their levels"`
	}
}

type LoggingLevelRequest struct {
	Module string `path:"module" example:"subdev" doc:"Logger module"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}

type LoggingModulePath struct {
	Module string `path:"module" example:"subdev" doc:"Logger module"`
}

type LEDResponse struct {
	Body struct {
		Device string `json:"device" example:"ACT" doc:"LED device, empty when no LED is wired"`
		State  string `json:"state" example:"solid" doc:"Indicator state: off, solid or blink"`
	}
}
