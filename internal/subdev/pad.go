package subdev

import "github.com/smazurov/signalnode/internal/timing"

// Direction is the flow of video through a pad.
type Direction string

// Pad directions.
const (
	DirectionSink   Direction = "sink"
	DirectionSource Direction = "source"
)

// Pad is one media pad of a subdevice.
type Pad struct {
	Index     uint32    `json:"index" doc:"Pad index"`
	Direction Direction `json:"direction" enum:"sink,source" doc:"Pad direction"`
}

// padsFor returns the fixed pad layout of a chip variant. The decoder
// originates video on a single source pad; the bridge relays sink to source.
func padsFor(variant timing.Variant) []Pad {
	if variant == timing.VariantBridge {
		return []Pad{
			{Index: 0, Direction: DirectionSink},
			{Index: 1, Direction: DirectionSource},
		}
	}
	return []Pad{{Index: 0, Direction: DirectionSource}}
}
