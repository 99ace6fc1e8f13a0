package timing

import "fmt"

// Variant identifies which chip family a subdevice belongs to.
type Variant string

// Chip variants.
const (
	VariantDecoder Variant = "decoder" // AD9984A analog VGA decoder, one source pad
	VariantBridge  Variant = "bridge"  // TC358748 parallel-to-CSI2 bridge, sink + source pads
)

// ParseVariant validates a variant name from configuration.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantDecoder, VariantBridge:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("unknown variant %q (want %q or %q)", s, VariantDecoder, VariantBridge)
	}
}
