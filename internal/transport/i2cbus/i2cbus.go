// Package i2cbus reads chip registers over Linux I2C through periph.
package i2cbus

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// RegWidth is the size of a register address on the wire.
type RegWidth int

// Register address widths.
const (
	Reg8  RegWidth = 1 // AD9984A
	Reg16 RegWidth = 2 // TC358748
)

var initOnce = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// Bus is one chip on an I2C bus.
type Bus struct {
	mu       sync.Mutex
	bus      i2c.BusCloser
	dev      *i2c.Dev
	regWidth RegWidth
}

// Open opens busName ("1", "/dev/i2c-1", or a periph alias) and addresses
// the chip at addr.
func Open(busName string, addr uint16, width RegWidth) (*Bus, error) {
	if err := initOnce(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host drivers: %w", err)
	}
	if width != Reg8 && width != Reg16 {
		return nil, fmt.Errorf("unsupported register width %d", width)
	}
	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %s: %w", busName, err)
	}
	return newBus(b, addr, width), nil
}

func newBus(b i2c.BusCloser, addr uint16, width RegWidth) *Bus {
	return &Bus{
		bus:      b,
		dev:      &i2c.Dev{Bus: b, Addr: addr},
		regWidth: width,
	}
}

// ReadRegisters writes the register address then reads len(buf) bytes in a
// single combined transaction.
func (b *Bus) ReadRegisters(ctx context.Context, reg uint16, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var addr []byte
	switch b.regWidth {
	case Reg8:
		if reg > 0xff {
			return fmt.Errorf("register 0x%x exceeds 8-bit address space", reg)
		}
		addr = []byte{byte(reg)}
	default:
		addr = []byte{byte(reg >> 8), byte(reg)}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.dev.Tx(addr, buf); err != nil {
		return fmt.Errorf("i2c read 0x%02x@0x%x: %w", b.dev.Addr, reg, err)
	}
	return nil
}

// Close releases the bus.
func (b *Bus) Close() error {
	return b.bus.Close()
}
