// Package simbus simulates the register and sync-pulse transports of the
// S4 chips so detection can run without hardware.
package simbus

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/smazurov/signalnode/internal/timing"
	"github.com/smazurov/signalnode/internal/transport"
)

// Bus is an in-memory register file. Unset registers read as zero.
type Bus struct {
	mu    sync.Mutex
	regs  map[uint16]byte
	err   error
	delay time.Duration
	reads int
}

// New returns an empty register file.
func New() *Bus {
	return &Bus{regs: make(map[uint16]byte)}
}

// Set writes consecutive byte registers starting at reg.
func (b *Bus) Set(reg uint16, vals ...byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range vals {
		b.regs[reg+uint16(i)] = v
	}
}

// Set16 writes a big-endian 16-bit register.
func (b *Bus) Set16(reg, val uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], val)
	b.Set(reg, buf[:]...)
}

// FailWith makes every subsequent read return err. Pass nil to recover.
func (b *Bus) FailWith(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// SetDelay makes every read block for d, or until its context ends.
func (b *Bus) SetDelay(d time.Duration) {
	b.mu.Lock()
	b.delay = d
	b.mu.Unlock()
}

// Reads returns the number of ReadRegisters calls served.
func (b *Bus) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

// ReadRegisters implements detect.Transport.
func (b *Bus) ReadRegisters(ctx context.Context, reg uint16, buf []byte) error {
	b.mu.Lock()
	delay, err := b.delay, b.err
	b.reads++
	b.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range buf {
		buf[i] = b.regs[reg+uint16(i)]
	}
	return nil
}

// PulseTimer reports a configurable sync period.
type PulseTimer struct {
	mu     sync.Mutex
	period time.Duration
	jitter time.Duration
	flip   bool
	err    error
}

// NewPulseTimer returns a timer reporting period. A zero period means no
// pulses arrive.
func NewPulseTimer(period time.Duration) *PulseTimer {
	return &PulseTimer{period: period}
}

// PeriodFor returns the frame period of a refresh rate.
func PeriodFor(refreshHz uint32) time.Duration {
	if refreshHz == 0 {
		return 0
	}
	return time.Second / time.Duration(refreshHz)
}

// SetPeriod changes the reported period.
func (p *PulseTimer) SetPeriod(period time.Duration) {
	p.mu.Lock()
	p.period = period
	p.mu.Unlock()
}

// SetJitter makes successive readings alternate between period+j and period-j.
func (p *PulseTimer) SetJitter(j time.Duration) {
	p.mu.Lock()
	p.jitter = j
	p.mu.Unlock()
}

// FailWith makes every subsequent measurement return err.
func (p *PulseTimer) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Period implements detect.PulseTimer.
func (p *PulseTimer) Period(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	if p.period <= 0 {
		return 0, transport.ErrNoPulses
	}
	p.flip = !p.flip
	if p.flip {
		return p.period + p.jitter, nil
	}
	return p.period - p.jitter, nil
}

// AD9984A register addresses mirrored from the chip datasheet.
const (
	ad9984aRegSyncDetect    = 0x24
	ad9984aRegLinesPerFrame = 0x26
	ad9984aSyncActive       = 0xb0 // HSYNC0, VSYNC0, VSYNC1
)

// LoadAD9984A programs the status block of an AD9984A locked onto m and
// sets the pulse timer to its refresh rate.
func LoadAD9984A(b *Bus, vsync *PulseTimer, m timing.Mode) {
	lines := m.TotalLines()
	b.Set(ad9984aRegSyncDetect, ad9984aSyncActive, 0x00)
	b.Set(ad9984aRegLinesPerFrame, byte(lines>>8)&0x0f, byte(lines))
	if vsync != nil {
		vsync.SetPeriod(PeriodFor(m.Refresh))
	}
}

// UnplugAD9984A clears the sync-detect status, as when the cable is removed.
func UnplugAD9984A(b *Bus, vsync *PulseTimer) {
	b.Set(ad9984aRegSyncDetect, 0x00, 0x00, 0x00, 0x00)
	if vsync != nil {
		vsync.SetPeriod(0)
	}
}

// TC358748 register addresses mirrored from the chip datasheet.
const (
	tc358748RegChipID    = 0x0000
	tc358748RegConfCtl   = 0x0004
	tc358748RegPLLCtl0   = 0x0016
	tc358748RegPLLCtl1   = 0x0018
	tc358748RegInLines   = 0x00e0
	tc358748RegInWidth   = 0x00e2
	tc358748RegCSIStatus = 0x0410

	// TC358748PLLTimes10 selects PRD=0, FBD=9: ten times the reference clock.
	TC358748PLLTimes10 = 0x0009
)

// BridgeInput describes what the simulated TC358748 measures on its
// parallel input.
type BridgeInput struct {
	Width, Lines uint16
	Refresh      uint32
	Enabled      bool // parallel port enabled (CONFCTL.PPEN)
	CSIActive    bool
	PLLLocked    bool
	PLLCtl0      uint16
}

// VGABridgeInput is a TC358748 relaying 640x480@60 with its PLL locked.
func VGABridgeInput() BridgeInput {
	return BridgeInput{
		Width:     640,
		Lines:     480,
		Refresh:   60,
		Enabled:   true,
		CSIActive: true,
		PLLLocked: true,
		PLLCtl0:   TC358748PLLTimes10,
	}
}

// LoadTC358748 programs the TC358748 registers for in.
func LoadTC358748(b *Bus, vsync *PulseTimer, in BridgeInput) {
	b.Set16(tc358748RegChipID, 0x4400)

	var confCtl, pll1, csi uint16
	if in.Enabled {
		confCtl |= 1 << 6
	}
	if in.PLLLocked {
		pll1 |= 1<<15 | 1<<4
	}
	if in.CSIActive {
		csi |= 1 << 1
	}
	b.Set16(tc358748RegConfCtl, confCtl)
	b.Set16(tc358748RegPLLCtl0, in.PLLCtl0)
	b.Set16(tc358748RegPLLCtl1, pll1)
	b.Set16(tc358748RegCSIStatus, csi)
	b.Set16(tc358748RegInLines, in.Lines)
	b.Set16(tc358748RegInWidth, in.Width)
	if vsync != nil {
		vsync.SetPeriod(PeriodFor(in.Refresh))
	}
}
