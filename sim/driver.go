package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// TickInfo is the item carried by the before- and after-tick hooks.
type TickInfo struct {
	Tick     uint64
	Progress bool
}

// A Driver runs an ordered list of phases once per tick. Phases never run
// concurrently with each other; the order of the phases is the only ordering
// constraint between them.
type Driver struct {
	HookableBase
	sync.Mutex

	name   string
	freq   Freq
	phases []*Phase

	now    atomic.Uint64
	paused atomic.Bool
}

// DriverBuilder can build drivers.
type DriverBuilder struct {
	freq Freq
}

// MakeDriverBuilder creates a DriverBuilder with a 30Hz tick rate.
func MakeDriverBuilder() DriverBuilder {
	return DriverBuilder{freq: 30 * Hz}
}

// WithFreq sets the tick rate.
func (b DriverBuilder) WithFreq(f Freq) DriverBuilder {
	b.freq = f
	return b
}

// Build creates a driver with no phases.
func (b DriverBuilder) Build(name string) *Driver {
	if b.freq <= 0 {
		panic("driver frequency must be positive")
	}

	return &Driver{
		name: name,
		freq: b.freq,
	}
}

// Name returns the name of the driver.
func (d *Driver) Name() string {
	return d.name
}

// Freq returns the tick rate of the driver.
func (d *Driver) Freq() Freq {
	return d.freq
}

// AddPhase appends a phase. Phases run in the order they are added.
func (d *Driver) AddPhase(p *Phase) {
	for _, existing := range d.phases {
		if existing.Name() == p.Name() {
			panic(fmt.Sprintf("phase %s already added to %s", p.Name(), d.name))
		}
	}

	d.phases = append(d.phases, p)
}

// Phases returns the phases in execution order.
func (d *Driver) Phases() []*Phase {
	return d.phases
}

// CurrentTick returns the number of ticks completed so far.
func (d *Driver) CurrentTick() uint64 {
	return d.now.Load()
}

// Tick runs every phase once. It returns true if any phase made progress.
func (d *Driver) Tick() bool {
	d.Lock()
	defer d.Unlock()

	now := d.now.Load()

	if d.NumHooks() > 0 {
		d.InvokeHook(HookCtx{
			Domain: d,
			Pos:    HookPosBeforeTick,
			Item:   TickInfo{Tick: now},
		})
	}

	progress := false
	for _, p := range d.phases {
		if p.Tick() {
			progress = true
		}
	}

	d.now.Add(1)

	if d.NumHooks() > 0 {
		d.InvokeHook(HookCtx{
			Domain: d,
			Pos:    HookPosAfterTick,
			Item:   TickInfo{Tick: now, Progress: progress},
		})
	}

	return progress
}

// Run ticks the driver at its frequency until the context is done. Ticks are
// skipped while the driver is paused.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.freq.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if d.paused.Load() {
				continue
			}

			d.Tick()
		}
	}
}

// Pause stops Run from ticking until Continue is called.
func (d *Driver) Pause() {
	d.paused.Store(true)
}

// Continue resumes a paused driver.
func (d *Driver) Continue() {
	d.paused.Store(false)
}

// Paused tells if the driver is paused.
func (d *Driver) Paused() bool {
	return d.paused.Load()
}
