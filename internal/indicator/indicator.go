// Package indicator drives a single GPIO output (LED or relay) that mirrors
// the busy flag of the status engine.
package indicator

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	appLog "roomstatus/internal/log"
	"roomstatus/internal/status"
)

// Source is the part of the status engine the light follows.
type Source interface {
	Snapshot() status.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Light is a busy light on one output pin.
type Light struct {
	pin       gpio.PinOut
	activeLow bool

	mu  sync.Mutex
	lit bool
	set bool // lit reflects the pin level
}

// Open initializes periph.io and claims the named pin (e.g. "GPIO17"),
// driving it to the off level.
func Open(name string, activeLow bool) (*Light, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("indicator: periph host init failed: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("indicator: gpio %s not found", name)
	}
	l := New(p, activeLow)
	if err := l.Set(false); err != nil {
		return nil, err
	}
	appLog.Info("busy indicator ready", "pin", name, "active_low", activeLow)
	return l, nil
}

// New wraps an already configured pin.
func New(pin gpio.PinOut, activeLow bool) *Light {
	return &Light{pin: pin, activeLow: activeLow}
}

// Set switches the light on for busy and off for open. The pin is only
// written when the state changes.
func (l *Light) Set(busy bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.set && l.lit == busy {
		return nil
	}
	level := gpio.Level(busy != l.activeLow)
	if err := l.pin.Out(level); err != nil {
		return fmt.Errorf("indicator: gpio %s Out failed: %w", l.pin.Name(), err)
	}
	l.lit, l.set = busy, true
	return nil
}

// Follow keeps the light in sync with src until ctx is done, then turns it
// off.
func Follow(ctx context.Context, src Source, l *Light) error {
	ch, cancel := src.Subscribe()
	defer cancel()

	apply := func() {
		if err := l.Set(src.Snapshot().IsBusy); err != nil {
			appLog.Error("busy indicator update failed", err)
		}
	}

	apply()
	for {
		select {
		case <-ctx.Done():
			return l.Set(false)
		case <-ch:
			apply()
		}
	}
}
