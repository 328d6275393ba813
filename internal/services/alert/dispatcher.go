// Package alert runs the one-shot fire alarm of a capture session.
package alert

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"firewatch/internal/logger"
	"firewatch/internal/models"
)

// Dispatcher states.
const (
	StateIdle int32 = iota
	StateFiring
)

// DefaultRepeats is how many times the alert sound is played.
const DefaultRepeats = 5

// Notifier receives the alert when it fires.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// Dispatcher moves from idle to firing once and then runs the alarm in
// the background. Firing is terminal; a new session gets a new Dispatcher.
type Dispatcher struct {
	state     atomic.Int32
	player    Player
	file      string
	repeats   int
	notifiers []Notifier
	logger    *logger.Logger
	done      chan struct{}
}

// NewDispatcher creates an idle dispatcher. Nil notifiers are skipped.
func NewDispatcher(player Player, file string, repeats int, log *logger.Logger, notifiers ...Notifier) *Dispatcher {
	if repeats <= 0 {
		repeats = DefaultRepeats
	}

	d := &Dispatcher{
		player:  player,
		file:    file,
		repeats: repeats,
		logger:  log,
		done:    make(chan struct{}),
	}
	for _, n := range notifiers {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
	return d
}

// State returns StateIdle or StateFiring.
func (d *Dispatcher) State() int32 {
	return d.state.Load()
}

// Done is closed once the alarm has played and every notifier has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Trigger starts the alarm and returns immediately. Calls after the first
// return false and do nothing.
func (d *Dispatcher) Trigger(ctx context.Context, alert models.Alert) bool {
	if !d.state.CompareAndSwap(StateIdle, StateFiring) {
		return false
	}

	// outlives the session that raised it
	go d.run(context.WithoutCancel(ctx), alert)
	return true
}

func (d *Dispatcher) run(ctx context.Context, alert models.Alert) {
	defer close(d.done)

	d.logger.Warning("!!! FIRE DETECTED on %s (conf %.2f, frame %d) !!!", alert.Camera, alert.Confidence, alert.FrameIndex)

	// notifiers must not hold up the sound
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer d.recoverPanic("notify")
		d.notify(ctx, alert)
	}()

	d.play(ctx)
	wg.Wait()
}

func (d *Dispatcher) recoverPanic(stage string) {
	if r := recover(); r != nil {
		d.logger.Error("Alert dispatcher panic during %s: %v\n%s", stage, r, debug.Stack())
	}
}

func (d *Dispatcher) notify(ctx context.Context, alert models.Alert) {
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			d.logger.Error("Alert notification failed: %v", err)
		}
	}
}

func (d *Dispatcher) play(ctx context.Context) {
	defer d.recoverPanic("playback")

	if d.player == nil {
		return
	}

	for i := 1; i <= d.repeats; i++ {
		if err := d.player.Play(ctx, d.file); err != nil {
			d.logger.Error("Alert playback %d/%d failed, stopping: %v", i, d.repeats, err)
			return
		}
	}
}
