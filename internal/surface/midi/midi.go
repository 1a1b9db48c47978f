// Package midi bridges a physical MIDI pad controller to host actions. Each
// pad is a control: a short press runs its up action, a press held for
// HoldDuration runs its hold action.
package midi

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/bbernstein/mirusuite-bridge/internal/host"
)

// AnyChannel accepts notes on every channel.
const AnyChannel = -1

// HoldDuration is the press length that selects the hold action.
const HoldDuration = time.Second

const queueSize = 64

// ControlID returns the host control id of a pad.
func ControlID(channel, note uint8) string {
	return fmt.Sprintf("midi:%d:%d", channel, note)
}

// Event is a decoded pad press or release.
type Event struct {
	Channel uint8
	Note    uint8
	Pressed bool
}

// ControlID returns the host control id of the event's pad.
func (e Event) ControlID() string {
	return ControlID(e.Channel, e.Note)
}

// Decode turns a note message on the wanted channel into a pad event. A note
// on with velocity 0 is a release.
func Decode(msg midi.Message, channel int) (Event, bool) {
	var ch, key, vel uint8
	var ev Event
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		ev = Event{Channel: ch, Note: key, Pressed: vel > 0}
	case msg.GetNoteOff(&ch, &key, &vel):
		ev = Event{Channel: ch, Note: key}
	default:
		return Event{}, false
	}
	if channel != AnyChannel && int(ch) != channel {
		return Event{}, false
	}
	return ev, true
}

// Action is a host action with its options.
type Action struct {
	ActionID string
	Options  host.Options
}

// Binding maps a pad to the actions it runs. A nil Hold runs Up for long
// presses too.
type Binding struct {
	Up   Action
	Hold *Action
}

// DefaultBinding makes an unbound pad an auto preset slot.
var DefaultBinding = Binding{
	Up:   Action{ActionID: host.ActionPlayAutoPreset},
	Hold: &Action{ActionID: host.ActionOverwriteAutoPreset},
}

// Dispatcher runs host actions. *host.Instance implements it.
type Dispatcher interface {
	RunAction(ctx context.Context, actionID string, ev host.ActionEvent) error
}

// Bridge turns pad events into action runs, in arrival order.
type Bridge struct {
	dispatcher Dispatcher
	channel    int
	now        func() time.Time

	mu       sync.Mutex
	bindings map[string]Binding
	pressed  map[string]time.Time

	queue chan job
}

type job struct {
	controlID string
	action    Action
}

// NewBridge creates a bridge listening on channel (or AnyChannel).
func NewBridge(dispatcher Dispatcher, channel int) *Bridge {
	return &Bridge{
		dispatcher: dispatcher,
		channel:    channel,
		now:        time.Now,
		bindings:   make(map[string]Binding),
		pressed:    make(map[string]time.Time),
		queue:      make(chan job, queueSize),
	}
}

// Bind sets the binding of a control.
func (b *Bridge) Bind(controlID string, binding Binding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings[controlID] = binding
}

// Binding returns the binding of a control, DefaultBinding when unbound.
func (b *Bridge) Binding(controlID string) Binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	if binding, ok := b.bindings[controlID]; ok {
		return binding
	}
	return DefaultBinding
}

// HandleMessage is the MIDI listener callback. It never blocks on the host.
func (b *Bridge) HandleMessage(msg midi.Message, _ int32) {
	ev, ok := Decode(msg, b.channel)
	if !ok {
		return
	}
	b.HandleEvent(ev)
}

// HandleEvent queues the action selected by a release. Presses only start the
// hold timer.
func (b *Bridge) HandleEvent(ev Event) {
	id := ev.ControlID()
	now := b.now()

	b.mu.Lock()
	if ev.Pressed {
		b.pressed[id] = now
		b.mu.Unlock()
		return
	}
	down, ok := b.pressed[id]
	delete(b.pressed, id)
	b.mu.Unlock()
	if !ok {
		return
	}

	binding := b.Binding(id)
	action := binding.Up
	if binding.Hold != nil && now.Sub(down) >= HoldDuration {
		action = *binding.Hold
	}

	select {
	case b.queue <- job{controlID: id, action: action}:
	default:
		log.Printf("Warning: MIDI queue full, dropping %s on %s", action.ActionID, id)
	}
}

// Run dispatches queued actions until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-b.queue:
			opts := j.action.Options
			if opts == nil {
				opts = host.Options{}
			}
			err := b.dispatcher.RunAction(ctx, j.action.ActionID, host.ActionEvent{ControlID: j.controlID, Options: opts})
			if err != nil {
				log.Printf("Warning: MIDI action %s on %s failed: %v", j.action.ActionID, j.controlID, err)
			}
		}
	}
}

// Listen opens the named input port and feeds it to the bridge. The returned
// function stops listening.
func (b *Bridge) Listen(portName string) (func(), error) {
	in, err := midi.FindInPort(portName)
	if err != nil {
		return nil, fmt.Errorf("MIDI input port %q not found: %w", portName, err)
	}
	stop, err := midi.ListenTo(in, b.HandleMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to listen to %s: %w", in, err)
	}
	log.Printf("🎹 Listening for pads on MIDI port %s", in)
	return stop, nil
}

// InPorts lists the available input port names.
func InPorts() []string {
	var names []string
	for _, p := range midi.GetInPorts() {
		names = append(names, p.String())
	}
	return names
}

// Close releases the MIDI driver.
func Close() {
	midi.CloseDriver()
}
