package midi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/bbernstein/mirusuite-bridge/internal/host"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{done: make(chan struct{}, 16)}
}

func (d *recordingDispatcher) RunAction(_ context.Context, actionID string, ev host.ActionEvent) error {
	d.mu.Lock()
	d.calls = append(d.calls, actionID+" "+ev.ControlID)
	d.mu.Unlock()
	d.done <- struct{}{}
	return nil
}

func (d *recordingDispatcher) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-d.done:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for action %d", i+1)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func TestDecode(t *testing.T) {
	ev, ok := Decode(midi.NoteOn(2, 36, 100), 2)
	require.True(t, ok)
	assert.Equal(t, Event{Channel: 2, Note: 36, Pressed: true}, ev)
	assert.Equal(t, "midi:2:36", ev.ControlID())

	ev, ok = Decode(midi.NoteOn(2, 36, 0), 2)
	require.True(t, ok)
	assert.False(t, ev.Pressed)

	ev, ok = Decode(midi.NoteOff(2, 36), AnyChannel)
	require.True(t, ok)
	assert.False(t, ev.Pressed)

	_, ok = Decode(midi.NoteOn(3, 36, 100), 2)
	assert.False(t, ok, "other channel")

	_, ok = Decode(midi.ControlChange(2, 7, 100), AnyChannel)
	assert.False(t, ok, "not a note")
}

func TestBridge_ShortAndLongPress(t *testing.T) {
	d := newRecordingDispatcher()
	b := NewBridge(d, AnyChannel)
	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.HandleMessage(midi.NoteOn(0, 40, 90), 0)
	clock = clock.Add(200 * time.Millisecond)
	b.HandleMessage(midi.NoteOff(0, 40), 0)

	b.HandleMessage(midi.NoteOn(0, 41, 90), 0)
	clock = clock.Add(HoldDuration)
	b.HandleMessage(midi.NoteOn(0, 41, 0), 0)

	assert.Equal(t, []string{
		"playAutoPreset midi:0:40",
		"overwriteAutoPreset midi:0:41",
	}, d.wait(t, 2))
}

func TestBridge_CustomBinding(t *testing.T) {
	d := newRecordingDispatcher()
	b := NewBridge(d, 1)
	b.Bind(ControlID(1, 60), Binding{Up: Action{ActionID: host.ActionLearnAutoButtons, Options: host.Options{"deviceIds": "1,2"}}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	// without a hold action a long press runs the up action
	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }
	b.HandleEvent(Event{Channel: 1, Note: 60, Pressed: true})
	clock = clock.Add(5 * time.Second)
	b.HandleEvent(Event{Channel: 1, Note: 60})

	assert.Equal(t, []string{"learnAutoButtons midi:1:60"}, d.wait(t, 1))
	assert.Equal(t, DefaultBinding, b.Binding(ControlID(1, 61)))
}

func TestBridge_ReleaseWithoutPressIsIgnored(t *testing.T) {
	d := newRecordingDispatcher()
	b := NewBridge(d, AnyChannel)
	b.HandleEvent(Event{Channel: 0, Note: 1})
	assert.Empty(t, b.queue)
}
