package host

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/mirusuite-bridge/internal/host/hosttest"
	"github.com/bbernstein/mirusuite-bridge/internal/miru"
	"github.com/bbernstein/mirusuite-bridge/internal/services/autolearn"
	"github.com/bbernstein/mirusuite-bridge/internal/services/metadata"
	"github.com/bbernstein/mirusuite-bridge/internal/services/pubsub"
	"github.com/bbernstein/mirusuite-bridge/internal/services/status"
	"github.com/bbernstein/mirusuite-bridge/internal/services/testutil"
)

type testInstance struct {
	*Instance
	backend *hosttest.Backend
	inits   int
}

func newTestInstance(t *testing.T, backend *hosttest.Backend) *testInstance {
	t.Helper()
	testDB, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	ti := &testInstance{backend: backend}
	ti.Instance = NewInstance(Deps{
		Banks:     testDB.BankRepo,
		Variables: testDB.VariableRepo,
		Tracker:   status.NewTracker(),
		PubSub:    pubsub.New(),
		NewBackend: func(Config, *status.Tracker) Backend {
			ti.inits++
			return backend
		},
	})
	require.NoError(t, ti.Init(context.Background(), Config{Host: "127.0.0.1", Port: 8080}))
	t.Cleanup(ti.Destroy)
	return ti
}

func (ti *testInstance) variable(t *testing.T, id string) string {
	t.Helper()
	v, ok, err := ti.GetVariableValue(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "variable %s not set", id)
	return v
}

func (ti *testInstance) run(t *testing.T, actionID, controlID string, options Options) {
	t.Helper()
	require.NoError(t, ti.RunAction(context.Background(), actionID, ActionEvent{ControlID: controlID, Options: options}))
}

func (ti *testInstance) style(t *testing.T, feedbackID, controlID string, options Options) Style {
	t.Helper()
	res, err := ti.RunFeedback(context.Background(), feedbackID, FeedbackEvent{ControlID: controlID, Options: options})
	require.NoError(t, err)
	require.NotNil(t, res.Style)
	return *res.Style
}

func (ti *testInstance) boolean(t *testing.T, feedbackID string, options Options) bool {
	t.Helper()
	res, err := ti.RunFeedback(context.Background(), feedbackID, FeedbackEvent{ControlID: "c", Options: options})
	require.NoError(t, err)
	require.NotNil(t, res.Value)
	return *res.Value
}

func text(s Style) string {
	if s.Text == nil {
		return ""
	}
	return *s.Text
}

func bg(s Style) int {
	if s.BgColor == nil {
		return -1
	}
	return *s.BgColor
}

func TestInit_RegistersDefinitions(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())

	assert.Len(t, ti.Actions(), 18)
	assert.Len(t, ti.Feedbacks(), 10)
	assert.Len(t, ti.Variables(), 3)

	assert.Equal(t, "false", ti.variable(t, VariableOfflineMode))
	assert.Equal(t, autolearn.Disabled, ti.variable(t, VariableLearningMode))
	assert.Equal(t, "{}", ti.variable(t, VariableAutoConfiguredButtons))
	assert.Equal(t, status.StatusOK, ti.Tracker().Get().Status)
	assert.False(t, ti.Tracker().Get().Offline)
}

func TestInit_OfflineWhenServerUnreachable(t *testing.T) {
	backend := hosttest.NewBackend()
	backend.Fail = true
	ti := newTestInstance(t, backend)

	assert.Equal(t, "true", ti.variable(t, VariableOfflineMode))
	snap := ti.Tracker().Get()
	assert.Equal(t, status.StatusConnectionFailure, snap.Status)
	assert.True(t, snap.Offline)
	// definitions are still registered against the empty catalog
	assert.Len(t, ti.Actions(), 18)
}

func TestInit_RejectsInvalidConfig(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())
	err := ti.Init(context.Background(), Config{Host: "x", Port: 0})
	assert.Error(t, err)
}

func TestConfigUpdated_ReinitializesOnlyOnChange(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())
	ctx := context.Background()
	require.Equal(t, 1, ti.inits)

	require.NoError(t, ti.ConfigUpdated(ctx, Config{Host: "127.0.0.1", Port: 8080}))
	assert.Equal(t, 1, ti.inits)

	require.NoError(t, ti.ConfigUpdated(ctx, Config{Host: "127.0.0.1", Port: 8081}))
	assert.Equal(t, 2, ti.inits)

	require.NoError(t, ti.ConfigUpdated(ctx, Config{Host: "127.0.0.1", Port: 8081, Username: "admin", Password: "pw"}))
	assert.Equal(t, 3, ti.inits)
	assert.Equal(t, "admin", ti.Config().Username)
}

func TestRunAction_UnknownAction(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())
	err := ti.RunAction(context.Background(), "nope", ActionEvent{})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = ti.RunFeedback(context.Background(), "nope", FeedbackEvent{})
	assert.ErrorIs(t, err, ErrUnknownFeedback)
}

func TestRunAction_InvalidOptions(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())
	err := ti.RunAction(context.Background(), ActionSetShotSize, ActionEvent{
		Options: Options{"deviceId": 1, "size": "HUGE"},
	})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	assert.Empty(t, ti.backend.Calls())
}

func TestRunAction_PanicIsContained(t *testing.T) {
	backend := hosttest.NewBackend()
	ti := newTestInstance(t, backend)
	backend.PanicOn = "PlayPreset"

	err := ti.RunAction(context.Background(), ActionPlayPreset, ActionEvent{Options: Options{"preset": 11}})
	assert.ErrorIs(t, err, ErrHandlerPanic)

	// the instance keeps working
	backend.PanicOn = ""
	ti.run(t, ActionPlayPreset, "c", Options{"preset": 11})
	assert.Equal(t, []string{"PlayPreset 11"}, backend.Calls())
}

func TestRunAction_BackendErrorIsReturned(t *testing.T) {
	backend := hosttest.NewBackend()
	ti := newTestInstance(t, backend)
	backend.Fail = true

	err := ti.RunAction(context.Background(), ActionCutToInput, ActionEvent{Options: Options{"input": "2"}})
	assert.ErrorIs(t, err, hosttest.ErrOffline)
}

func TestDeviceActions(t *testing.T) {
	backend := hosttest.NewBackend()
	ti := newTestInstance(t, backend)

	ti.run(t, ActionSetShotSize, "c", Options{"deviceId": float64(1), "size": "CLOSE_UP"})
	ti.run(t, ActionToggleDirector, "c", Options{"deviceId": "2"})
	ti.run(t, ActionSetDirector, "c", Options{"deviceId": 2, "enabled": "false"})
	ti.run(t, ActionSetTrackingMode, "c", Options{"deviceId": 1, "mode": "SINGLE", "person": 7})
	ti.run(t, ActionLearnTargetFace, "c", Options{"deviceId": 3})
	ti.run(t, ActionPlayActivePreset, "c", Options{"deviceId": 1})
	ti.run(t, ActionTriggerMovement, "c", Options{"deviceId": 1, "type": "random"})
	ti.run(t, ActionTriggerMovement, "c", Options{"deviceId": 1})
	ti.run(t, ActionReturnToHome, "c", Options{"deviceId": 2})
	ti.run(t, ActionExitSteadyMode, "c", Options{"deviceId": 2})
	ti.run(t, ActionStopAutoMove, "c", Options{"deviceId": 2})
	ti.run(t, ActionOverwritePreset, "c", Options{"preset": "12"})
	ti.run(t, ActionCutToInput, "c", Options{"input": " 3 "})

	assert.Equal(t, []string{
		"SetShotSize 1 CLOSE_UP",
		"SetDirector 2 toggle",
		"SetDirector 2 false",
		"SetTrackingMode 1 SINGLE 7",
		"LearnTargetFace 3",
		"ReapplyActivePreset 1",
		"TriggerRandomMove 1",
		"TriggerPresetMove 1",
		"ReturnToHome 2",
		"ExitSteadyMode 2",
		"StopAutoMove 2",
		"OverwritePreset 12",
		"CutTo 3",
	}, backend.Calls())
}

func TestActions_UnknownSelectionIsNoOp(t *testing.T) {
	backend := hosttest.NewBackend()
	ti := newTestInstance(t, backend)

	ti.run(t, ActionSetShotSize, "c", Options{"deviceId": 99, "size": "WIDE"})
	ti.run(t, ActionToggleDirector, "c", Options{"deviceId": 99})
	ti.run(t, ActionPlayPreset, "c", Options{"preset": 99})
	ti.run(t, ActionReturnToHome, "c", Options{"deviceId": 99})

	assert.Empty(t, backend.Calls())
}

func TestToggleAutoCut(t *testing.T) {
	backend := hosttest.NewBackend()
	ti := newTestInstance(t, backend)
	sub := ti.PubSub().Subscribe(pubsub.TopicCheckFeedbacks, "", 10)

	ti.run(t, ActionToggleAutoCut, "c", nil)
	assert.True(t, ti.boolean(t, FeedbackAutoCut, nil))
	ti.run(t, ActionToggleAutoCut, "c", nil)
	assert.False(t, ti.boolean(t, FeedbackAutoCut, nil))
	assert.Equal(t, []string{"SetAutoCut true", "SetAutoCut false"}, backend.Calls())

	select {
	case msg := <-sub.Channel:
		assert.Equal(t, []string{FeedbackAutoCut}, msg.(CheckFeedbacksMessage).Feedbacks)
	case <-time.After(time.Second):
		t.Fatal("no feedback recheck published")
	}
}

func TestLearningFlow(t *testing.T) {
	backend := hosttest.NewBackend()
	ti := newTestInstance(t, backend)
	learnOpts := Options{"deviceIds": []any{float64(1), float64(2)}, "instrumentGroups": []any{"All"}}

	ti.run(t, ActionLearnAutoButtons, "bank", learnOpts)
	assert.Equal(t, "bank", ti.variable(t, VariableLearningMode))

	for _, control := range []string{"X", "Y", "X"} {
		ti.run(t, ActionPlayAutoPreset, control, nil)
	}
	assert.Empty(t, backend.Calls(), "presses while learning must not play")

	s := ti.style(t, FeedbackAutoPreset, "X", nil)
	assert.Equal(t, "#0", text(s))
	assert.Equal(t, green, bg(s))
	s = ti.style(t, FeedbackAutoPreset, "Y", nil)
	assert.Equal(t, "#1", text(s))
	s = ti.style(t, FeedbackAutoPreset, "W", nil)
	assert.Equal(t, "Learning", text(s))
	assert.Equal(t, red, bg(s))

	s = ti.style(t, FeedbackLearnMode, "bank", nil)
	assert.Equal(t, "Learning Save? (2/2)", text(s))
	assert.Equal(t, learnBlue, bg(s))

	// the trigger finalizes
	ti.run(t, ActionLearnAutoButtons, "bank", nil)
	assert.Equal(t, autolearn.Disabled, ti.variable(t, VariableLearningMode))
	assert.JSONEq(t, `{"bank":{"learned":["X","Y"],"presets":2}}`, ti.variable(t, VariableAutoConfiguredButtons))

	ti.run(t, ActionPlayAutoPreset, "Y", nil)
	ti.run(t, ActionPlayAutoPreset, "W", nil)
	ti.run(t, ActionOverwriteAutoPreset, "X", nil)
	assert.Equal(t, []string{"PlayPreset 12", "OverwritePreset 11"}, backend.Calls())

	s = ti.style(t, FeedbackLearnMode, "bank", nil)
	assert.Equal(t, "Learn Presets (2/2)", text(s))
	assert.Equal(t, idleGreen, bg(s))
}

func TestLearnAutoButtons_WithoutDevices(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())
	ti.run(t, ActionLearnAutoButtons, "bank", Options{"deviceIds": []any{}})
	assert.Equal(t, autolearn.Disabled, ti.variable(t, VariableLearningMode))
}

func TestLearnAutoButtons_CommaSeparatedDevices(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())
	ti.run(t, ActionLearnAutoButtons, "bank", Options{"deviceIds": "1, 3", "instrumentGroups": []any{"woodwinds"}})

	presets, err := ti.Resolver().FilteredOrderedPresets(context.Background(), "bank")
	require.NoError(t, err)
	require.Len(t, presets, 2)
	assert.Equal(t, 11, presets[0].ID)
	assert.Equal(t, 13, presets[1].ID)
}

func TestOverwriteAutoPreset_IgnoredWhileLearning(t *testing.T) {
	backend := hosttest.NewBackend()
	ti := newTestInstance(t, backend)

	ti.run(t, ActionLearnAutoButtons, "bank", Options{"deviceIds": []any{1}})
	ti.run(t, ActionPlayAutoPreset, "X", nil)
	ti.run(t, ActionOverwriteAutoPreset, "X", nil)
	assert.Empty(t, backend.Calls())
}

func TestClearAllAutoButtons(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())
	ti.run(t, ActionLearnAutoButtons, "bank", Options{"deviceIds": []any{1}})
	ti.run(t, ActionPlayAutoPreset, "X", nil)
	ti.run(t, ActionClearAllAutoButtons, "clear", nil)

	assert.Equal(t, autolearn.Disabled, ti.variable(t, VariableLearningMode))
	assert.Equal(t, "{}", ti.variable(t, VariableAutoConfiguredButtons))
}

func TestAutoPresetFeedback_LiveRendering(t *testing.T) {
	backend := hosttest.NewBackend()
	ti := newTestInstance(t, backend)
	ctx := context.Background()

	ti.run(t, ActionLearnAutoButtons, "bank", Options{"deviceIds": []any{1, 2}, "displayName": true})
	ti.run(t, ActionPlayAutoPreset, "X", nil)
	ti.run(t, ActionPlayAutoPreset, "Y", nil)
	ti.run(t, ActionLearnAutoButtons, "bank", nil)

	brass := CombineRGB(metadata.ColorForInstrument("trumpet"))
	s := ti.style(t, FeedbackAutoPreset, "Y", nil)
	assert.Equal(t, "Trumpet\n(Cam 2)", text(s))
	assert.Equal(t, brass, bg(s))
	assert.Equal(t, white, *s.Color)

	backend.Live = []string{"2"}
	require.NoError(t, ti.Catalog().Refresh(ctx))
	s = ti.style(t, FeedbackAutoPreset, "Y", nil)
	assert.Equal(t, brass, bg(s))
	assert.Equal(t, CombineRGB(140, 140, 140), *s.Color)

	backend.Active = map[int]miru.ActivePreset{2: {PresetID: 12}}
	require.NoError(t, ti.Catalog().Refresh(ctx))
	s = ti.style(t, FeedbackAutoPreset, "Y", nil)
	assert.Equal(t, darkRed, bg(s))

	backend.Live = nil
	require.NoError(t, ti.Catalog().Refresh(ctx))
	s = ti.style(t, FeedbackAutoPreset, "Y", nil)
	assert.Equal(t, red, bg(s))
	assert.Equal(t, white, *s.Color)
}

func TestAutoPresetFeedback_UnboundShowsPlaceholder(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())
	s := ti.style(t, FeedbackAutoPreset, "nowhere", nil)
	assert.Equal(t, "Auto Preset", text(s))
	assert.Equal(t, black, bg(s))
}

func TestAutoPresetFeedback_OtherBankOffersOverwrite(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())
	ti.run(t, ActionLearnAutoButtons, "bank-a", Options{"deviceIds": []any{1}})
	ti.run(t, ActionPlayAutoPreset, "X", nil)
	ti.run(t, ActionLearnAutoButtons, "bank-a", nil)

	ti.run(t, ActionLearnAutoButtons, "bank-b", Options{"deviceIds": []any{2}})
	s := ti.style(t, FeedbackAutoPreset, "X", nil)
	assert.Equal(t, "Overwrite?", text(s))
	assert.Equal(t, yellow, bg(s))

	ti.run(t, ActionPlayAutoPreset, "X", nil)
	s = ti.style(t, FeedbackAutoPreset, "X", nil)
	assert.Equal(t, "#0", text(s))
}

func TestDeviceFeedbacks(t *testing.T) {
	backend := hosttest.NewBackend()
	backend.DeviceList[1].Feedback = map[string]miru.ComponentFeedback{
		miru.ComponentHeadTrackingDirector: {State: miru.StateRunning},
		miru.ComponentAutoMoveDirector:     {State: miru.StateWarn},
	}
	backend.Live = []string{"1"}
	backend.Active = map[int]miru.ActivePreset{1: {PresetID: 11}}
	ti := newTestInstance(t, backend)

	assert.True(t, ti.boolean(t, FeedbackEnabledDirector, Options{"deviceId": 1}))
	assert.False(t, ti.boolean(t, FeedbackEnabledDirector, Options{"deviceId": 99}))

	assert.Equal(t, green, bg(ti.style(t, FeedbackDirectorStatus, "c", Options{"deviceId": 1})))
	assert.Equal(t, yellow, bg(ti.style(t, FeedbackDirectorStatus, "c", Options{"deviceId": 2})))
	assert.Equal(t, black, bg(ti.style(t, FeedbackDirectorStatus, "c", Options{"deviceId": 99})))

	assert.True(t, ti.boolean(t, FeedbackShotSize, Options{"deviceId": 1, "size": "WIDE"}))
	assert.False(t, ti.boolean(t, FeedbackShotSize, Options{"deviceId": 1, "size": "MEDIUM"}))

	assert.True(t, ti.boolean(t, FeedbackActivePreset, Options{"preset": 11}))
	assert.False(t, ti.boolean(t, FeedbackActivePreset, Options{"preset": 12}))

	assert.True(t, ti.boolean(t, FeedbackLiveDevice, Options{"deviceId": 1}))
	assert.False(t, ti.boolean(t, FeedbackLiveDevice, Options{"deviceId": 2}))
	assert.True(t, ti.boolean(t, FeedbackLiveInput, Options{"input": "1"}))
	assert.False(t, ti.boolean(t, FeedbackLiveInput, Options{"input": "4"}))
}

func TestTrackingModeFeedback(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	backend := hosttest.NewBackend()
	backend.FaceImageData = buf.Bytes()
	ti := newTestInstance(t, backend)

	s := ti.style(t, FeedbackTrackingMode, "c", Options{"deviceId": 1, "mode": "SINGLE", "person": 7})
	assert.Equal(t, red, bg(s))
	assert.NotEmpty(t, s.PNG64)

	s = ti.style(t, FeedbackTrackingMode, "c", Options{"deviceId": 1, "mode": "SINGLE", "person": 8})
	assert.Nil(t, s.BgColor)
	assert.NotEmpty(t, s.PNG64)

	s = ti.style(t, FeedbackTrackingMode, "c", Options{"deviceId": 1, "mode": "ALL"})
	assert.Equal(t, black, bg(s))
}

func TestPresets(t *testing.T) {
	ti := newTestInstance(t, hosttest.NewBackend())

	ids := make(map[string]ButtonPreset)
	for _, p := range ti.Presets() {
		ids[p.ID] = p
	}
	for _, id := range []string{
		"toggledDirector-1", "enableDirector-1", "disableDirector-1",
		"shotSize-WIDE-1", "shotSize-CLOSE_UP-2", "trackingModeSINGLE-3",
		"learnTargetFace-1", "exitSteadyMode1", "returnToHome2", "reapplyPreset-3",
		"playPreset-11", "playPreset-12", "playPreset-13",
		"learnAutoButtons", "autoPreset", "clearAllAutoButtons", "toggleAutoCut",
	} {
		assert.Contains(t, ids, id)
	}
	assert.NotContains(t, ids, "movement-random-1", "no auto move director installed")

	slot := ids["autoPreset"]
	require.Len(t, slot.Steps, 1)
	assert.Equal(t, ActionPlayAutoPreset, slot.Steps[0].Up[0].ActionID)
	assert.Equal(t, ActionOverwriteAutoPreset, slot.Steps[0].Hold[0].ActionID)
	assert.Equal(t, 1000, slot.Steps[0].HoldMs)

	assert.True(t, ids["disableDirector-1"].Feedbacks[0].IsInverted)
	assert.Equal(t, "Flute (Cam 1)", ids["playPreset-11"].Name)
}

func TestPresets_DummyDeviceWithoutCatalog(t *testing.T) {
	backend := hosttest.NewBackend()
	backend.Fail = true
	ti := newTestInstance(t, backend)

	var ids []string
	for _, p := range ti.Presets() {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "returnToHome0")
	assert.Contains(t, ids, "reapplyPreset-0")
	assert.Contains(t, ids, "autoPreset")
}

func TestStatusIsPublished(t *testing.T) {
	backend := hosttest.NewBackend()
	ti := newTestInstance(t, backend)
	sub := ti.PubSub().Subscribe(pubsub.TopicStatus, "", 10)

	backend.Fail = true
	ti.UpdateConfiguration(context.Background())

	select {
	case msg := <-sub.Channel:
		assert.Equal(t, status.StatusConnectionFailure, msg.(StatusMessage).Status.Status)
	case <-time.After(time.Second):
		t.Fatal("no status published")
	}
}
