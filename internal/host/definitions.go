// Package host adapts the MiruSuite integration to a control surface host:
// it registers actions, feedbacks, variables and button presets, and turns
// host events into calls on the catalog, the auto preset engine and the
// MiruSuite client.
package host

import (
	"context"
)

// Option input types.
const (
	OptionDropdown      = "dropdown"
	OptionMultiDropdown = "multidropdown"
	OptionTextInput     = "textinput"
	OptionCheckbox      = "checkbox"
)

// Choice is one entry of a dropdown option.
type Choice struct {
	ID    any    `json:"id"`
	Label string `json:"label"`
}

// OptionDefinition describes one parameter of an action or feedback.
type OptionDefinition struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Default any      `json:"default,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
	Tooltip string   `json:"tooltip,omitempty"`
}

// ActionEvent is a button press delivered by the host.
type ActionEvent struct {
	ControlID string  `json:"controlId"`
	Options   Options `json:"options"`
}

// ActionCallback handles an action.
type ActionCallback func(ctx context.Context, ev ActionEvent) error

// ActionDefinition is a named action the host can bind to a button.
type ActionDefinition struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Options     []OptionDefinition `json:"options"`
	Callback    ActionCallback     `json:"-"`
}

// FeedbackType is either boolean (host applies the default style when true)
// or advanced (the callback returns the style).
type FeedbackType string

const (
	FeedbackBoolean  FeedbackType = "boolean"
	FeedbackAdvanced FeedbackType = "advanced"
)

// ImageSize is the pixel size of the button being rendered.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FeedbackEvent asks for the current rendering of one button.
type FeedbackEvent struct {
	ControlID string     `json:"controlId"`
	Options   Options    `json:"options"`
	Image     *ImageSize `json:"image,omitempty"`
}

// imageSize returns the button size, zero values when unknown.
func (ev FeedbackEvent) imageSize() (int, int) {
	if ev.Image == nil {
		return 0, 0
	}
	return ev.Image.Width, ev.Image.Height
}

// FeedbackResult is either a boolean value or a style.
type FeedbackResult struct {
	Value *bool  `json:"value,omitempty"`
	Style *Style `json:"style,omitempty"`
}

// BoolResult wraps a boolean feedback value.
func BoolResult(v bool) FeedbackResult {
	return FeedbackResult{Value: &v}
}

// StyleResult wraps an advanced feedback style.
func StyleResult(s Style) FeedbackResult {
	return FeedbackResult{Style: &s}
}

// FeedbackCallback renders a feedback.
type FeedbackCallback func(ctx context.Context, ev FeedbackEvent) (FeedbackResult, error)

// FeedbackDefinition is a named feedback the host can attach to a button.
type FeedbackDefinition struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Type         FeedbackType       `json:"type"`
	Description  string             `json:"description,omitempty"`
	DefaultStyle *Style             `json:"defaultStyle,omitempty"`
	Options      []OptionDefinition `json:"options"`
	Callback     FeedbackCallback   `json:"-"`
}

// VariableDefinition is a named string value exposed to the host.
type VariableDefinition struct {
	ID   string `json:"variableId"`
	Name string `json:"name"`
}

// Style is a partial button style. Nil fields are left unchanged by the host.
type Style struct {
	Text    *string `json:"text,omitempty"`
	Size    string  `json:"size,omitempty"`
	BgColor *int    `json:"bgcolor,omitempty"`
	Color   *int    `json:"color,omitempty"`
	PNG64   string  `json:"png64,omitempty"`
}

// CombineRGB packs a color the way the host expects it.
func CombineRGB(r, g, b uint8) int {
	return int(r)<<16 | int(g)<<8 | int(b)
}

// SplitRGB unpacks a color produced by CombineRGB.
func SplitRGB(c int) (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Colors returns a style with background and text colors.
func Colors(bg, fg int) Style {
	return Style{BgColor: &bg, Color: &fg}
}

// Background returns a style with only a background color.
func Background(bg int) Style {
	return Style{BgColor: &bg}
}

// WithText returns a copy of the style with text set.
func (s Style) WithText(text string) Style {
	s.Text = &text
	return s
}

// WithImage returns a copy of the style with a base64 PNG set.
func (s Style) WithImage(png64 string) Style {
	s.PNG64 = png64
	return s
}

// PresetAction is an action bound to a step of a button preset.
type PresetAction struct {
	ActionID string         `json:"actionId"`
	Options  map[string]any `json:"options"`
}

// PresetStep lists the actions run on press, release and long press.
type PresetStep struct {
	Down   []PresetAction `json:"down"`
	Up     []PresetAction `json:"up"`
	Hold   []PresetAction `json:"hold,omitempty"`
	HoldMs int            `json:"holdMs,omitempty"`
}

// PresetFeedback is a feedback attached to a button preset.
type PresetFeedback struct {
	FeedbackID string         `json:"feedbackId"`
	Options    map[string]any `json:"options"`
	Style      *Style         `json:"style,omitempty"`
	IsInverted bool           `json:"isInverted,omitempty"`
}

// ButtonPreset is a ready-made button the operator can drag onto a surface.
type ButtonPreset struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Category  string           `json:"category"`
	Name      string           `json:"name"`
	Style     Style            `json:"style"`
	Steps     []PresetStep     `json:"steps"`
	Feedbacks []PresetFeedback `json:"feedbacks"`
}
