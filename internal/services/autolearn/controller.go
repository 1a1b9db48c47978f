package autolearn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
)

// Disabled is the learning mode value when no bank is learning.
const Disabled = "disabled"

// ErrNoDevicesSelected is returned when learning is started without devices.
var ErrNoDevicesSelected = errors.New("no devices selected")

// LearnRequest is the bank configuration captured when a trigger is pressed.
type LearnRequest struct {
	BankID            string
	Devices           []int
	InstrumentGroups  []string
	DisplayDeviceName bool
}

// PressOutcome describes what a button press did.
type PressOutcome int

const (
	// PressNotLearning means no bank is learning; the press should play.
	PressNotLearning PressOutcome = iota
	// PressIgnored means the button is already learned by the active bank.
	PressIgnored
	// PressLearned means the button was appended to the active bank.
	PressLearned
	// PressMoved means the button was taken over from another bank.
	PressMoved
)

func (o PressOutcome) String() string {
	switch o {
	case PressNotLearning:
		return "not-learning"
	case PressIgnored:
		return "ignored"
	case PressLearned:
		return "learned"
	case PressMoved:
		return "moved"
	}
	return fmt.Sprintf("PressOutcome(%d)", int(o))
}

// Listener is notified with the learning mode after every transition and
// every learned button.
type Listener func(mode string)

// Controller is the learning mode state machine. It is either disabled or
// learning exactly one bank.
type Controller struct {
	mu       sync.Mutex
	bindings *Bindings
	active   string

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewController creates a controller in the disabled state.
func NewController(bindings *Bindings) *Controller {
	return &Controller{bindings: bindings}
}

// OnChange registers a listener.
func (c *Controller) OnChange(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Controller) notify(mode string) {
	c.listenersMu.RLock()
	listeners := slices.Clone(c.listeners)
	c.listenersMu.RUnlock()
	for _, l := range listeners {
		l(mode)
	}
}

// Mode returns Disabled or the id of the learning bank.
func (c *Controller) Mode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode()
}

func (c *Controller) mode() string {
	if c.active == "" {
		return Disabled
	}
	return c.active
}

// ActiveBank returns the learning bank, if any.
func (c *Controller) ActiveBank() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != ""
}

// Toggle handles a trigger press. While disabled it starts learning the
// request's bank from zero bindings; while learning it finalizes.
func (c *Controller) Toggle(ctx context.Context, req LearnRequest) (string, error) {
	c.mu.Lock()
	if c.active != "" {
		if c.active != req.BankID {
			log.Printf("Learning for bank %s finalized by trigger of bank %s", c.active, req.BankID)
		}
		c.active = ""
		c.mu.Unlock()
		c.notify(Disabled)
		return Disabled, nil
	}

	if req.BankID == "" {
		c.mu.Unlock()
		return Disabled, ErrEmptyID
	}
	if len(req.Devices) == 0 {
		c.mu.Unlock()
		return Disabled, ErrNoDevicesSelected
	}

	groups := req.InstrumentGroups
	if slices.Contains(groups, AllGroups) {
		groups = nil
	}
	if err := c.start(ctx, req.BankID, req.Devices, groups, req.DisplayDeviceName); err != nil {
		c.mu.Unlock()
		return Disabled, err
	}
	c.active = req.BankID
	c.mu.Unlock()

	log.Printf("Learning started for bank %s with devices %v", req.BankID, req.Devices)
	c.notify(req.BankID)
	return req.BankID, nil
}

func (c *Controller) start(ctx context.Context, bankID string, devices []int, groups []string, display bool) error {
	if err := c.bindings.ClearBank(ctx, bankID); err != nil {
		return err
	}
	if err := c.bindings.SetSelectedDevices(ctx, bankID, devices); err != nil {
		return err
	}
	if err := c.bindings.SetDisplayDeviceName(ctx, bankID, display); err != nil {
		return err
	}
	return c.bindings.SetSelectedInstrumentGroups(ctx, bankID, groups)
}

// Press handles a press of an auto preset button. While learning, a button
// not yet in the active bank is appended to it; a button owned by another
// bank is moved to the active bank.
func (c *Controller) Press(ctx context.Context, controlID string) (PressOutcome, error) {
	c.mu.Lock()
	active := c.active
	if active == "" {
		c.mu.Unlock()
		return PressNotLearning, nil
	}
	if controlID == active {
		c.mu.Unlock()
		return PressIgnored, nil
	}

	outcome, err := c.learn(ctx, active, controlID)
	c.mu.Unlock()
	if err != nil {
		return outcome, err
	}
	if outcome != PressIgnored {
		c.notify(active)
	}
	return outcome, nil
}

func (c *Controller) learn(ctx context.Context, bankID, controlID string) (PressOutcome, error) {
	appended, err := c.bindings.AppendButton(ctx, bankID, controlID)
	if errors.Is(err, ErrOwnedByOtherBank) {
		if err := c.bindings.ReleaseButton(ctx, controlID); err != nil {
			return PressIgnored, err
		}
		if _, err := c.bindings.AppendButton(ctx, bankID, controlID); err != nil {
			return PressIgnored, err
		}
		return PressMoved, nil
	}
	if err != nil {
		return PressIgnored, err
	}
	if !appended {
		return PressIgnored, nil
	}
	return PressLearned, nil
}

// Reset returns to the disabled state without touching any bank.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.active = ""
	c.mu.Unlock()
	c.notify(Disabled)
}

// ClearAll stops learning and forgets every bank.
func (c *Controller) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	c.active = ""
	err := c.bindings.ClearAll(ctx)
	c.mu.Unlock()
	c.notify(Disabled)
	return err
}
