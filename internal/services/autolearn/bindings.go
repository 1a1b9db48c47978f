// Package autolearn implements auto preset banks: learning an ordered set of
// host buttons per bank and resolving each learned button to a preset of
// the current catalog.
package autolearn

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bbernstein/mirusuite-bridge/internal/database/models"
	"github.com/bbernstein/mirusuite-bridge/internal/database/repositories"
)

var (
	// ErrOwnedByOtherBank is returned when appending a button that another
	// bank has already learned.
	ErrOwnedByOtherBank = errors.New("button already learned by another bank")
	// ErrEmptyID is returned for an empty bank or control id.
	ErrEmptyID = errors.New("empty bank or control id")
)

// Bank is the state of one auto preset bank.
type Bank struct {
	ID                       string
	SelectedDevices          []int
	SelectedInstrumentGroups []string
	DisplayDeviceName        bool
	// LearnedButtons in binding order: position i shows the i-th eligible preset.
	LearnedButtons []string
}

// Location is where a control is learned. Index is -1 when it is not learned.
type Location struct {
	Index  int
	BankID string
}

// Found reports whether the control is learned by some bank.
func (l Location) Found() bool {
	return l.Index >= 0
}

var notFound = Location{Index: -1}

// Bindings stores banks and their learned buttons.
type Bindings struct {
	repo *repositories.BankRepository
}

// NewBindings creates a binding store on top of the bank repository.
func NewBindings(repo *repositories.BankRepository) *Bindings {
	return &Bindings{repo: repo}
}

// GetBank returns a bank. A bank that was never used is returned empty.
func (b *Bindings) GetBank(ctx context.Context, bankID string) (Bank, error) {
	bank := Bank{ID: bankID}
	row, err := b.repo.FindByID(ctx, bankID)
	if err != nil {
		return bank, fmt.Errorf("failed to load bank %s: %w", bankID, err)
	}
	if row == nil {
		return bank, nil
	}
	bank.SelectedDevices = row.SelectedDevices
	bank.SelectedInstrumentGroups = row.SelectedInstrumentGroups
	bank.DisplayDeviceName = row.DisplayDeviceName

	buttons, err := b.repo.GetButtons(ctx, bankID)
	if err != nil {
		return bank, fmt.Errorf("failed to load buttons of bank %s: %w", bankID, err)
	}
	bank.LearnedButtons = make([]string, len(buttons))
	for i, btn := range buttons {
		bank.LearnedButtons[i] = btn.ControlID
	}
	return bank, nil
}

// Banks returns every stored bank in creation order.
func (b *Bindings) Banks(ctx context.Context) ([]Bank, error) {
	rows, err := b.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list banks: %w", err)
	}
	banks := make([]Bank, 0, len(rows))
	for _, row := range rows {
		bank, err := b.GetBank(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		banks = append(banks, bank)
	}
	return banks, nil
}

// ClearBank removes the learned buttons of a bank. Configuration is kept.
func (b *Bindings) ClearBank(ctx context.Context, bankID string) error {
	if err := b.repo.DeleteButtons(ctx, bankID); err != nil {
		return fmt.Errorf("failed to clear bank %s: %w", bankID, err)
	}
	return nil
}

// ClearAll removes every bank's learned buttons and configuration.
func (b *Bindings) ClearAll(ctx context.Context) error {
	if err := b.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear banks: %w", err)
	}
	return nil
}

func (b *Bindings) updateBank(ctx context.Context, bankID string, fn func(*models.Bank)) error {
	if bankID == "" {
		return ErrEmptyID
	}
	row, err := b.repo.Ensure(ctx, bankID)
	if err != nil {
		return fmt.Errorf("failed to create bank %s: %w", bankID, err)
	}
	fn(row)
	if err := b.repo.Update(ctx, row); err != nil {
		return fmt.Errorf("failed to update bank %s: %w", bankID, err)
	}
	return nil
}

// SetSelectedDevices replaces the device selection of a bank.
func (b *Bindings) SetSelectedDevices(ctx context.Context, bankID string, deviceIDs []int) error {
	return b.updateBank(ctx, bankID, func(row *models.Bank) {
		row.SelectedDevices = slices.Clone(deviceIDs)
	})
}

// SetSelectedInstrumentGroups replaces the instrument group filter of a bank.
func (b *Bindings) SetSelectedInstrumentGroups(ctx context.Context, bankID string, groups []string) error {
	return b.updateBank(ctx, bankID, func(row *models.Bank) {
		row.SelectedInstrumentGroups = slices.Clone(groups)
	})
}

// SetDisplayDeviceName sets whether bank labels include device names.
func (b *Bindings) SetDisplayDeviceName(ctx context.Context, bankID string, display bool) error {
	return b.updateBank(ctx, bankID, func(row *models.Bank) {
		row.DisplayDeviceName = display
	})
}

// AppendButton adds a control at the end of a bank's learned buttons. It is a
// no-op returning false when the bank already has the control, and fails with
// ErrOwnedByOtherBank when another bank has it.
func (b *Bindings) AppendButton(ctx context.Context, bankID, controlID string) (bool, error) {
	if bankID == "" || controlID == "" {
		return false, ErrEmptyID
	}
	owners, err := b.repo.FindButtonsByControlID(ctx, controlID)
	if err != nil {
		return false, fmt.Errorf("failed to look up control %s: %w", controlID, err)
	}
	for _, owner := range owners {
		if owner.BankID == bankID {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s belongs to %s", ErrOwnedByOtherBank, controlID, owner.BankID)
	}

	if _, err := b.repo.Ensure(ctx, bankID); err != nil {
		return false, fmt.Errorf("failed to create bank %s: %w", bankID, err)
	}
	appended, err := b.repo.AppendButton(ctx, bankID, controlID)
	if err != nil {
		return false, fmt.Errorf("failed to learn %s for bank %s: %w", controlID, bankID, err)
	}
	return appended, nil
}

// ReleaseButton removes a control from every bank that learned it.
func (b *Bindings) ReleaseButton(ctx context.Context, controlID string) error {
	owners, err := b.repo.FindButtonsByControlID(ctx, controlID)
	if err != nil {
		return fmt.Errorf("failed to look up control %s: %w", controlID, err)
	}
	for _, owner := range owners {
		if err := b.repo.RemoveButton(ctx, owner.BankID, controlID); err != nil {
			return fmt.Errorf("failed to release %s from bank %s: %w", controlID, owner.BankID, err)
		}
	}
	return nil
}

// Locate finds the bank and position of a control. Banks are searched in
// creation order, so the oldest bank wins if a control ever appears twice.
func (b *Bindings) Locate(ctx context.Context, controlID string) (Location, error) {
	owners, err := b.repo.FindButtonsByControlID(ctx, controlID)
	if err != nil {
		return notFound, fmt.Errorf("failed to look up control %s: %w", controlID, err)
	}
	if len(owners) == 0 {
		return notFound, nil
	}
	return Location{Index: owners[0].Position, BankID: owners[0].BankID}, nil
}

// LocateInBank returns the position of a control within one bank, or -1.
func (b *Bindings) LocateInBank(ctx context.Context, bankID, controlID string) (int, error) {
	owners, err := b.repo.FindButtonsByControlID(ctx, controlID)
	if err != nil {
		return -1, fmt.Errorf("failed to look up control %s: %w", controlID, err)
	}
	for _, owner := range owners {
		if owner.BankID == bankID {
			return owner.Position, nil
		}
	}
	return -1, nil
}
