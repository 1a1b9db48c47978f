// Package repositories provides data access layer implementations.
package repositories

import (
	"context"
	"errors"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/bbernstein/mirusuite-bridge/internal/database/models"
)

// BankRepository handles bank and learned button data access.
type BankRepository struct {
	db *gorm.DB
}

// NewBankRepository creates a new BankRepository.
func NewBankRepository(db *gorm.DB) *BankRepository {
	return &BankRepository{db: db}
}

// FindAll returns all banks in creation order.
func (r *BankRepository) FindAll(ctx context.Context) ([]models.Bank, error) {
	var banks []models.Bank
	result := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&banks)
	return banks, result.Error
}

// FindByID returns a bank by ID, or nil if it does not exist.
func (r *BankRepository) FindByID(ctx context.Context, id string) (*models.Bank, error) {
	var bank models.Bank
	result := r.db.WithContext(ctx).First(&bank, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &bank, nil
}

// Ensure returns the bank with the given ID, creating an empty one if needed.
func (r *BankRepository) Ensure(ctx context.Context, id string) (*models.Bank, error) {
	bank := models.Bank{ID: id}
	result := r.db.WithContext(ctx).
		Where(models.Bank{ID: id}).
		FirstOrCreate(&bank)
	if result.Error != nil {
		return nil, result.Error
	}
	return &bank, nil
}

// Update saves a bank's configuration fields.
func (r *BankRepository) Update(ctx context.Context, bank *models.Bank) error {
	return r.db.WithContext(ctx).
		Model(&models.Bank{}).
		Where("id = ?", bank.ID).
		Select("selected_devices", "selected_instrument_groups", "display_device_name", "updated_at").
		Updates(bank).Error
}

// GetButtons returns the learned buttons of a bank in binding order.
func (r *BankRepository) GetButtons(ctx context.Context, bankID string) ([]models.LearnedButton, error) {
	var buttons []models.LearnedButton
	result := r.db.WithContext(ctx).
		Where("bank_id = ?", bankID).
		Order("position ASC").
		Find(&buttons)
	return buttons, result.Error
}

// FindButtonsByControlID returns every binding of a control, ordered by the
// creation order of the owning banks.
func (r *BankRepository) FindButtonsByControlID(ctx context.Context, controlID string) ([]models.LearnedButton, error) {
	var buttons []models.LearnedButton
	result := r.db.WithContext(ctx).
		Joins("JOIN banks ON banks.id = learned_buttons.bank_id").
		Where("learned_buttons.control_id = ?", controlID).
		Order("banks.created_at ASC, banks.id ASC").
		Find(&buttons)
	return buttons, result.Error
}

// AppendButton adds a control at the end of a bank. It returns false without
// writing if the control is already learned by that bank.
func (r *BankRepository) AppendButton(ctx context.Context, bankID, controlID string) (bool, error) {
	appended := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.LearnedButton{}).
			Where("bank_id = ? AND control_id = ?", bankID, controlID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		var count int64
		if err := tx.Model(&models.LearnedButton{}).
			Where("bank_id = ?", bankID).
			Count(&count).Error; err != nil {
			return err
		}

		button := models.LearnedButton{
			ID:        cuid.New(),
			BankID:    bankID,
			ControlID: controlID,
			Position:  int(count),
		}
		if err := tx.Create(&button).Error; err != nil {
			return err
		}
		appended = true
		return nil
	})
	return appended, err
}

// RemoveButton removes a control from a bank and closes the gap so that
// positions stay contiguous.
func (r *BankRepository) RemoveButton(ctx context.Context, bankID, controlID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var button models.LearnedButton
		result := tx.First(&button, "bank_id = ? AND control_id = ?", bankID, controlID)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil
			}
			return result.Error
		}
		if err := tx.Delete(&models.LearnedButton{}, "id = ?", button.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.LearnedButton{}).
			Where("bank_id = ? AND position > ?", bankID, button.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

// DeleteButtons deletes all learned buttons of a bank.
func (r *BankRepository) DeleteButtons(ctx context.Context, bankID string) error {
	return r.db.WithContext(ctx).Delete(&models.LearnedButton{}, "bank_id = ?", bankID).Error
}

// DeleteAll deletes every bank and learned button.
// Uses a transaction to ensure atomicity.
func (r *BankRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&models.LearnedButton{}).Error; err != nil {
			return err
		}
		return global.Delete(&models.Bank{}).Error
	})
}
