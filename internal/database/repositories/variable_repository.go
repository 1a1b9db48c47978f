package repositories

import (
	"context"
	"errors"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bbernstein/mirusuite-bridge/internal/database/models"
)

// VariableRepository handles host variable data access.
type VariableRepository struct {
	db *gorm.DB
}

// NewVariableRepository creates a new VariableRepository.
func NewVariableRepository(db *gorm.DB) *VariableRepository {
	return &VariableRepository{db: db}
}

// FindAll returns all variables ordered by key.
func (r *VariableRepository) FindAll(ctx context.Context) ([]models.Variable, error) {
	var variables []models.Variable
	result := r.db.WithContext(ctx).
		Order("key ASC").
		Find(&variables)
	return variables, result.Error
}

// Get returns the value of a variable and whether it exists.
func (r *VariableRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var variable models.Variable
	result := r.db.WithContext(ctx).First(&variable, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, result.Error
	}
	return variable.Value, true, nil
}

// SetMany upserts several variables in one transaction.
func (r *VariableRepository) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			variable := models.Variable{ID: cuid.New(), Key: key, Value: value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&variable).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Set upserts a single variable.
func (r *VariableRepository) Set(ctx context.Context, key, value string) error {
	return r.SetMany(ctx, map[string]string{key: value})
}

// Delete deletes a variable by key.
func (r *VariableRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Delete(&models.Variable{}, "key = ?", key).Error
}
