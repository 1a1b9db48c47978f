// Package models contains the database model definitions.
// Banks and their learned buttons live here, together with the
// string-valued host variables.
package models

import (
	"time"
)

// Bank is an auto preset bank, keyed by the control id of its learning
// trigger button.
// Table: banks
type Bank struct {
	ID                       string    `gorm:"column:id;primaryKey"`
	SelectedDevices          []int     `gorm:"column:selected_devices;serializer:json"`
	SelectedInstrumentGroups []string  `gorm:"column:selected_instrument_groups;serializer:json"`
	DisplayDeviceName        bool      `gorm:"column:display_device_name;default:false"`
	CreatedAt                time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relations
	Buttons []LearnedButton `gorm:"foreignKey:BankID"`
}

func (Bank) TableName() string { return "banks" }

// LearnedButton binds a host control to a position within a bank.
// Table: learned_buttons
type LearnedButton struct {
	ID        string    `gorm:"column:id;primaryKey"`
	BankID    string    `gorm:"column:bank_id;index;uniqueIndex:idx_bank_control"`
	ControlID string    `gorm:"column:control_id;index;uniqueIndex:idx_bank_control"`
	Position  int       `gorm:"column:position"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (LearnedButton) TableName() string { return "learned_buttons" }

// Variable is a named string value exposed to the host.
// Table: variables
type Variable struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Key       string    `gorm:"column:key;uniqueIndex"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Variable) TableName() string { return "variables" }

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{
		&Bank{},
		&LearnedButton{},
		&Variable{},
	}
}
