package models

import "testing"

func TestTableNames(t *testing.T) {
	tests := []struct {
		name      string
		model     interface{ TableName() string }
		tableName string
	}{
		{"Bank", Bank{}, "banks"},
		{"LearnedButton", LearnedButton{}, "learned_buttons"},
		{"Variable", Variable{}, "variables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.model.TableName(); got != tt.tableName {
				t.Errorf("%s.TableName() = %q, want %q", tt.name, got, tt.tableName)
			}
		})
	}
}

func TestAll(t *testing.T) {
	if got := len(All()); got != 3 {
		t.Errorf("All() returned %d models, want 3", got)
	}
}
