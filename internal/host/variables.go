package host

import (
	"context"
	"encoding/json"
	"log"

	"github.com/bbernstein/mirusuite-bridge/internal/services/pubsub"
)

// Variable ids.
const (
	VariableOfflineMode           = "offlineMode"
	VariableAutoConfiguredButtons = "autoConfiguredButtons"
	VariableLearningMode          = "learningMode"
)

// Variables returns the variable definitions.
func (i *Instance) Variables() []VariableDefinition {
	return []VariableDefinition{
		{ID: VariableOfflineMode, Name: "Offline mode"},
		{ID: VariableAutoConfiguredButtons, Name: "Auto configured buttons"},
		{ID: VariableLearningMode, Name: "Learning mode"},
	}
}

// SetVariableValues stores variable values and pushes them to the host.
func (i *Instance) SetVariableValues(ctx context.Context, values map[string]string) {
	if len(values) == 0 {
		return
	}
	if i.variables != nil {
		if err := i.variables.SetMany(ctx, values); err != nil {
			log.Printf("Warning: failed to store variables: %v", err)
		}
	}
	i.bus.PublishAll(pubsub.TopicVariables, VariablesMessage{Type: "variables", Values: values})
}

// GetVariableValue returns a variable value and whether it is set.
func (i *Instance) GetVariableValue(ctx context.Context, id string) (string, bool, error) {
	if i.variables == nil {
		return "", false, nil
	}
	return i.variables.Get(ctx, id)
}

// VariableValues returns every stored variable value.
func (i *Instance) VariableValues(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	if i.variables == nil {
		return out, nil
	}
	vars, err := i.variables.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		out[v.Key] = v.Value
	}
	return out, nil
}

// updateAutoConfiguredButtons publishes the bank summary as JSON.
func (i *Instance) updateAutoConfiguredButtons(ctx context.Context) {
	summaries, err := i.resolver.Summaries(ctx)
	if err != nil {
		log.Printf("Warning: failed to summarize banks: %v", err)
		return
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		log.Printf("Warning: failed to encode bank summary: %v", err)
		return
	}
	i.SetVariableValues(ctx, map[string]string{VariableAutoConfiguredButtons: string(data)})
}
