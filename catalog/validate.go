package catalog

import (
	"fmt"

	"github.com/chatwright/chatwright/model"
)

// Validate statically checks a flow definition before it is published:
// every transition target is a declared state, every state is reachable
// from the initial state, at least one final state exists, input states
// declare what they expect, and every action names a known executor.
func Validate(def model.FlowDefinition, checker ExecutorChecker) error {
	if def.Id == "" {
		return fmt.Errorf("flow id can not be empty")
	}
	if len(def.States) == 0 {
		return fmt.Errorf("flow %s has no states", def.Id)
	}
	if _, ok := def.States[def.InitialState]; !ok {
		return fmt.Errorf("flow %s: initial state %q is not declared", def.Id, def.InitialState)
	}
	if len(def.FinalStates) == 0 {
		return fmt.Errorf("flow %s has no final state", def.Id)
	}
	for _, final := range def.FinalStates {
		if _, ok := def.States[final]; !ok {
			return fmt.Errorf("flow %s: final state %q is not declared", def.Id, final)
		}
	}
	for name, state := range def.States {
		if err := validateState(def, name, state, checker); err != nil {
			return err
		}
	}
	return validateReachability(def)
}

func validateState(def model.FlowDefinition, name string, state model.StateSpec, checker ExecutorChecker) error {
	switch state.Kind {
	case model.STATE_KIND_ACTION, model.STATE_KIND_INPUT, model.STATE_KIND_DECISION, model.STATE_KIND_TERMINAL:
	default:
		return fmt.Errorf("flow %s: state %q has invalid kind %q", def.Id, name, state.Kind)
	}
	if state.Kind == model.STATE_KIND_INPUT && state.Input == nil {
		return fmt.Errorf("flow %s: input state %q declares no input spec", def.Id, name)
	}
	if state.Kind == model.STATE_KIND_INPUT && state.Input != nil && state.Input.Key == "" {
		return fmt.Errorf("flow %s: input state %q declares no context key", def.Id, name)
	}
	if state.Kind != model.STATE_KIND_TERMINAL && len(state.Transitions) == 0 {
		return fmt.Errorf("flow %s: state %q has no transitions", def.Id, name)
	}
	for event, target := range state.Transitions {
		if _, ok := def.States[target]; !ok {
			return fmt.Errorf("flow %s: state %q transition %q targets undeclared state %q", def.Id, name, event, target)
		}
	}
	for _, action := range state.Actions {
		if action.Executor == "" {
			return fmt.Errorf("flow %s: state %q action %q names no executor", def.Id, name, action.Name)
		}
		if checker != nil && !checker.Has(action.Executor) {
			return fmt.Errorf("flow %s: state %q action %q names unknown executor %q", def.Id, name, action.Name, action.Executor)
		}
	}
	return nil
}

func validateReachability(def model.FlowDefinition) error {
	visited := make(map[string]bool)
	stack := []string{def.InitialState}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[name] {
			continue
		}
		visited[name] = true
		for _, target := range def.States[name].Transitions {
			if !visited[target] {
				stack = append(stack, target)
			}
		}
	}
	for name := range def.States {
		if !visited[name] {
			return fmt.Errorf("flow %s: state %q is unreachable from initial state", def.Id, name)
		}
	}
	return nil
}
