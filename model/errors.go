package model

import "fmt"

// DefectError marks bad flow configuration data (unknown executor,
// missing transition with no default). Defects are never retried; they
// fail the run and are logged for the flow author.
type DefectError struct {
	FlowId string
	State  string
	Reason string
}

func (e DefectError) Error() string {
	return fmt.Sprintf("flow defect in %s at state %s: %s", e.FlowId, e.State, e.Reason)
}

func NewDefectError(flowId string, state string, format string, args ...any) DefectError {
	return DefectError{FlowId: flowId, State: state, Reason: fmt.Sprintf(format, args...)}
}
