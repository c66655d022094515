package payment

import (
	"fmt"
	"strings"
)

type TransitionKind string

const (
	// TransitionStandard moves money through a business hook.
	TransitionStandard TransitionKind = "STANDARD"
	// TransitionOverride only relabels the status; balances are untouched.
	TransitionOverride TransitionKind = "OVERRIDE"
)

// Hook names the business logic a transition runs.
type Hook int

const (
	HookLabelOnly Hook = iota
	HookComplete
	HookCancel
	HookRefund
)

func (h Hook) String() string {
	switch h {
	case HookComplete:
		return "completePayment"
	case HookCancel:
		return "cancelPayment"
	case HookRefund:
		return "refundPayment"
	default:
		return "labelOnly"
	}
}

type Transition struct {
	From     Status
	To       Status
	Kind     TransitionKind
	Elevated bool
	Hook     Hook
}

type edge struct {
	from, to Status
}

var transitionTable = map[edge]Transition{
	{StatusPending, StatusCompleted}:   {StatusPending, StatusCompleted, TransitionStandard, false, HookComplete},
	{StatusPending, StatusCancelled}:   {StatusPending, StatusCancelled, TransitionStandard, false, HookCancel},
	{StatusCompleted, StatusRefunded}:  {StatusCompleted, StatusRefunded, TransitionStandard, false, HookRefund},
	{StatusCancelled, StatusPending}:   {StatusCancelled, StatusPending, TransitionOverride, true, HookLabelOnly},
	{StatusRefunded, StatusCompleted}:  {StatusRefunded, StatusCompleted, TransitionOverride, true, HookLabelOnly},
	{StatusCompleted, StatusCancelled}: {StatusCompleted, StatusCancelled, TransitionOverride, true, HookLabelOnly},
}

// TransitionError reports a rejected transition together with the targets
// that are reachable from the current status.
type TransitionError struct {
	From  Status
	To    Status
	Valid []Status
}

func (e *TransitionError) Error() string {
	valid := make([]string, len(e.Valid))
	for i, s := range e.Valid {
		valid[i] = string(s)
	}
	return fmt.Sprintf("invalid transition %s -> %s; valid transitions from %s: [%s]",
		e.From, e.To, e.From, strings.Join(valid, ", "))
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// LookupTransition returns the table entry for from -> to or a
// *TransitionError when the pair is not allowed.
func LookupTransition(from, to Status) (Transition, error) {
	if t, ok := transitionTable[edge{from, to}]; ok {
		return t, nil
	}
	return Transition{}, &TransitionError{From: from, To: to, Valid: ValidTargets(from)}
}

// ValidTargets lists the statuses reachable from s in a stable order.
func ValidTargets(s Status) []Status {
	targets := []Status{}
	for _, to := range allStatuses {
		if _, ok := transitionTable[edge{s, to}]; ok {
			targets = append(targets, to)
		}
	}
	return targets
}
