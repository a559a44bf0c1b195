package session

import "errors"

var (
	ErrNotListening       = errors.New("session is not listening")
	ErrNoPendingPlan      = errors.New("no plan is awaiting confirmation")
	ErrBusy               = errors.New("session is busy")
	ErrCredentialRequired = errors.New("planner credential required")
)
