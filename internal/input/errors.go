package input

import "errors"

var (
	ErrEmptyCombo      = errors.New("missing key_combo value")
	ErrUnknownModifier = errors.New("unsupported modifier")
	ErrUnknownKey      = errors.New("unsupported key")
	ErrEventCreation   = errors.New("failed to create system input event")
	ErrAppNotFound     = errors.New("could not resolve bundle id")
	ErrLaunchTimeout   = errors.New("timed out launching app")
	ErrNoFrontmostApp  = errors.New("unable to detect frontmost app")
)
