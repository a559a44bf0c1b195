package axtree

import "errors"

var (
	ErrNoFrontmostApp = errors.New("no frontmost application")
	ErrDetachedNode   = errors.New("node does not belong to this snapshot")
	ErrMalformedDump  = errors.New("malformed accessibility dump")
)
