package dom

import "errors"

var (
	// ErrTargetNotFound is returned when no node matches an element's target selector.
	ErrTargetNotFound = errors.New("target element not found")
	// ErrInvalidSelector is returned when a target is not a valid CSS selector.
	ErrInvalidSelector = errors.New("invalid target selector")
	// ErrMissingTag is returned for descriptors without an element name.
	ErrMissingTag = errors.New("element tag is required")
	// ErrInvalidAttr is returned when an attribute is not a [name, value] pair.
	ErrInvalidAttr = errors.New("attribute must be a [name, value] pair")
)
