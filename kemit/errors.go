package kemit

import (
	"errors"
	"fmt"

	"github.com/birdayz/xodc/kproject"
)

var (
	ErrUnknownNodeType = errors.New("unknown node type")
	ErrPinValue        = errors.New("invalid pin value")
)

// UnknownNodeTypeError reports a node whose type has no constructor.
type UnknownNodeTypeError struct {
	NodeID kproject.NodeID
	Type   string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("%s: node %s has type %q", ErrUnknownNodeType, e.NodeID, e.Type)
}

func (e *UnknownNodeTypeError) Unwrap() error { return ErrUnknownNodeType }

// PinValueError reports a configured literal that cannot be converted to the
// declared type of its pin.
type PinValueError struct {
	NodeID kproject.NodeID
	PinKey kproject.PinKey
	Err    error
}

func (e *PinValueError) Error() string {
	return fmt.Sprintf("%s: pin %s of node %s: %v", ErrPinValue, e.PinKey, e.NodeID, e.Err)
}

func (e *PinValueError) Unwrap() []error { return []error{ErrPinValue, e.Err} }
