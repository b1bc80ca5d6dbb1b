package xodc

import (
	"errors"

	"github.com/birdayz/xodc/kemit"
	"github.com/birdayz/xodc/kproject"
	"github.com/birdayz/xodc/kresolve"
	"github.com/birdayz/xodc/ktype"
	"go.uber.org/multierr"
)

var (
	ErrInvalidProject  = kproject.ErrInvalidProject
	ErrInvalidType     = ktype.ErrInvalidType
	ErrDanglingLink    = kresolve.ErrDanglingLink
	ErrMultipleSources = kresolve.ErrMultipleSources
	ErrCyclicGraph     = kresolve.ErrCyclicGraph
	ErrUnboundPin      = kresolve.ErrUnboundPin
	ErrUnknownNodeType = kemit.ErrUnknownNodeType
	ErrPinValue        = kemit.ErrPinValue
)

type (
	DanglingLinkError    = kresolve.DanglingLinkError
	MultipleSourcesError = kresolve.MultipleSourcesError
	CyclicGraphError     = kresolve.CyclicGraphError
	UnboundPinError      = kresolve.UnboundPinError
	UnknownNodeTypeError = kemit.UnknownNodeTypeError
	PinValueError        = kemit.PinValueError
)

// Error kinds returned by ErrorKind.
const (
	KindInvalidProject  = "invalid_project"
	KindInvalidType     = "invalid_type"
	KindDanglingLink    = "dangling_link"
	KindMultipleSources = "multiple_sources"
	KindCyclicGraph     = "cyclic_graph"
	KindUnboundPin      = "unbound_pin"
	KindUnknownNodeType = "unknown_node_type"
	KindPinValue        = "pin_value"
	KindCanceled        = "canceled"
	KindInternal        = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidProject, KindInvalidProject},
	{ErrInvalidType, KindInvalidType},
	{ErrDanglingLink, KindDanglingLink},
	{ErrMultipleSources, KindMultipleSources},
	{ErrCyclicGraph, KindCyclicGraph},
	{ErrUnboundPin, KindUnboundPin},
	{ErrUnknownNodeType, KindUnknownNodeType},
	{ErrPinValue, KindPinValue},
}

// ErrorKind maps a compile error to a stable identifier. When err combines
// several errors, the kind of the first one is returned. ErrorKind returns
// "" for a nil error.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	first := multierr.Errors(err)[0]
	for _, k := range kinds {
		if errors.Is(first, k.err) {
			return k.kind
		}
	}
	if isCanceled(first) {
		return KindCanceled
	}
	return KindInternal
}

// IsCompileError reports whether err is caused by the compiled input rather
// than by the environment.
func IsCompileError(err error) bool {
	switch ErrorKind(err) {
	case "", KindInternal, KindCanceled:
		return false
	}
	return true
}
