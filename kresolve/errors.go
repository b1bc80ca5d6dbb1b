package kresolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/birdayz/xodc/kproject"
)

// Sentinel errors for resolution failures. Each typed error below unwraps
// to its sentinel so callers can use either errors.Is or errors.As.
var (
	ErrDanglingLink    = errors.New("dangling link")
	ErrMultipleSources = errors.New("multiple sources for input pin")
	ErrCyclicGraph     = errors.New("cyclic graph")
	ErrUnboundPin      = errors.New("unbound input pin")
)

// DanglingLinkError reports a link whose endpoint does not exist.
type DanglingLinkError struct {
	LinkID kproject.LinkID
	NodeID kproject.NodeID
	PinKey kproject.PinKey

	// Pin is true when the node exists but the pin does not.
	Pin bool
}

func (e *DanglingLinkError) Error() string {
	if !e.Pin {
		return fmt.Sprintf("%s: link %s references unknown node %q", ErrDanglingLink, e.LinkID, e.NodeID)
	}
	return fmt.Sprintf("%s: link %s references unknown pin %q of node %s", ErrDanglingLink, e.LinkID, e.PinKey, e.NodeID)
}

func (e *DanglingLinkError) Unwrap() error { return ErrDanglingLink }

// MultipleSourcesError reports an input pin targeted by more than one link.
type MultipleSourcesError struct {
	NodeID  kproject.NodeID
	PinKey  kproject.PinKey
	LinkIDs []kproject.LinkID
}

func (e *MultipleSourcesError) Error() string {
	return fmt.Sprintf("%s: pin %s of node %s is the target of links %s",
		ErrMultipleSources, e.PinKey, e.NodeID, joinIDs(e.LinkIDs, ", "))
}

func (e *MultipleSourcesError) Unwrap() error { return ErrMultipleSources }

// CyclicGraphError reports that no topological order exists.
type CyclicGraphError struct {
	// Blocked holds every node that could not be ordered, sorted.
	Blocked []kproject.NodeID

	// Cycle is one concrete cycle among the blocked nodes; the first and
	// last entries are the same node.
	Cycle []kproject.NodeID
}

func (e *CyclicGraphError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("%s: %s", ErrCyclicGraph, joinIDs(e.Cycle, " -> "))
	}
	return fmt.Sprintf("%s: blocked nodes %s", ErrCyclicGraph, joinIDs(e.Blocked, ", "))
}

func (e *CyclicGraphError) Unwrap() error { return ErrCyclicGraph }

// UnboundPinError reports a required input pin with neither a link, a
// configured value nor a default.
type UnboundPinError struct {
	NodeID kproject.NodeID
	PinKey kproject.PinKey
}

func (e *UnboundPinError) Error() string {
	return fmt.Sprintf("%s: required pin %s of node %s has no link, value or default", ErrUnboundPin, e.PinKey, e.NodeID)
}

func (e *UnboundPinError) Unwrap() error { return ErrUnboundPin }

func joinIDs[T ~string](ids []T, sep string) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, sep)
}
