package kproject

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// NodeID identifies a node within a project.
// The editor writes integer ids; they are kept as their decimal text.
type NodeID string

// LinkID identifies a link within a project.
type LinkID string

// PinKey names a pin on a node.
type PinKey string

// Validate checks if the NodeID is valid.
// Returns ErrInvalidProject if the ID is empty or contains whitespace.
func (id NodeID) Validate() error {
	return validateID("node", string(id))
}

// Validate checks if the LinkID is valid.
func (id LinkID) Validate() error {
	return validateID("link", string(id))
}

func validateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id cannot be empty", ErrInvalidProject, kind)
	}
	if strings.ContainsAny(id, " \t\n\r") {
		return fmt.Errorf("%w: %s id %q cannot contain whitespace", ErrInvalidProject, kind, id)
	}
	return nil
}

func (id *NodeID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalID(b)
	if err != nil {
		return err
	}
	*id = NodeID(s)
	return nil
}

func (id *LinkID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalID(b)
	if err != nil {
		return err
	}
	*id = LinkID(s)
	return nil
}

// unmarshalID accepts both "7" and 7.
func unmarshalID(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", fmt.Errorf("%w: id must be a string or an integer, got %s", ErrInvalidProject, b)
	}
	if _, err := n.Int64(); err != nil {
		return "", fmt.Errorf("%w: id must be a string or an integer, got %s", ErrInvalidProject, b)
	}
	return n.String(), nil
}

// Compare is the total order over ids used wherever output must be
// deterministic. Ids made only of ASCII digits compare numerically and sort
// before all other ids; other ids compare bytewise. Numerically equal ids
// ("01", "1") fall back to bytewise comparison.
func Compare[T ~string](a, b T) int {
	an, bn := isDigits(string(a)), isDigits(string(b))
	switch {
	case an && bn:
		if c := compareDigits(string(a), string(b)); c != 0 {
			return c
		}
		return strings.Compare(string(a), string(b))
	case an:
		return -1
	case bn:
		return 1
	default:
		return strings.Compare(string(a), string(b))
	}
}

// Sorted returns the keys of m in Compare order.
func Sorted[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, Compare[K])
	return keys
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// compareDigits compares two digit strings by value without parsing, so ids
// longer than int64 still order correctly.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
