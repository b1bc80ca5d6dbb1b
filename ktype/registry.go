// Package ktype holds the node type registry: the explicit lookup table that
// maps a node type reference (for example "core/button") to the name of the
// runtime constructor the emitted code calls, plus optional pin schemas.
//
// Types can be registered from Go, loaded from HCL files (see ParseHCL) or
// taken from the built-in Core table.
package ktype

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/birdayz/xodc/kproject"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

var (
	ErrInvalidType           = errors.New("invalid node type")
	ErrTypeAlreadyRegistered = errors.New("node type already registered")
)

var constructorPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// reservedWords cannot start a constructor expression. Later segments are
// property names, where reserved words are allowed.
var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "implements": true, "import": true,
	"in": true, "instanceof": true, "interface": true, "let": true,
	"new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true,
}

// PinDef describes one declared pin of a node type.
type PinDef struct {
	Key kproject.PinKey

	// Default is the JSON encoding of the value the runtime receives when
	// the pin is neither linked nor configured. Nil means no default.
	Default json.RawMessage

	// Type constrains configured literals. Only meaningful if Typed is set.
	Type  cty.Type
	Typed bool

	Required bool
}

// Coerce converts a JSON literal to the pin's declared type and returns its
// JSON encoding. Untyped pins return the literal unchanged.
func (p *PinDef) Coerce(raw json.RawMessage) (json.RawMessage, error) {
	if !p.Typed || p.Type.Equals(cty.DynamicPseudoType) || string(raw) == "null" {
		return raw, nil
	}
	implied, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return nil, err
	}
	v, err := ctyjson.Unmarshal(raw, implied)
	if err != nil {
		return nil, err
	}
	cv, err := convert.Convert(v, p.Type)
	if err != nil {
		return nil, err
	}
	return ctyjson.Marshal(cv, p.Type)
}

// NodeType maps a type reference to its runtime constructor.
type NodeType struct {
	Name        string
	Constructor string

	// Inputs and Outputs are nil when the type declares no pin schema; pin
	// keys of such types are not checked.
	Inputs  map[kproject.PinKey]*PinDef
	Outputs map[kproject.PinKey]*PinDef
}

// HasSchema reports whether pins of this type can be validated.
func (t *NodeType) HasSchema() bool {
	return t.Inputs != nil || t.Outputs != nil
}

// Validate checks the type name and constructor identifier.
func (t *NodeType) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: type name cannot be empty", ErrInvalidType)
	}
	if !constructorPattern.MatchString(t.Constructor) {
		return fmt.Errorf("%w: %s: constructor %q is not an identifier", ErrInvalidType, t.Name, t.Constructor)
	}
	if head, _, _ := strings.Cut(t.Constructor, "."); reservedWords[head] {
		return fmt.Errorf("%w: %s: constructor %q is a reserved word", ErrInvalidType, t.Name, head)
	}
	for key := range t.Inputs {
		if _, dup := t.Outputs[key]; dup {
			return fmt.Errorf("%w: %s: pin %s declared as input and output", ErrInvalidType, t.Name, key)
		}
	}
	return nil
}

// Registry is a set of node types keyed by name. A Registry is not safe for
// concurrent mutation; once populated it may be read concurrently.
type Registry struct {
	types map[string]*NodeType
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*NodeType)}
}

// FromConstructors builds a registry without pin schemas from a plain
// type → constructor table.
func FromConstructors(table map[string]string) (*Registry, error) {
	r := NewRegistry()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := r.Register(&NodeType{Name: name, Constructor: table[name]}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a type. Registering the same name twice is an error.
func (r *Registry) Register(t *NodeType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrTypeAlreadyRegistered, t.Name)
	}
	r.types[t.Name] = t
	return nil
}

// Merge copies all types of other into r. Types in other replace types of
// the same name, so project-local definitions can override Core.
func (r *Registry) Merge(other *Registry) {
	for name, t := range other.types {
		r.types[name] = t
	}
}

func (r *Registry) Lookup(name string) (*NodeType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Constructor returns the constructor name for a type.
func (r *Registry) Constructor(name string) (string, bool) {
	t, ok := r.types[name]
	if !ok {
		return "", false
	}
	return t.Constructor, true
}

// Names returns all registered type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) Len() int {
	return len(r.types)
}

// Fingerprint is a digest over everything in the registry that influences
// emitted code. Two registries with equal fingerprints emit equal code.
func (r *Registry) Fingerprint() string {
	h := sha256.New()
	for _, name := range r.Names() {
		t := r.types[name]
		fmt.Fprintf(h, "type %q %q %t\n", t.Name, t.Constructor, t.HasSchema())
		writePins(h, "in", t.Inputs)
		writePins(h, "out", t.Outputs)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writePins(w io.Writer, dir string, pins map[kproject.PinKey]*PinDef) {
	for _, key := range kproject.Sorted(pins) {
		p := pins[key]
		typ := "-"
		if p.Typed {
			typ = p.Type.GoString()
		}
		fmt.Fprintf(w, "%s %q %s %t %s\n", dir, key, typ, p.Required, p.Default)
	}
}
