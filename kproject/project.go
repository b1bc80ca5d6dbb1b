package kproject

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
)

// ErrInvalidProject is returned when a project cannot be decoded into the
// node/link shape or carries malformed ids.
var ErrInvalidProject = errors.New("invalid project")

// Project is the compilation unit: every node and link of one dataflow
// program. The compiler treats it as read-only.
type Project struct {
	Nodes map[NodeID]*Node `json:"nodes"`
	Links map[LinkID]*Link `json:"links"`
}

// Node is a single dataflow unit.
type Node struct {
	ID   NodeID `json:"id,omitempty"`
	Type string `json:"type"`

	// Pins holds literal values for input pins. Numbers are kept as
	// json.Number so that emitted literals match the input text.
	Pins map[PinKey]any `json:"pins,omitempty"`

	Position *Position `json:"position,omitempty"`
}

// Position is editor metadata; it has no effect on compilation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Link is a directed edge from an output pin to an input pin.
type Link struct {
	ID         LinkID `json:"id,omitempty"`
	FromNodeID NodeID `json:"fromNodeId"`
	FromPinKey PinKey `json:"fromPinKey"`
	ToNodeID   NodeID `json:"toNodeId"`
	ToPinKey   PinKey `json:"toPinKey"`
}

func (l *Link) String() string {
	return fmt.Sprintf("%s: %s.%s -> %s.%s", l.ID, l.FromNodeID, l.FromPinKey, l.ToNodeID, l.ToPinKey)
}

// New returns an empty project.
func New() *Project {
	return &Project{
		Nodes: make(map[NodeID]*Node),
		Links: make(map[LinkID]*Link),
	}
}

// Parse decodes a project from its JSON representation.
func Parse(data []byte) (*Project, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one JSON project from r. Anything but whitespace after it is
// an error. Node and link ids missing from the entries are taken from their
// map keys.
func Decode(r io.Reader) (*Project, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var p Project
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, ErrInvalidProject) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after the project", ErrInvalidProject)
	}
	if p.Nodes == nil {
		p.Nodes = make(map[NodeID]*Node)
	}
	if p.Links == nil {
		p.Links = make(map[LinkID]*Link)
	}
	for id, n := range p.Nodes {
		if n != nil && n.ID == "" {
			n.ID = id
		}
	}
	for id, l := range p.Links {
		if l != nil && l.ID == "" {
			l.ID = id
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks ids and entry consistency without modifying the project.
// An entry whose own id is empty inherits its map key.
func (p *Project) Validate() error {
	var err error
	for _, id := range Sorted(p.Nodes) {
		n := p.Nodes[id]
		if verr := id.Validate(); verr != nil {
			err = multierr.Append(err, verr)
			continue
		}
		if n == nil {
			err = multierr.Append(err, fmt.Errorf("%w: node %s is null", ErrInvalidProject, id))
			continue
		}
		if n.ID != "" && n.ID != id {
			err = multierr.Append(err, fmt.Errorf("%w: node stored under %s has id %s", ErrInvalidProject, id, n.ID))
		}
	}
	for _, id := range Sorted(p.Links) {
		l := p.Links[id]
		if verr := id.Validate(); verr != nil {
			err = multierr.Append(err, verr)
			continue
		}
		if l == nil {
			err = multierr.Append(err, fmt.Errorf("%w: link %s is null", ErrInvalidProject, id))
			continue
		}
		if l.ID != "" && l.ID != id {
			err = multierr.Append(err, fmt.Errorf("%w: link stored under %s has id %s", ErrInvalidProject, id, l.ID))
		}
	}
	return err
}

type canonicalNode struct {
	Type string         `json:"type"`
	Pins map[PinKey]any `json:"pins,omitempty"`
}

type canonicalProject struct {
	Nodes map[NodeID]canonicalNode `json:"nodes"`
	Links map[LinkID]Link          `json:"links"`
}

// Canonical returns a stable JSON encoding of everything that affects
// compilation. Editor metadata such as positions is left out, so two
// projects that compile identically encode identically.
func (p *Project) Canonical() ([]byte, error) {
	c := canonicalProject{
		Nodes: make(map[NodeID]canonicalNode, len(p.Nodes)),
		Links: make(map[LinkID]Link, len(p.Links)),
	}
	for id, n := range p.Nodes {
		if n == nil {
			continue
		}
		c.Nodes[id] = canonicalNode{Type: n.Type, Pins: n.Pins}
	}
	for id, l := range p.Links {
		if l == nil {
			continue
		}
		cl := *l
		cl.ID = id
		c.Links[id] = cl
	}
	return json.Marshal(c)
}
