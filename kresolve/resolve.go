package kresolve

import (
	"fmt"
	"slices"

	"github.com/birdayz/xodc/kproject"
	"github.com/birdayz/xodc/ktype"
	"go.uber.org/multierr"
)

// TypeLookup resolves node type names. *ktype.Registry implements it.
type TypeLookup interface {
	Lookup(name string) (*ktype.NodeType, bool)
}

// Resolved is a project whose links have been checked and whose nodes have
// been put in evaluation order.
type Resolved struct {
	Nodes map[kproject.NodeID]*kproject.Node

	// Links sorted by id. Each carries its map key as ID.
	Links []*kproject.Link

	// Topology lists every node exactly once; a node never precedes a node
	// it consumes from.
	Topology []kproject.NodeID

	// Sources maps each linked input pin to the link that feeds it.
	Sources map[PinRef]*kproject.Link
}

// PinRef addresses a single pin of a node.
type PinRef struct {
	NodeID kproject.NodeID
	PinKey kproject.PinKey
}

func (r PinRef) String() string {
	return fmt.Sprintf("%s.%s", r.NodeID, r.PinKey)
}

type resolver struct {
	types TypeLookup
}

// Option configures Resolve.
type Option func(*resolver)

// WithRegistry enables pin-level checks against node type schemas: links
// must name a declared output and a declared input, and required inputs must
// be bound. Types without a schema, and unknown types, are not checked here.
var WithRegistry = func(types TypeLookup) Option {
	return func(r *resolver) {
		r.types = types
	}
}

// Resolve checks the structure of p and computes its topological order.
// Structural problems are all reported together, in link id order; the
// graph is only checked for cycles once its structure is valid. p is not
// modified.
func Resolve(p *kproject.Project, opts ...Option) (*Resolved, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: project is nil", kproject.ErrInvalidProject)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r := &resolver{}
	for _, opt := range opts {
		opt(r)
	}

	g := NewGraph()
	for id := range p.Nodes {
		g.addNode(id)
	}

	var err error
	links := make([]*kproject.Link, 0, len(p.Links))
	targets := make(map[PinRef][]*kproject.Link)
	for _, id := range kproject.Sorted(p.Links) {
		l := *p.Links[id]
		l.ID = id

		if lerr := r.checkLink(p, &l); lerr != nil {
			err = multierr.Append(err, lerr)
			continue
		}

		ref := PinRef{NodeID: l.ToNodeID, PinKey: l.ToPinKey}
		targets[ref] = append(targets[ref], &l)
		links = append(links, &l)
	}

	refs := make([]PinRef, 0, len(targets))
	for ref := range targets {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, comparePinRefs)

	sources := make(map[PinRef]*kproject.Link, len(targets))
	for _, ref := range refs {
		ls := targets[ref]
		if len(ls) > 1 {
			ids := make([]kproject.LinkID, len(ls))
			for i, l := range ls {
				ids[i] = l.ID
			}
			err = multierr.Append(err, &MultipleSourcesError{NodeID: ref.NodeID, PinKey: ref.PinKey, LinkIDs: ids})
			continue
		}
		sources[ref] = ls[0]
	}

	if r.types != nil {
		err = multierr.Append(err, r.checkBindings(p, targets))
	}

	if err != nil {
		return nil, err
	}

	for _, l := range links {
		g.addEdge(l.FromNodeID, l.ToNodeID)
	}
	topology, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Nodes:    p.Nodes,
		Links:    links,
		Topology: topology,
		Sources:  sources,
	}, nil
}

// checkLink verifies both endpoints of l. The source endpoint is reported
// first when both are dangling.
func (r *resolver) checkLink(p *kproject.Project, l *kproject.Link) error {
	if err := r.checkEndpoint(p, l.ID, l.FromNodeID, l.FromPinKey, false); err != nil {
		return err
	}
	return r.checkEndpoint(p, l.ID, l.ToNodeID, l.ToPinKey, true)
}

func (r *resolver) checkEndpoint(p *kproject.Project, linkID kproject.LinkID, nodeID kproject.NodeID, key kproject.PinKey, input bool) error {
	n, ok := p.Nodes[nodeID]
	if !ok {
		return &DanglingLinkError{LinkID: linkID, NodeID: nodeID, PinKey: key}
	}
	if key == "" {
		return &DanglingLinkError{LinkID: linkID, NodeID: nodeID, Pin: true}
	}
	if r.types == nil {
		return nil
	}

	t, ok := r.types.Lookup(n.Type)
	if !ok || !t.HasSchema() {
		return nil
	}
	pins := t.Outputs
	if input {
		pins = t.Inputs
	}
	if _, ok := pins[key]; !ok {
		return &DanglingLinkError{LinkID: linkID, NodeID: nodeID, PinKey: key, Pin: true}
	}
	return nil
}

// checkBindings reports required inputs that have neither a link, a
// configured value nor a default. Nodes and pins are visited in id order.
func (r *resolver) checkBindings(p *kproject.Project, targets map[PinRef][]*kproject.Link) error {
	var err error
	for _, id := range kproject.Sorted(p.Nodes) {
		n := p.Nodes[id]
		t, ok := r.types.Lookup(n.Type)
		if !ok {
			continue
		}
		for _, key := range kproject.Sorted(t.Inputs) {
			def := t.Inputs[key]
			if !def.Required {
				continue
			}
			if _, linked := targets[PinRef{NodeID: id, PinKey: key}]; linked {
				continue
			}
			if v, configured := n.Pins[key]; configured && v != nil {
				continue
			}
			if len(def.Default) > 0 {
				continue
			}
			err = multierr.Append(err, &UnboundPinError{NodeID: id, PinKey: key})
		}
	}
	return err
}

func comparePinRefs(a, b PinRef) int {
	if c := kproject.Compare(a.NodeID, b.NodeID); c != 0 {
		return c
	}
	return kproject.Compare(a.PinKey, b.PinKey)
}
