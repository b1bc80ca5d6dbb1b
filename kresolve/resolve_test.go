package kresolve

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/birdayz/xodc/kproject"
	"github.com/birdayz/xodc/ktype"
	"go.uber.org/multierr"
)

func TestResolveTopology(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		links map[string]string
		want  []kproject.NodeID
	}{
		{
			name: "empty project",
			want: []kproject.NodeID{},
		},
		{
			name:  "no links sorts by id",
			nodes: []string{"3", "10", "1", "2"},
			want:  ids("1", "2", "3", "10"),
		},
		{
			name:  "single link",
			nodes: []string{"1", "2"},
			links: map[string]string{"a": "1.OUT>2.IN"},
			want:  ids("1", "2"),
		},
		{
			name:  "link against id order",
			nodes: []string{"1", "2"},
			links: map[string]string{"a": "2.OUT>1.IN"},
			want:  ids("2", "1"),
		},
		{
			name:  "diamond",
			nodes: []string{"1", "2", "3", "4"},
			links: map[string]string{
				"a": "1.OUT>3.A",
				"b": "1.OUT>2.A",
				"c": "2.OUT>4.A",
				"d": "3.OUT>4.B",
			},
			want: ids("1", "2", "3", "4"),
		},
		{
			name:  "ready nodes inserted in order",
			nodes: []string{"9", "5", "1", "7"},
			links: map[string]string{
				"a": "9.OUT>1.IN",
				"b": "9.OUT>7.IN",
			},
			want: ids("5", "9", "1", "7"),
		},
		{
			name:  "parallel links count once",
			nodes: []string{"a", "b"},
			links: map[string]string{
				"l1": "b.X>a.IN1",
				"l2": "b.Y>a.IN2",
			},
			want: ids("b", "a"),
		},
		{
			name:  "numeric before named",
			nodes: []string{"node", "2", "10"},
			want:  ids("2", "10", "node"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProject(tt.nodes, tt.links)
			r, err := Resolve(p)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, r.Topology)
			assertTopologicalOrder(t, r)
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	links := map[string]string{
		"1": "1.OUT>4.A",
		"2": "2.OUT>4.B",
		"3": "4.OUT>5.A",
		"4": "3.OUT>5.B",
	}
	first, err := Resolve(newProject([]string{"1", "2", "3", "4", "5"}, links))
	assert.NoError(t, err)

	for range 20 {
		again, err := Resolve(newProject([]string{"5", "4", "3", "2", "1"}, links))
		assert.NoError(t, err)
		assert.Equal(t, first.Topology, again.Topology)
		assert.Equal(t, first.Links, again.Links)
	}
}

func TestResolveDoesNotMutate(t *testing.T) {
	p := newProject([]string{"1", "2"}, map[string]string{"a": "1.OUT>2.IN"})
	r, err := Resolve(p)
	assert.NoError(t, err)

	assert.Equal(t, kproject.LinkID(""), p.Links["a"].ID)
	assert.Equal(t, kproject.LinkID("a"), r.Links[0].ID)

	src, ok := r.Sources[PinRef{NodeID: "2", PinKey: "IN"}]
	assert.True(t, ok)
	assert.Equal(t, kproject.LinkID("a"), src.ID)
}

func TestResolveCycle(t *testing.T) {
	t.Run("two node cycle", func(t *testing.T) {
		p := newProject([]string{"x", "y", "z"}, map[string]string{
			"1": "x.OUT>y.IN",
			"2": "y.OUT>x.IN",
			"3": "y.OUT>z.IN",
		})
		r, err := Resolve(p)
		assert.Zero(t, r)
		assert.True(t, errors.Is(err, ErrCyclicGraph))

		var cerr *CyclicGraphError
		assert.True(t, errors.As(err, &cerr))
		assert.Equal(t, ids("x", "y", "z"), cerr.Blocked)
		assert.Equal(t, ids("x", "y", "x"), cerr.Cycle)
		assert.Contains(t, err.Error(), "x -> y -> x")
	})

	t.Run("self link", func(t *testing.T) {
		p := newProject([]string{"1"}, map[string]string{"a": "1.OUT>1.IN"})
		_, err := Resolve(p)
		var cerr *CyclicGraphError
		assert.True(t, errors.As(err, &cerr))
		assert.Equal(t, ids("1"), cerr.Blocked)
		assert.Equal(t, ids("1", "1"), cerr.Cycle)
	})

	t.Run("downstream of cycle is blocked", func(t *testing.T) {
		p := newProject([]string{"1", "2", "3", "4"}, map[string]string{
			"a": "1.OUT>2.IN",
			"b": "3.OUT>4.IN",
			"c": "4.OUT>3.IN",
			"d": "4.OUT>1.IN",
		})
		_, err := Resolve(p)
		var cerr *CyclicGraphError
		assert.True(t, errors.As(err, &cerr))
		assert.Equal(t, ids("1", "2", "3", "4"), cerr.Blocked)
		assert.Equal(t, ids("3", "4", "3"), cerr.Cycle)
	})
}

func TestResolveStructuralErrors(t *testing.T) {
	t.Run("dangling target", func(t *testing.T) {
		p := newProject([]string{"1"}, map[string]string{"a": "1.OUT>2.IN"})
		_, err := Resolve(p)
		assert.True(t, errors.Is(err, ErrDanglingLink))

		var derr *DanglingLinkError
		assert.True(t, errors.As(err, &derr))
		assert.Equal(t, kproject.LinkID("a"), derr.LinkID)
		assert.Equal(t, kproject.NodeID("2"), derr.NodeID)
	})

	t.Run("dangling source reported first", func(t *testing.T) {
		p := newProject(nil, map[string]string{"a": "1.OUT>2.IN"})
		_, err := Resolve(p)
		var derr *DanglingLinkError
		assert.True(t, errors.As(err, &derr))
		assert.Equal(t, kproject.NodeID("1"), derr.NodeID)
	})

	t.Run("empty pin key", func(t *testing.T) {
		p := newProject([]string{"1", "2"}, nil)
		p.Links["a"] = &kproject.Link{FromNodeID: "1", FromPinKey: "OUT", ToNodeID: "2"}
		_, err := Resolve(p)
		assert.True(t, errors.Is(err, ErrDanglingLink))
	})

	t.Run("fan in", func(t *testing.T) {
		p := newProject([]string{"1", "2", "3"}, map[string]string{
			"b": "2.OUT>3.IN",
			"a": "1.OUT>3.IN",
		})
		_, err := Resolve(p)
		assert.True(t, errors.Is(err, ErrMultipleSources))

		var merr *MultipleSourcesError
		assert.True(t, errors.As(err, &merr))
		assert.Equal(t, kproject.NodeID("3"), merr.NodeID)
		assert.Equal(t, kproject.PinKey("IN"), merr.PinKey)
		assert.Equal(t, []kproject.LinkID{"a", "b"}, merr.LinkIDs)
	})

	t.Run("fan out is allowed", func(t *testing.T) {
		p := newProject([]string{"1", "2", "3"}, map[string]string{
			"a": "1.OUT>2.IN",
			"b": "1.OUT>3.IN",
		})
		r, err := Resolve(p)
		assert.NoError(t, err)
		assert.Equal(t, ids("1", "2", "3"), r.Topology)
	})

	t.Run("all problems reported together", func(t *testing.T) {
		p := newProject([]string{"1", "2", "3"}, map[string]string{
			"a": "1.OUT>3.IN",
			"b": "2.OUT>3.IN",
			"c": "1.OUT>9.IN",
			"d": "3.OUT>1.X",
		})
		_, err := Resolve(p)
		errs := multierr.Errors(err)
		assert.Equal(t, 2, len(errs))
		assert.True(t, errors.Is(errs[0], ErrDanglingLink))
		assert.True(t, errors.Is(errs[1], ErrMultipleSources))
		// Cycle checking waits for a valid structure.
		assert.False(t, errors.Is(err, ErrCyclicGraph))
	})

	t.Run("invalid project", func(t *testing.T) {
		p := newProject([]string{"1"}, nil)
		p.Nodes["2"] = nil
		_, err := Resolve(p)
		assert.True(t, errors.Is(err, kproject.ErrInvalidProject))

		_, err = Resolve(nil)
		assert.True(t, errors.Is(err, kproject.ErrInvalidProject))
	})
}

func TestResolveWithRegistry(t *testing.T) {
	types, err := ktype.ParseHCL([]byte(`
node "src" {
  constructor = "src"
  output "OUT" {}
}

node "sink" {
  constructor = "sink"
  input "IN" {
    required = true
  }
  input "LEVEL" {
    default  = 1
    required = true
  }
}
`), "types.hcl")
	assert.NoError(t, err)

	node := func(typ string) *kproject.Node { return &kproject.Node{Type: typ} }

	t.Run("bound pins", func(t *testing.T) {
		p := kproject.New()
		p.Nodes["1"] = node("src")
		p.Nodes["2"] = node("sink")
		p.Links["a"] = &kproject.Link{FromNodeID: "1", FromPinKey: "OUT", ToNodeID: "2", ToPinKey: "IN"}
		r, err := Resolve(p, WithRegistry(types))
		assert.NoError(t, err)
		assert.Equal(t, ids("1", "2"), r.Topology)
	})

	t.Run("configured value binds required pin", func(t *testing.T) {
		p := kproject.New()
		p.Nodes["2"] = &kproject.Node{Type: "sink", Pins: map[kproject.PinKey]any{"IN": true}}
		_, err := Resolve(p, WithRegistry(types))
		assert.NoError(t, err)
	})

	t.Run("unbound required pin", func(t *testing.T) {
		p := kproject.New()
		p.Nodes["2"] = node("sink")
		_, err := Resolve(p, WithRegistry(types))
		assert.True(t, errors.Is(err, ErrUnboundPin))

		var uerr *UnboundPinError
		assert.True(t, errors.As(err, &uerr))
		assert.Equal(t, kproject.PinKey("IN"), uerr.PinKey)

		// Without a registry, no pin checks happen.
		_, err = Resolve(p)
		assert.NoError(t, err)
	})

	t.Run("unknown pins", func(t *testing.T) {
		p := kproject.New()
		p.Nodes["1"] = node("src")
		p.Nodes["2"] = node("sink")
		p.Links["a"] = &kproject.Link{FromNodeID: "1", FromPinKey: "NOPE", ToNodeID: "2", ToPinKey: "IN"}
		p.Links["b"] = &kproject.Link{FromNodeID: "1", FromPinKey: "OUT", ToNodeID: "2", ToPinKey: "MISSING"}
		_, err := Resolve(p, WithRegistry(types))

		errs := multierr.Errors(err)
		assert.Equal(t, 3, len(errs))
		var derr *DanglingLinkError
		assert.True(t, errors.As(errs[0], &derr))
		assert.Equal(t, kproject.PinKey("NOPE"), derr.PinKey)
		assert.True(t, errors.As(errs[1], &derr))
		assert.Equal(t, kproject.PinKey("MISSING"), derr.PinKey)
		assert.True(t, errors.Is(errs[2], ErrUnboundPin))
	})

	t.Run("types without schema are not checked", func(t *testing.T) {
		assert.NoError(t, types.Register(&ktype.NodeType{Name: "loose", Constructor: "loose"}))
		p := kproject.New()
		p.Nodes["1"] = node("loose")
		p.Nodes["2"] = node("mystery")
		p.Links["a"] = &kproject.Link{FromNodeID: "1", FromPinKey: "ANY", ToNodeID: "2", ToPinKey: "THING"}
		_, err := Resolve(p, WithRegistry(types))
		assert.NoError(t, err)
	})
}

func assertTopologicalOrder(t *testing.T, r *Resolved) {
	t.Helper()
	pos := make(map[kproject.NodeID]int, len(r.Topology))
	for i, id := range r.Topology {
		pos[id] = i
	}
	assert.Equal(t, len(r.Nodes), len(pos))
	for _, l := range r.Links {
		assert.True(t, pos[l.FromNodeID] < pos[l.ToNodeID], "link %s out of order", l)
	}
}
