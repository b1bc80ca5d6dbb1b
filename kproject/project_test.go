package kproject

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b NodeID
		want int
	}{
		{"numeric", "2", "10", -1},
		{"numeric reversed", "10", "2", 1},
		{"equal", "7", "7", 0},
		{"numeric before text", "99", "a", -1},
		{"text after numeric", "a", "1", 1},
		{"text bytewise", "abc", "abd", -1},
		{"leading zeros tie break", "01", "1", -1},
		{"longer than int64", "100000000000000000000000", "99999999999999999999999", 1},
		{"negative is text", "-1", "0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestSorted(t *testing.T) {
	m := map[NodeID]int{"10": 0, "2": 0, "b": 0, "1": 0, "a": 0}
	assert.Equal(t, []NodeID{"1", "2", "10", "a", "b"}, Sorted(m))

	// Sorting must not depend on map iteration order
	for i := 0; i < 20; i++ {
		assert.Equal(t, []NodeID{"1", "2", "10", "a", "b"}, Sorted(m))
	}
}

func TestParse(t *testing.T) {
	t.Run("integer and string ids", func(t *testing.T) {
		p, err := Parse([]byte(`{
			"nodes": {
				"1": {"id": 1, "type": "core/button", "pins": {"PORT": "P1"}, "position": {"x": 100, "y": 100}},
				"2": {"type": "core/led", "pins": {"BRIGHTNESS": 0.5}}
			},
			"links": {
				"7": {"id": 7, "fromNodeId": 1, "fromPinKey": "PRESSED", "toNodeId": "2", "toPinKey": "IN"}
			}
		}`))
		assert.NoError(t, err)

		assert.Equal(t, 2, len(p.Nodes))
		assert.Equal(t, NodeID("1"), p.Nodes["1"].ID)
		assert.Equal(t, NodeID("2"), p.Nodes["2"].ID)
		assert.Equal(t, "core/button", p.Nodes["1"].Type)
		assert.Equal(t, any("P1"), p.Nodes["1"].Pins["PORT"])
		assert.Equal(t, any(json.Number("0.5")), p.Nodes["2"].Pins["BRIGHTNESS"])

		l := p.Links["7"]
		assert.Equal(t, LinkID("7"), l.ID)
		assert.Equal(t, NodeID("1"), l.FromNodeID)
		assert.Equal(t, NodeID("2"), l.ToNodeID)
	})

	t.Run("empty project", func(t *testing.T) {
		p, err := Parse([]byte(`{"nodes": {}, "links": {}}`))
		assert.NoError(t, err)
		assert.Equal(t, 0, len(p.Nodes))
		assert.Equal(t, 0, len(p.Links))
	})

	t.Run("missing maps", func(t *testing.T) {
		p, err := Parse([]byte(`{}`))
		assert.NoError(t, err)
		assert.NotEqual(t, (map[NodeID]*Node)(nil), p.Nodes)
		assert.NotEqual(t, (map[LinkID]*Link)(nil), p.Links)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Parse([]byte(`{"nodes": [`))
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidProject))
	})

	t.Run("trailing data", func(t *testing.T) {
		_, err := Parse([]byte(`{"nodes": {}, "links": {}} garbage`))
		assert.True(t, errors.Is(err, ErrInvalidProject))

		_, err = Parse([]byte(`{"nodes": {}} {"nodes": {}}`))
		assert.True(t, errors.Is(err, ErrInvalidProject))

		_, err = Parse([]byte("{\"nodes\": {}}\n\t \n"))
		assert.NoError(t, err)
	})

	t.Run("fractional id", func(t *testing.T) {
		_, err := Parse([]byte(`{"nodes": {"1": {"id": 1.5, "type": "x"}}}`))
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidProject))
	})

	t.Run("id disagrees with key", func(t *testing.T) {
		_, err := Parse([]byte(`{"nodes": {"1": {"id": "2", "type": "x"}}}`))
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidProject))
		assert.Contains(t, err.Error(), "stored under 1")
	})

	t.Run("whitespace in link key", func(t *testing.T) {
		_, err := Parse([]byte(`{"links": {"a b": {"fromNodeId": "1", "fromPinKey": "O", "toNodeId": "2", "toPinKey": "I"}}}`))
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidProject))
	})
}

func TestCanonical(t *testing.T) {
	a, err := Parse([]byte(`{"nodes": {"1": {"type": "t", "position": {"x": 1, "y": 2}}, "2": {"type": "u", "pins": {"B": 1, "A": 2}}}}`))
	assert.NoError(t, err)
	b, err := Parse([]byte(`{"nodes": {"2": {"type": "u", "pins": {"A": 2, "B": 1}}, "1": {"type": "t", "position": {"x": 50, "y": 60}}}}`))
	assert.NoError(t, err)

	ca, err := a.Canonical()
	assert.NoError(t, err)
	cb, err := b.Canonical()
	assert.NoError(t, err)
	assert.Equal(t, string(ca), string(cb))

	b.Nodes["1"].Type = "v"
	cb, err = b.Canonical()
	assert.NoError(t, err)
	assert.NotEqual(t, string(ca), string(cb))
}

func TestValidateDoesNotMutate(t *testing.T) {
	p := New()
	p.Nodes["1"] = &Node{Type: "core/button"}
	assert.NoError(t, p.Validate())
	assert.Equal(t, NodeID(""), p.Nodes["1"].ID)

	p.Nodes[""] = &Node{Type: "x"}
	err := p.Validate()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidProject))
	assert.True(t, slices.Contains(Sorted(p.Nodes), ""))
}
