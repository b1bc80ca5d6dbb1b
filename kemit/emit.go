// Package kemit renders a resolved project as JavaScript for the embedded
// runtime.
//
// The emitted text is the runtime preamble followed by three sections that
// the runtime locates by name:
//
//	var nodes = {};
//	nodes["1"] = button({"PORT":"P1"});
//	nodes["2"] = led({"PORT":"LED1"});
//	var topology = ["1","2"];
//	function onInit() {
//	  nodes["2"].inputs["IN"] = nodes["1"].outputs["PRESSED"];
//	}
//
// Output is a pure function of its inputs: nodes are constructed in id
// order, links are forwarded in link id order and config objects have
// sorted keys.
package kemit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/birdayz/xodc/kproject"
	"github.com/birdayz/xodc/kresolve"
	"github.com/birdayz/xodc/ktype"
	"go.uber.org/multierr"
)

// Identifiers shared with the runtime.
const (
	// RegistryIdent is the object holding every node keyed by id.
	RegistryIdent = "nodes"

	// TopologyIdent is the array of node ids in evaluation order.
	TopologyIdent = "topology"

	// InitHookIdent is the function the runtime calls once before the first
	// evaluation tick.
	InitHookIdent = "onInit"
)

const indent = "  "

// Emit generates the program for r. preamble is copied verbatim to the top
// of the output. Every problem found is reported; on error no text is
// returned.
func Emit(r *kresolve.Resolved, preamble string, types kresolve.TypeLookup) (string, error) {
	if types == nil {
		types = ktype.NewRegistry()
	}
	e := &emitter{types: types}

	var err error
	stmts := make([]string, 0, len(r.Nodes))
	for _, id := range kproject.Sorted(r.Nodes) {
		stmt, nerr := e.construct(r, id)
		if nerr != nil {
			err = multierr.Append(err, nerr)
			continue
		}
		stmts = append(stmts, stmt)
	}
	if err != nil {
		return "", err
	}

	if preamble != "" {
		e.sb.WriteString(preamble)
		if !strings.HasSuffix(preamble, "\n") {
			e.sb.WriteByte('\n')
		}
	}

	e.line("var %s = {};", RegistryIdent)
	for _, stmt := range stmts {
		e.line("%s", stmt)
	}

	topology := make([]string, len(r.Topology))
	for i, id := range r.Topology {
		topology[i] = quote(string(id))
	}
	e.line("var %s = [%s];", TopologyIdent, strings.Join(topology, ","))

	e.line("function %s() {", InitHookIdent)
	for _, l := range r.Links {
		e.line("%s%s = %s;", indent,
			pinRef(l.ToNodeID, "inputs", l.ToPinKey),
			pinRef(l.FromNodeID, "outputs", l.FromPinKey))
	}
	e.line("}")

	return e.sb.String(), nil
}

type emitter struct {
	types kresolve.TypeLookup
	sb    strings.Builder
}

func (e *emitter) line(format string, args ...any) {
	fmt.Fprintf(&e.sb, format, args...)
	e.sb.WriteByte('\n')
}

// construct renders the statement creating node id.
func (e *emitter) construct(r *kresolve.Resolved, id kproject.NodeID) (string, error) {
	n := r.Nodes[id]
	t, ok := e.types.Lookup(n.Type)
	if !ok {
		return "", &UnknownNodeTypeError{NodeID: id, Type: n.Type}
	}

	config, err := nodeConfig(r, id, t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s[%s] = %s(%s);", RegistryIdent, quote(string(id)), t.Constructor, config), nil
}

// nodeConfig builds the constructor argument of a node: configured literals
// of unlinked pins, then defaults of declared inputs that are still unset.
// A link always wins over a literal for the same pin.
func nodeConfig(r *kresolve.Resolved, id kproject.NodeID, t *ktype.NodeType) ([]byte, error) {
	n := r.Nodes[id]
	config := make(map[kproject.PinKey]json.RawMessage, len(n.Pins))

	var err error
	for _, key := range kproject.Sorted(n.Pins) {
		v := n.Pins[key]
		if v == nil || linked(r, id, key) {
			continue
		}
		raw, merr := json.Marshal(v)
		if merr != nil {
			err = multierr.Append(err, &PinValueError{NodeID: id, PinKey: key, Err: merr})
			continue
		}
		if def, ok := t.Inputs[key]; ok {
			raw, merr = def.Coerce(raw)
			if merr != nil {
				err = multierr.Append(err, &PinValueError{NodeID: id, PinKey: key, Err: merr})
				continue
			}
		}
		config[key] = raw
	}
	if err != nil {
		return nil, err
	}

	for key, def := range t.Inputs {
		if len(def.Default) == 0 || linked(r, id, key) {
			continue
		}
		if _, set := config[key]; !set {
			config[key] = def.Default
		}
	}

	// Map keys are sorted by encoding/json.
	return json.Marshal(config)
}

func linked(r *kresolve.Resolved, id kproject.NodeID, key kproject.PinKey) bool {
	_, ok := r.Sources[kresolve.PinRef{NodeID: id, PinKey: key}]
	return ok
}

func pinRef(id kproject.NodeID, dir string, key kproject.PinKey) string {
	return fmt.Sprintf("%s[%s].%s[%s]", RegistryIdent, quote(string(id)), dir, quote(string(key)))
}

// quote renders s as a JavaScript string literal. JSON strings are valid
// JavaScript, and encoding/json escapes U+2028 and U+2029.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
