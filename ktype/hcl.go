package ktype

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/birdayz/xodc/kproject"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

//go:embed core.hcl
var coreHCL []byte

// hclFile is the top-level structure of a registry file.
type hclFile struct {
	Nodes []*hclNode `hcl:"node,block"`
}

type hclNode struct {
	Name        string    `hcl:"name,label"`
	Constructor string    `hcl:"constructor"`
	Inputs      []*hclPin `hcl:"input,block"`
	Outputs     []*hclPin `hcl:"output,block"`
}

type hclPin struct {
	Key      string         `hcl:"key,label"`
	Type     hcl.Expression `hcl:"type,optional"`
	Default  hcl.Expression `hcl:"default,optional"`
	Required bool           `hcl:"required,optional"`
}

// Core returns a fresh copy of the built-in registry of core node types.
func Core() *Registry {
	r, err := ParseHCL(coreHCL, "core.hcl")
	if err != nil {
		panic(fmt.Sprintf("ktype: built-in core registry is invalid: %v", err))
	}
	return r
}

// LoadFiles parses each HCL registry file and merges them in order; later
// files override types defined by earlier ones.
func LoadFiles(paths ...string) (*Registry, error) {
	r := NewRegistry()
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read type registry %s: %w", path, err)
		}
		fr, err := ParseHCL(src, path)
		if err != nil {
			return nil, err
		}
		r.Merge(fr)
	}
	return r, nil
}

// ParseHCL decodes a registry from HCL source:
//
//	node "core/button" {
//	  constructor = "button"
//	  input "PORT" { default = "P1" }
//	  output "PRESSED" {}
//	}
func ParseHCL(src []byte, filename string) (*Registry, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrInvalidType, filename, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", ErrInvalidType, filename, diags)
	}

	r := NewRegistry()
	seen := make(map[string]bool, len(parsed.Nodes))
	for _, n := range parsed.Nodes {
		if seen[n.Name] {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate node type",
				Detail:   fmt.Sprintf("Node type %q is defined more than once in %s.", n.Name, filename),
			})
			continue
		}
		seen[n.Name] = true

		t, tdiags := n.nodeType()
		diags = append(diags, tdiags...)
		if tdiags.HasErrors() {
			continue
		}
		if err := r.Register(t); err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid node type",
				Detail:   err.Error(),
			})
		}
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidType, diags)
	}
	return r, nil
}

func (n *hclNode) nodeType() (*NodeType, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	t := &NodeType{
		Name:        n.Name,
		Constructor: n.Constructor,
		Inputs:      make(map[kproject.PinKey]*PinDef, len(n.Inputs)),
		Outputs:     make(map[kproject.PinKey]*PinDef, len(n.Outputs)),
	}

	for _, p := range n.Inputs {
		def, pdiags := p.pinDef()
		diags = append(diags, pdiags...)
		if _, dup := t.Inputs[def.Key]; dup {
			diags = append(diags, duplicatePin(n.Name, p))
		}
		t.Inputs[def.Key] = def
	}
	for _, p := range n.Outputs {
		if exprPresent(p.Default) || p.Required {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsupported output pin argument",
				Detail:   fmt.Sprintf("Output pin %q of %q cannot declare a default or be required.", p.Key, n.Name),
				Subject:  p.Default.Range().Ptr(),
			})
		}
		def, pdiags := p.pinDef()
		diags = append(diags, pdiags...)
		if _, dup := t.Outputs[def.Key]; dup {
			diags = append(diags, duplicatePin(n.Name, p))
		}
		t.Outputs[def.Key] = def
	}
	return t, diags
}

func (p *hclPin) pinDef() (*PinDef, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	def := &PinDef{Key: kproject.PinKey(p.Key), Required: p.Required}

	if exprPresent(p.Type) {
		typ, tdiags := typeexpr.TypeConstraint(p.Type)
		diags = append(diags, tdiags...)
		if tdiags.HasErrors() {
			return def, diags
		}
		def.Type, def.Typed = typ, true
	}

	if !exprPresent(p.Default) {
		return def, diags
	}

	val, vdiags := p.Default.Value(nil)
	diags = append(diags, vdiags...)
	if vdiags.HasErrors() {
		return def, diags
	}
	if !val.IsWhollyKnown() {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid default",
			Detail:   "The default value of a pin must be a literal.",
			Subject:  p.Default.Range().Ptr(),
		})
		return def, diags
	}

	if def.Typed {
		cv, err := convert.Convert(val, def.Type)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid default",
				Detail:   fmt.Sprintf("The default of pin %q does not match its type: %s.", p.Key, err),
				Subject:  p.Default.Range().Ptr(),
			})
			return def, diags
		}
		val = cv
	} else if val.Type().IsPrimitiveType() {
		// Primitive defaults imply the pin type.
		def.Type, def.Typed = val.Type(), true
	}

	raw, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid default",
			Detail:   err.Error(),
			Subject:  p.Default.Range().Ptr(),
		})
		return def, diags
	}
	def.Default = json.RawMessage(raw)
	return def, diags
}

// exprPresent reports whether an optional attribute was set. gohcl fills
// absent hcl.Expression fields with a static null expression.
func exprPresent(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return true
	}
	return !v.IsNull() || !v.Type().Equals(cty.DynamicPseudoType)
}

func duplicatePin(node string, p *hclPin) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Duplicate pin",
		Detail:   fmt.Sprintf("Pin %q of %q is declared more than once.", p.Key, node),
	}
}
