package graph

import (
	"fmt"
	"strings"
)

// ValueKind identifies the Go-level type of a declared node attribute.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindBool
)

// StorageKind is the SQL column type used to persist a declared attribute.
type StorageKind string

const (
	StorageText    StorageKind = "TEXT"
	StorageInteger StorageKind = "INTEGER"
	StorageReal    StorageKind = "REAL"
)

// FieldDefinition describes one declared node attribute. The registry below is
// the single source of truth for node structure: persistence column mapping,
// partial updates and the frontend detail projection all iterate it, so adding
// a field here makes it flow through create/read/update/detail without further
// changes elsewhere.
//
// The accessor funcs are the static-Go replacement for attribute access by
// name: Value reads the current value off a Node, Apply writes a stored value
// back onto it, and Patch reads the value out of a NodePatch when present.
type FieldDefinition struct {
	Name       string
	Kind       ValueKind
	Storage    StorageKind
	Nullable   bool
	Default    string
	HasDefault bool
	Indexed    bool
	InAPI      bool
	InFrontend bool

	Value func(n *Node) (string, bool)
	Apply func(n *Node, v string, ok bool)
	Patch func(p *NodePatch) (string, bool)
}

// nodeFields is the ordered registry of declared node attributes.
// Free-form metadata and the transient position are deliberately not listed:
// metadata is persisted as a single JSON column and position is never stored.
var nodeFields = []FieldDefinition{
	{
		Name:     "id",
		Kind:     KindString,
		Storage:  StorageText,
		Nullable: false,
		Indexed:  true,
		InAPI:    true,
		// id appears in the detail payload at the top level, not in data
		InFrontend: false,
		Value:      func(n *Node) (string, bool) { return n.ID, true },
		Apply:      func(n *Node, v string, _ bool) { n.ID = v },
		Patch:      func(p *NodePatch) (string, bool) { return "", false },
	},
	{
		Name:       "type",
		Kind:       KindString,
		Storage:    StorageText,
		Nullable:   false,
		Default:    "company",
		HasDefault: true,
		Indexed:    true,
		InAPI:      true,
		InFrontend: true,
		Value:      func(n *Node) (string, bool) { return n.Type, true },
		Apply:      func(n *Node, v string, _ bool) { n.Type = v },
		Patch:      func(p *NodePatch) (string, bool) { return deref(p.Type) },
	},
	{
		Name:       "label",
		Kind:       KindString,
		Storage:    StorageText,
		Nullable:   false,
		Default:    "",
		HasDefault: true,
		Indexed:    true,
		InAPI:      true,
		InFrontend: true,
		Value:      func(n *Node) (string, bool) { return n.Label, true },
		Apply:      func(n *Node, v string, _ bool) { n.Label = v },
		Patch:      func(p *NodePatch) (string, bool) { return deref(p.Label) },
	},
	{
		Name:       "description",
		Kind:       KindString,
		Storage:    StorageText,
		Nullable:   false,
		Default:    "",
		HasDefault: true,
		InAPI:      true,
		InFrontend: true,
		Value:      func(n *Node) (string, bool) { return n.Description, true },
		Apply:      func(n *Node, v string, _ bool) { n.Description = v },
		Patch:      func(p *NodePatch) (string, bool) { return deref(p.Description) },
	},
	{
		Name:       "sector",
		Kind:       KindString,
		Storage:    StorageText,
		Nullable:   true,
		Indexed:    true,
		InAPI:      true,
		InFrontend: true,
		Value:      func(n *Node) (string, bool) { return n.Sector, n.Sector != "" },
		Apply:      func(n *Node, v string, ok bool) { n.Sector = nullable(v, ok) },
		Patch:      func(p *NodePatch) (string, bool) { return deref(p.Sector) },
	},
	{
		Name:       "color",
		Kind:       KindString,
		Storage:    StorageText,
		Nullable:   true,
		InAPI:      true,
		InFrontend: true,
		Value:      func(n *Node) (string, bool) { return n.Color, n.Color != "" },
		Apply:      func(n *Node, v string, ok bool) { n.Color = nullable(v, ok) },
		Patch:      func(p *NodePatch) (string, bool) { return deref(p.Color) },
	},
}

func deref(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

func nullable(v string, ok bool) string {
	if !ok {
		return ""
	}
	return v
}

// Fields returns the ordered registry of declared node attributes.
func Fields() []FieldDefinition {
	return nodeFields
}

// FieldByName looks up a field definition by name.
func FieldByName(name string) (FieldDefinition, bool) {
	for _, f := range nodeFields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// RequiredFields returns the non-nullable fields.
func RequiredFields() []FieldDefinition {
	return filterFields(func(f FieldDefinition) bool { return !f.Nullable })
}

// IndexedFields returns the fields backed by a database index.
func IndexedFields() []FieldDefinition {
	return filterFields(func(f FieldDefinition) bool { return f.Indexed })
}

// APIFields returns the fields exposed through the API.
func APIFields() []FieldDefinition {
	return filterFields(func(f FieldDefinition) bool { return f.InAPI })
}

// FrontendFields returns the fields included in the frontend detail payload.
func FrontendFields() []FieldDefinition {
	return filterFields(func(f FieldDefinition) bool { return f.InFrontend })
}

func filterFields(keep func(FieldDefinition) bool) []FieldDefinition {
	out := make([]FieldDefinition, 0, len(nodeFields))
	for _, f := range nodeFields {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// ValidateSchema checks the registry for internal consistency: field names
// must be unique and every non-nullable field other than "id" must carry a
// default so that schema-driven writes can always produce a value. It runs as
// a startup assertion; a failure means the registry itself is broken.
func ValidateSchema() error {
	var problems []string

	seen := make(map[string]bool, len(nodeFields))
	for _, f := range nodeFields {
		if seen[f.Name] {
			problems = append(problems, fmt.Sprintf("duplicate field name %q", f.Name))
		}
		seen[f.Name] = true
	}

	for _, f := range nodeFields {
		if !f.Nullable && !f.HasDefault && f.Name != "id" {
			problems = append(problems, fmt.Sprintf("required field %q has no default", f.Name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("node schema inconsistent: %s", strings.Join(problems, "; "))
	}
	return nil
}
