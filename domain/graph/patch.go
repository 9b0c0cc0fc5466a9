package graph

// NodePatch is a partial update for a node. A nil field means "leave
// untouched"; only pointers that are set are applied. Metadata replaces the
// whole stored map when present. There is deliberately no way to clear a
// nullable scalar back to null through a patch.
type NodePatch struct {
	Type        *string
	Label       *string
	Description *string
	Sector      *string
	Color       *string
	Metadata    map[string]any
}

// IsEmpty reports whether the patch carries no changes at all.
func (p *NodePatch) IsEmpty() bool {
	for _, f := range Fields() {
		if _, ok := f.Patch(p); ok {
			return false
		}
	}
	return p.Metadata == nil
}

// RelationshipPatch is a partial update for a relationship. Relationship
// identity (source, target, type) is derived into the ID at creation time and
// is immutable afterwards, so only the weight and timestamp are updatable.
type RelationshipPatch struct {
	Strength  *float64
	CreatedAt *string // RFC3339
}

// IsEmpty reports whether the patch carries no changes at all.
func (p *RelationshipPatch) IsEmpty() bool {
	return p.Strength == nil && p.CreatedAt == nil
}
