// Package graph holds the domain model for the relationship graph: nodes,
// typed directed relationships between them, and the declarative schema
// registry that keeps persistence, API and frontend projections in sync.
package graph

import (
	"time"
)

// RelationTypeDefault is the sentinel relation type assigned to relationship
// rows persisted before the type column existed.
const RelationTypeDefault = "works_with"

// Position is a transient 3D coordinate assigned by the presentation layer
// during graph layout. It is never persisted and is always absent on load.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Node is a vertex in the relationship graph, representing a company, person,
// project or other business entity. Declared attributes come from the schema
// registry; everything else lives in the open Metadata map.
type Node struct {
	ID          string
	Type        string
	Label       string
	Description string
	Sector      string
	Color       string
	Metadata    map[string]any
	Position    *Position
}

// Relationship is a directed, typed edge between two nodes. Its ID is derived
// from source, target and type (see DeriveRelationshipID) and is immutable
// after creation.
type Relationship struct {
	ID        string
	SourceID  string
	TargetID  string
	Type      string
	Strength  *float64
	CreatedAt *time.Time
}

// DeriveRelationshipID builds the deterministic relationship identifier.
// The format is part of the wire contract: "<source>_<target>_<type>".
func DeriveRelationshipID(sourceID, targetID, relType string) string {
	return sourceID + "_" + targetID + "_" + relType
}

// NodeDetail is the flattened per-node payload consumed by the frontend.
type NodeDetail struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Detail materializes the frontend detail projection: metadata first, then
// each frontend-visible registry field fills in only when the key is absent
// (metadata wins on conflict), and "type" is force-set last.
func (n *Node) Detail() NodeDetail {
	data := make(map[string]any, len(n.Metadata)+len(nodeFields)+1)
	for k, v := range n.Metadata {
		data[k] = v
	}
	for _, f := range FrontendFields() {
		v, ok := f.Value(n)
		if !ok {
			continue
		}
		if _, exists := data[f.Name]; !exists {
			data[f.Name] = v
		}
	}
	data["type"] = n.Type
	return NodeDetail{ID: n.ID, Data: data}
}

// GraphSnapshot is an immutable pairing of all nodes and relationships at one
// instant. It is a pure projection and is never stored.
type GraphSnapshot struct {
	Nodes         []Node
	Relationships []Relationship
}

// NodePayload is the wire shape of a node inside the graph payload.
type NodePayload struct {
	ID       string         `json:"id"`
	Position *Position      `json:"position,omitempty"`
	Color    string         `json:"color,omitempty"`
	Data     map[string]any `json:"data"`
}

// EdgePayload is the wire shape of a relationship inside the graph payload.
type EdgePayload struct {
	ID        string   `json:"id"`
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Type      string   `json:"type"`
	Strength  *float64 `json:"strength,omitempty"`
	CreatedAt string   `json:"created_datetime,omitempty"`
}

// NodePayloads flattens the snapshot's nodes to wire shape. Label, description
// and type are nested under "data" with metadata spread over them; color and
// position appear only when present.
func (s *GraphSnapshot) NodePayloads() []NodePayload {
	payloads := make([]NodePayload, 0, len(s.Nodes))
	for i := range s.Nodes {
		node := &s.Nodes[i]
		data := map[string]any{
			"label":       node.Label,
			"description": node.Description,
			"type":        node.Type,
		}
		for k, v := range node.Metadata {
			data[k] = v
		}
		payloads = append(payloads, NodePayload{
			ID:       node.ID,
			Position: node.Position,
			Color:    node.Color,
			Data:     data,
		})
	}
	return payloads
}

// EdgePayloads flattens the snapshot's relationships to wire shape. Strength
// and created_datetime appear only when present.
func (s *GraphSnapshot) EdgePayloads() []EdgePayload {
	payloads := make([]EdgePayload, 0, len(s.Relationships))
	for _, rel := range s.Relationships {
		edge := EdgePayload{
			ID:       rel.ID,
			Source:   rel.SourceID,
			Target:   rel.TargetID,
			Type:     rel.Type,
			Strength: rel.Strength,
		}
		if rel.CreatedAt != nil {
			edge.CreatedAt = rel.CreatedAt.UTC().Format(time.RFC3339)
		}
		payloads = append(payloads, edge)
	}
	return payloads
}

// RequestStatus is the lifecycle state of a node request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// NodeRequest is a user-submitted proposal to create a node. It starts
// pending and transitions exactly once to approved or rejected.
type NodeRequest struct {
	ID              string
	RequestorID     string
	Status          RequestStatus
	NodeID          string
	NodeType        string
	Label           string
	Description     string
	Sector          string
	Color           string
	Metadata        map[string]any
	ApproverID      string
	ApprovedAt      *time.Time
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Node builds the node this request proposes to create. Position is never
// carried over; it is assigned by the presentation layer.
func (r *NodeRequest) Node() Node {
	return Node{
		ID:          r.NodeID,
		Type:        r.NodeType,
		Label:       r.Label,
		Description: r.Description,
		Sector:      r.Sector,
		Color:       r.Color,
		Metadata:    r.Metadata,
	}
}

// User is an authenticated account, created lazily on first login.
type User struct {
	ID        string
	Email     string
	Balance   float64
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
