// Package services holds the read-side graph orchestration and the node
// request approval workflow.
package services

import (
	"context"
	"sort"
	"strings"

	"relgraph-backend/application/ports"
	"relgraph-backend/domain/graph"

	"go.uber.org/zap"
)

// GraphService orchestrates repository reads: snapshot assembly, detail
// projection and ranked search. It performs no writes.
type GraphService struct {
	repo         ports.GraphRepository
	admittedType string
	multiType    bool
	logger       *zap.Logger
}

// NewGraphService builds a graph service. When multiType is false, snapshots
// are restricted to the single admitted node type.
func NewGraphService(repo ports.GraphRepository, admittedType string, multiType bool, logger *zap.Logger) *GraphService {
	return &GraphService{
		repo:         repo,
		admittedType: admittedType,
		multiType:    multiType,
		logger:       logger,
	}
}

// GetSnapshot returns the graph state. With multi-type support disabled only
// nodes of the admitted type are returned, and relationships survive only if
// both endpoints survive the filter.
func (s *GraphService) GetSnapshot(ctx context.Context) (*graph.GraphSnapshot, error) {
	snapshot, err := s.repo.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if s.multiType {
		return snapshot, nil
	}

	kept := make(map[string]bool, len(snapshot.Nodes))
	nodes := make([]graph.Node, 0, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		if node.Type != s.admittedType {
			continue
		}
		kept[node.ID] = true
		nodes = append(nodes, node)
	}

	rels := make([]graph.Relationship, 0, len(snapshot.Relationships))
	for _, rel := range snapshot.Relationships {
		if kept[rel.SourceID] && kept[rel.TargetID] {
			rels = append(rels, rel)
		}
	}

	return &graph.GraphSnapshot{Nodes: nodes, Relationships: rels}, nil
}

// GetNodeDetail returns the detail projection, or (nil, nil) when the node
// is absent.
func (s *GraphService) GetNodeDetail(ctx context.Context, id string) (*graph.NodeDetail, error) {
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	detail := node.Detail()
	return &detail, nil
}

// SearchNodes performs a case-insensitive substring search over label,
// description, sector and type. An empty or whitespace query yields an empty
// result. Matches are ranked by the numeric "score" metadata entry,
// descending, with ties kept in original iteration order, then truncated to
// limit.
func (s *GraphService) SearchNodes(ctx context.Context, query string, limit int) ([]graph.Node, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return []graph.Node{}, nil
	}

	nodes, err := s.repo.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]graph.Node, 0)
	for _, node := range nodes {
		haystacks := []string{node.Label, node.Description, node.Sector, node.Type}
		for _, value := range haystacks {
			if value != "" && strings.Contains(strings.ToLower(value), normalized) {
				matches = append(matches, node)
				break
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return metadataScore(matches[i].Metadata) > metadataScore(matches[j].Metadata)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// metadataScore reads the ranking score out of a metadata map; a missing or
// non-numeric score counts as 0.
func metadataScore(metadata map[string]any) float64 {
	switch v := metadata["score"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
