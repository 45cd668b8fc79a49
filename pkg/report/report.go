// Package report joins centrality and community outputs into ranked
// tabular summaries. Everything here is a pure function of its inputs;
// rendering and serialization belong to the callers.
package report

import (
	"sort"

	"github.com/opencohort/epigraph/pkg/algorithms"
	"github.com/opencohort/epigraph/pkg/graph"
)

// Unlabeled marks nodes outside the analyzed component.
const Unlabeled = -1

// NodeRow is one row of the node table.
type NodeRow struct {
	ConceptID  uint64  `json:"concept_id"`
	Name       string  `json:"name"`
	Prevalence int     `json:"prevalence"`
	Degree     int     `json:"degree"`
	Centrality float64 `json:"centrality"`
	Community  int     `json:"community"`
}

// EdgeRow is one row of the edge table.
type EdgeRow struct {
	Source uint64 `json:"source"`
	Target uint64 `json:"target"`
	Weight int    `json:"weight"`
}

// CommunityRow summarizes one community.
type CommunityRow struct {
	ID            int      `json:"id"`
	Size          int      `json:"size"`
	InternalEdges int      `json:"internal_edges"`
	Density       float64  `json:"density"`
	TopMembers    []string `json:"top_members"`
}

// Summary carries run-level figures.
type Summary struct {
	Patients    int     `json:"patients"`
	Rejected    int     `json:"rejected"`
	Nodes       int     `json:"nodes"`
	Edges       int     `json:"edges"`
	Communities int     `json:"communities"`
	Modularity  float64 `json:"modularity"`
	Converged   bool    `json:"converged"`
}

// Report is the aggregated output of one pipeline run.
type Report struct {
	Summary     Summary        `json:"summary"`
	Nodes       []NodeRow      `json:"nodes"`
	Edges       []EdgeRow      `json:"edges"`
	Communities []CommunityRow `json:"communities"`
	TopByDegree []NodeRow      `json:"top_by_degree"`
}

// Options control table sizes.
type Options struct {
	TopNodes               int // rows in the top-by-degree table
	TopMembersPerCommunity int // member names listed per community
}

// DefaultOptions mirror the figures the analysis historically reported.
func DefaultOptions() Options {
	return Options{TopNodes: 10, TopMembersPerCommunity: 10}
}

// Build joins the graph with its centrality and community results. The
// node table is ordered by community label then degree descending; all
// ranking ties break by ascending concept ID. Nodes without a community
// label (outside the analyzed component) carry Unlabeled.
func Build(g *graph.Graph, degrees *algorithms.DegreeResult, communities *algorithms.CommunityDetectionResult, summary Summary, opts Options) *Report {
	if opts.TopNodes <= 0 {
		opts.TopNodes = DefaultOptions().TopNodes
	}
	if opts.TopMembersPerCommunity <= 0 {
		opts.TopMembersPerCommunity = DefaultOptions().TopMembersPerCommunity
	}

	rows := make([]NodeRow, 0, g.NodeCount())
	rowByID := make(map[uint64]NodeRow, g.NodeCount())
	for _, id := range g.NodeIDs() {
		d, _ := g.Node(id)
		label := Unlabeled
		if communities != nil {
			if c, ok := communities.NodeCommunity[id]; ok {
				label = c
			}
		}
		row := NodeRow{
			ConceptID:  id,
			Name:       d.Name,
			Prevalence: d.Prevalence,
			Degree:     degrees.Degree[id],
			Centrality: degrees.Centrality[id],
			Community:  label,
		}
		rows = append(rows, row)
		rowByID[id] = row
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Community != rows[j].Community {
			return rows[i].Community < rows[j].Community
		}
		if rows[i].Degree != rows[j].Degree {
			return rows[i].Degree > rows[j].Degree
		}
		return rows[i].ConceptID < rows[j].ConceptID
	})

	edges := make([]EdgeRow, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		edges = append(edges, EdgeRow{Source: e.Source, Target: e.Target, Weight: e.Weight})
	}

	communityRows := make([]CommunityRow, 0)
	if communities != nil {
		for _, c := range communities.Communities {
			communityRows = append(communityRows, CommunityRow{
				ID:            c.ID,
				Size:          c.Size,
				InternalEdges: c.InternalEdges,
				Density:       c.Density,
				TopMembers:    topMembers(c, rowByID, opts.TopMembersPerCommunity),
			})
		}
		sort.SliceStable(communityRows, func(i, j int) bool {
			if communityRows[i].Size != communityRows[j].Size {
				return communityRows[i].Size > communityRows[j].Size
			}
			return communityRows[i].ID < communityRows[j].ID
		})

		summary.Communities = len(communityRows)
		summary.Modularity = communities.Modularity
		summary.Converged = communities.Converged
	}

	summary.Nodes = g.NodeCount()
	summary.Edges = g.EdgeCount()

	return &Report{
		Summary:     summary,
		Nodes:       rows,
		Edges:       edges,
		Communities: communityRows,
		TopByDegree: topByDegree(rows, opts.TopNodes),
	}
}

// topMembers lists a community's member names ranked by degree within the
// full analyzed graph, ties by ascending concept ID.
func topMembers(c *algorithms.Community, rowByID map[uint64]NodeRow, n int) []string {
	members := make([]NodeRow, 0, len(c.Nodes))
	for _, id := range c.Nodes {
		if row, ok := rowByID[id]; ok {
			members = append(members, row)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Degree != members[j].Degree {
			return members[i].Degree > members[j].Degree
		}
		return members[i].ConceptID < members[j].ConceptID
	})
	if len(members) > n {
		members = members[:n]
	}
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names
}

func topByDegree(rows []NodeRow, n int) []NodeRow {
	top := make([]NodeRow, len(rows))
	copy(top, rows)
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Degree != top[j].Degree {
			return top[i].Degree > top[j].Degree
		}
		return top[i].ConceptID < top[j].ConceptID
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}
