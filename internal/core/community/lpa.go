package community

import (
	"sort"

	"github.com/agenthands/philograph/internal/core/model"
)

// Detector groups entities into communities (schools of thought) from the relationships between them.
type Detector interface {
	Detect(entities []model.Entity, relationships []model.Relationship) [][]model.Entity
}

// LabelPropagationDetector implements community detection using Label Propagation Algorithm (LPA).
type LabelPropagationDetector struct {
	MaxIterations int
	MinSize       int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{
		MaxIterations: 20,
		MinSize:       2,
	}
}

// Detect returns communities of at least MinSize entities. Members are sorted by id and communities by
// descending size, then by their first member id.
func (d *LabelPropagationDetector) Detect(entities []model.Entity, relationships []model.Relationship) [][]model.Entity {
	if len(entities) == 0 {
		return [][]model.Entity{}
	}

	// Undirected, weighted by the number of relationships between a pair.
	adj := make(map[string]map[string]int)
	byID := make(map[string]model.Entity)
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		if _, dup := byID[e.ID]; dup {
			continue
		}
		byID[e.ID] = e
		adj[e.ID] = make(map[string]int)
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)

	for _, r := range relationships {
		if _, ok := byID[r.SubjectID]; !ok {
			continue
		}
		if _, ok := byID[r.ObjectID]; !ok {
			continue
		}
		if r.SubjectID == r.ObjectID {
			continue
		}
		adj[r.SubjectID][r.ObjectID]++
		adj[r.ObjectID][r.SubjectID]++
	}

	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range ids {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[string]int)
			maxCount := 0
			for v, weight := range neighbors {
				counts[labels[v]] += weight
				if counts[labels[v]] > maxCount {
					maxCount = counts[labels[v]]
				}
			}

			// Keep the current label on a tie, otherwise take the lexicographically largest.
			if counts[labels[u]] == maxCount {
				continue
			}
			best := ""
			for label, count := range counts {
				if count == maxCount && label > best {
					best = label
				}
			}
			labels[u] = best
			changed++
		}
		if changed == 0 {
			break
		}
	}

	clusters := make(map[string][]model.Entity)
	for _, id := range ids {
		clusters[labels[id]] = append(clusters[labels[id]], byID[id])
	}

	minSize := d.MinSize
	if minSize < 1 {
		minSize = 1
	}
	communities := [][]model.Entity{}
	for _, members := range clusters {
		if len(members) >= minSize {
			communities = append(communities, members)
		}
	}
	sort.Slice(communities, func(i, j int) bool {
		if len(communities[i]) != len(communities[j]) {
			return len(communities[i]) > len(communities[j])
		}
		return communities[i][0].ID < communities[j][0].ID
	})
	return communities
}
