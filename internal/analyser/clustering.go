package analyser

import (
	"sort"

	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/scorer"
	"github.com/arrowgate/docdedupe/internal/unionfind"
)

// cluster runs UnionFind over every surviving pair and returns each
// resulting component's member ids, sorted for determinism (spec.md §4.9
// stage 6).
func cluster(survivors []candidatePair) [][]model.DocumentID {
	uf := unionfind.New[model.DocumentID]()
	for _, p := range survivors {
		uf.Union(p.a, p.b)
	}

	components := uf.Groups()
	out := make([][]model.DocumentID, 0, len(components))
	for _, members := range components {
		sorted := model.NewSorted(members, func(id model.DocumentID) string { return id.String() })
		out = append(out, sorted.Items())
	}
	return out
}

// clusterGroup is one surviving cluster with its aggregated scores and
// chosen primary, ready to be reconciled against the Store.
type clusterGroup struct {
	members    []model.DocumentID
	components scorer.Result
	primary    model.DocumentID
}

// summarizeCluster aggregates the component scores of every survivor pair
// entirely within members (median Jaccard and fuzzy, per spec.md §4.9
// stage 6) and picks a primary document: greatest archive file size, ties
// broken by lowest upstream id.
func summarizeCluster(
	members []model.DocumentID,
	survivors []candidatePair,
	fileSizeByID map[model.DocumentID]*int64,
	upstreamIDByID map[model.DocumentID]string,
) clusterGroup {
	memberSet := make(map[model.DocumentID]struct{}, len(members))
	for _, m := range members {
		memberSet[m] = struct{}{}
	}

	var jaccards, fuzzies, metadatas, filenames []float64
	for _, p := range survivors {
		_, inA := memberSet[p.a]
		_, inB := memberSet[p.b]
		if !inA || !inB {
			continue
		}
		jaccards = append(jaccards, p.result.Jaccard)
		fuzzies = append(fuzzies, p.result.Fuzzy)
		if p.result.Metadata != nil {
			metadatas = append(metadatas, *p.result.Metadata)
		}
		if p.result.Filename != nil {
			filenames = append(filenames, *p.result.Filename)
		}
	}

	result := scorer.Result{
		Jaccard: median(jaccards),
		Fuzzy:   median(fuzzies),
	}
	if len(metadatas) > 0 {
		v := median(metadatas)
		result.Metadata = &v
	}
	if len(filenames) > 0 {
		v := median(filenames)
		result.Filename = &v
	}

	return clusterGroup{
		members:    members,
		components: result,
		primary:    choosePrimary(members, fileSizeByID, upstreamIDByID),
	}
}

// choosePrimary selects the member with the greatest archive file size,
// breaking ties by lowest upstream id (spec.md §4.9 stage 6). A nil file
// size sorts as smaller than any known size.
func choosePrimary(members []model.DocumentID, fileSizeByID map[model.DocumentID]*int64, upstreamIDByID map[model.DocumentID]string) model.DocumentID {
	best := members[0]
	for _, id := range members[1:] {
		if fileSizeGreater(id, best, fileSizeByID, upstreamIDByID) {
			best = id
		}
	}
	return best
}

func fileSizeGreater(a, b model.DocumentID, fileSizeByID map[model.DocumentID]*int64, upstreamIDByID map[model.DocumentID]string) bool {
	sa, sb := fileSizeByID[a], fileSizeByID[b]
	switch {
	case sa == nil && sb == nil:
		return upstreamIDByID[a] < upstreamIDByID[b]
	case sa == nil:
		return false
	case sb == nil:
		return true
	case *sa != *sb:
		return *sa > *sb
	default:
		return upstreamIDByID[a] < upstreamIDByID[b]
	}
}

// confidenceScore applies the configured weights to a cluster's aggregated
// component scores, the same weighted-mean rule used for a single pair
// (spec.md §4.6, §4.9 stage 6).
func confidenceScore(cfg Config, cg clusterGroup) float64 {
	return scorer.WeightedMean(cfg.Weights, cg.components.Jaccard, cg.components.Fuzzy, cg.components.Metadata, cg.components.Filename)
}

// median returns the median of values, or 0 for an empty slice. Even-length
// slices average the two central values.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
