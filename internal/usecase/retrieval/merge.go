package retrieval

import (
	"sort"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// mergeByScore concatenates the per-collection pools in request order, sorts
// by similarity descending, and keeps the best finalTopK. The stable sort
// makes equal scores tie-break by request order, so merged output is
// deterministic for identical inputs.
func mergeByScore(
	names []string, pools [][]domain.RetrievedDocument, finalTopK int,
) Merged {
	var all []domain.RetrievedDocument
	for _, pool := range pools {
		all = append(all, pool...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if finalTopK > 0 && len(all) > finalTopK {
		all = all[:finalTopK]
	}

	stats := make(map[string]int, len(names))
	for _, name := range names {
		stats[name] = 0
	}
	for _, doc := range all {
		stats[doc.Knowledge]++
	}

	return Merged{Documents: all, Stats: stats}
}
