package experiment

import (
	"sort"

	"github.com/credfab/credfab/pkg/domain"
)

// candidate is one concrete (family, hyperparameters) combination.
type candidate struct {
	modelType       string
	hyperparameters map[string]string
}

// expand unfolds every candidate config's hyperparameter grid into concrete
// candidates: the cartesian product over sorted keys, values in declared
// order. The expansion order is deterministic, so run numbering and
// tie-breaking stay reproducible.
func expand(configs []domain.CandidateConfig) []candidate {
	out := []candidate{}
	for _, cfg := range configs {
		keys := make([]string, 0, len(cfg.Grid))
		for k := range cfg.Grid {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		combos := []map[string]string{{}}
		for _, k := range keys {
			next := make([]map[string]string, 0, len(combos)*len(cfg.Grid[k]))
			for _, base := range combos {
				for _, v := range cfg.Grid[k] {
					c := make(map[string]string, len(base)+1)
					for bk, bv := range base {
						c[bk] = bv
					}
					c[k] = v
					next = append(next, c)
				}
			}
			combos = next
		}

		for _, combo := range combos {
			out = append(out, candidate{modelType: cfg.ModelType, hyperparameters: combo})
		}
	}
	return out
}
