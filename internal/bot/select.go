package bot

import "github.com/vkuzmenko/dexleads/internal/model"

// selectCandidates trims a cycle's candidate list to the per-cycle limit.
//
// With fair sampling the cap is distributed round-robin across the chains in
// the order they first appeared, so a burst of profiles on one chain cannot
// starve the others. Without it the list is truncated as-is.
func selectCandidates(candidates []model.Candidate, limit int, fair bool) []model.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	if !fair {
		return candidates[:limit]
	}

	byChain := make(map[string][]model.Candidate)
	var chains []string
	for _, c := range candidates {
		if _, seen := byChain[c.Chain]; !seen {
			chains = append(chains, c.Chain)
		}
		byChain[c.Chain] = append(byChain[c.Chain], c)
	}

	selected := make([]model.Candidate, 0, limit)
	for len(selected) < limit {
		progressed := false
		for _, chain := range chains {
			queue := byChain[chain]
			if len(queue) == 0 {
				continue
			}
			byChain[chain] = queue[1:]
			selected = append(selected, queue[0])
			progressed = true
			if len(selected) == limit {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return selected
}
