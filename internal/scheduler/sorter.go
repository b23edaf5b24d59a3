package scheduler

import (
	"sort"
)

// RankCandidates sorts scored candidates by the deterministic ranking rules:
// 1. Total score: higher first
// 2. Route familiarity: higher first
// 3. Driver ID: lexical ascending
// 4. Vehicle ID: lexical ascending
func RankCandidates(candidates []ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Pair, candidates[j].Pair

		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Scores.RouteFamiliarity != b.Scores.RouteFamiliarity {
			return a.Scores.RouteFamiliarity > b.Scores.RouteFamiliarity
		}
		if a.DriverID != b.DriverID {
			return a.DriverID < b.DriverID
		}
		return a.VehicleID < b.VehicleID
	})
}

// TopN ranks the candidates and keeps the first n, numbering them from 1.
func TopN(candidates []ScoredCandidate, n int) []ScoredCandidate {
	ranked := make([]ScoredCandidate, len(candidates))
	copy(ranked, candidates)
	RankCandidates(ranked)
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Pair.Rank = i + 1
	}
	return ranked
}
