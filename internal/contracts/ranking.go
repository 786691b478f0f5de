package contracts

import "sort"

// RankLess is the global candidate order: score descending, instrument_id ascending.
// ⭐ SSOT: Scanner 출력과 Consolidator 출력 모두 이 순서를 따름
func RankLess(a, b Candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.instrumentID < b.instrumentID
}

// SortCandidates sorts in place by RankLess
func SortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return RankLess(cands[i], cands[j])
	})
}

// IsRanked reports whether the sequence is already in RankLess order
func IsRanked(cands []Candidate) bool {
	return sort.SliceIsSorted(cands, func(i, j int) bool {
		return RankLess(cands[i], cands[j])
	})
}

// Truncate applies a limit after ranking. limit <= 0 means unlimited.
func Truncate(cands []Candidate, limit int) []Candidate {
	if limit <= 0 || len(cands) <= limit {
		return cands
	}
	return cands[:limit]
}
