package trigram

import (
	"sort"

	"github.com/google/uuid"
)

// Posting is one (document id, term frequency) entry in a trigram's
// posting list.
type Posting struct {
	ID   uuid.UUID
	Freq uint16
}

// docStats is the per-document sidecar the ranking tie-break needs:
// the raw trigram multiset size is implicit in the postings themselves,
// but word count is not, so it is cached alongside the document when
// indexed (spec §3 "Trigram posting... per-document sidecar keeps...
// word count").
type docStats struct {
	wordCount int
	preview   string
}

// candidate accumulates match state for one document during a search.
type candidate struct {
	id       uuid.UUID
	hits     int
	termFreq int // sum of matched trigrams' frequency for this document
}

// requiredHits implements the adaptive match-ratio threshold (spec
// §4.5 step 3): the minimum number of the query's |T(q)| trigrams a
// candidate must hit to survive at the given relaxation level.
//
// level 0 is the strict threshold from the table; levels 1-3 are the
// aggressive-fallback relaxation ladder (2/3, 1/3, minimum absolute
// hits) used only when the strict threshold eliminates every
// candidate and the caller has aggressive fallback enabled.
func requiredHits(qlen int, level int) int {
	if qlen == 0 {
		return 0
	}
	switch level {
	case 1:
		return maxInt(1, ceilDiv(qlen*2, 3))
	case 2:
		return maxInt(1, ceilDiv(qlen, 3))
	case 3:
		return 1
	}
	switch {
	case qlen <= 3:
		return qlen
	case qlen <= 6:
		return maxInt(ceilDiv(qlen*4, 5), qlen-1)
	default:
		return maxInt(3, ceilDiv(qlen*3, 5))
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// rankCandidates filters candidates by requiredHits at the strict
// level, falling back through the relaxation ladder when
// aggressiveFallback is set and the strict level yields nothing, then
// sorts survivors by hit count descending, term-frequency/word-count
// ratio descending, and finally numeric id ascending for determinism
// (spec §4.5 step 5, "Determinism").
func rankCandidates(cands map[uuid.UUID]*candidate, stats map[uuid.UUID]docStats, qlen int, aggressiveFallback bool) []candidate {
	levels := []int{0}
	if aggressiveFallback {
		levels = append(levels, 1, 2, 3)
	}

	var survivors []candidate
	for _, level := range levels {
		need := requiredHits(qlen, level)
		survivors = survivors[:0]
		for _, c := range cands {
			if c.hits >= need {
				survivors = append(survivors, *c)
			}
		}
		if len(survivors) > 0 {
			break
		}
	}

	sort.Slice(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.hits != b.hits {
			return a.hits > b.hits
		}
		ar := tieBreakRatio(a, stats)
		br := tieBreakRatio(b, stats)
		if ar != br {
			return ar > br
		}
		return idLess(a.id, b.id)
	})
	return survivors
}

func tieBreakRatio(c candidate, stats map[uuid.UUID]docStats) float64 {
	wc := stats[c.id].wordCount
	if wc == 0 {
		return 0
	}
	return float64(c.termFreq) / float64(wc)
}

func idLess(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
