package opinion

import (
	"math"
)

// MatchedPair associates a candidate with the anchor it was matched to.
type MatchedPair struct {
	Candidate *SpanEntity
	Anchor    *SpanEntity
}

// Match pairs every anchor with its nearest same-sentence candidate, measured
// as the absolute difference of average ranks.  Ties go to the earliest
// candidate.  Anchors without a same-sentence candidate yield no pair.  The
// search is greedy and per anchor: one candidate may serve many anchors.
func Match(anchors, candidates []*SpanEntity, doc TokenSource, ix *PositionalIndex) ([]MatchedPair, error) {
	if len(anchors) == 0 || len(candidates) == 0 {
		return nil, nil
	}

	candSentence := make([]string, len(candidates))
	for i, c := range candidates {
		s, err := c.Sentence(doc)
		if err != nil {
			return nil, err
		}
		candSentence[i] = s
	}
	candRank := make([]float64, len(candidates))
	rankKnown := make([]bool, len(candidates))

	var pairs []MatchedPair
	for _, anchor := range anchors {
		sentence, err := anchor.Sentence(doc)
		if err != nil {
			return nil, err
		}

		best := -1
		bestDist := math.Inf(1)
		var anchorRank float64
		anchorRankKnown := false

		for i, c := range candidates {
			if candSentence[i] != sentence {
				continue
			}
			if !anchorRankKnown {
				if anchorRank, err = anchor.AverageRank(ix); err != nil {
					return nil, err
				}
				anchorRankKnown = true
			}
			if !rankKnown[i] {
				if candRank[i], err = c.AverageRank(ix); err != nil {
					return nil, err
				}
				rankKnown[i] = true
			}
			if d := math.Abs(candRank[i] - anchorRank); d < bestDist {
				best, bestDist = i, d
			}
		}

		if best >= 0 {
			pairs = append(pairs, MatchedPair{Candidate: candidates[best], Anchor: anchor})
		}
	}
	return pairs, nil
}
