// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"math"
	"sort"

	"github.com/danielhkuo/ballotbox/models"
)

// counts holds per-position ballot counts; the empty candidate key is abstentions
type counts map[string]map[string]int

func (c counts) add(positionID, candidateID string, n int) {
	if c[positionID] == nil {
		c[positionID] = map[string]int{}
	}
	c[positionID][candidateID] += n
}

// rank builds per-position tallies. Candidates are ordered by votes,
// ties keeping candidate display order. A candidate is marked JustChanged
// only if prev is non-nil and its count went up since prev.
func rank(positions []models.Position, c counts, prev *models.TallySnapshot) []models.PositionTally {
	out := make([]models.PositionTally, 0, len(positions))

	for _, p := range positions {
		pt := models.PositionTally{
			PositionID:  p.ID,
			Title:       p.Title,
			Abstentions: c[p.ID][""],
			Candidates:  make([]models.CandidateTally, 0, len(p.Candidates)),
		}
		for _, cand := range p.Candidates {
			pt.TotalVotes += c[p.ID][cand.ID]
		}

		var before map[string]int
		if prev != nil {
			before = map[string]int{}
			if old, ok := prev.Position(p.ID); ok {
				for _, ct := range old.Candidates {
					before[ct.CandidateID] = ct.Votes
				}
			}
		}

		for _, cand := range p.Candidates {
			votes := c[p.ID][cand.ID]
			ct := models.CandidateTally{
				CandidateID: cand.ID,
				Name:        cand.Name,
				Votes:       votes,
				Percentage:  percent(votes, pt.TotalVotes),
			}
			if before != nil && votes > before[cand.ID] {
				ct.JustChanged = true
			}
			pt.Candidates = append(pt.Candidates, ct)
		}

		sort.SliceStable(pt.Candidates, func(i, j int) bool {
			return pt.Candidates[i].Votes > pt.Candidates[j].Votes
		})
		for i := range pt.Candidates {
			pt.Candidates[i].Rank = i + 1
		}

		out = append(out, pt)
	}

	return out
}

// percent is votes/total as a percentage rounded to two places; zero when
// there are no votes
func percent(votes, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)*10000/float64(total)) / 100
}

// sameCounts reports whether two tallies differ in anything but the
// JustChanged markers
func sameCounts(a, b []models.PositionTally) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		pa, pb := a[i], b[i]
		if pa.PositionID != pb.PositionID || pa.Title != pb.Title ||
			pa.TotalVotes != pb.TotalVotes || pa.Abstentions != pb.Abstentions ||
			len(pa.Candidates) != len(pb.Candidates) {
			return false
		}
		for j := range pa.Candidates {
			ca, cb := pa.Candidates[j], pb.Candidates[j]
			if ca.CandidateID != cb.CandidateID || ca.Name != cb.Name || ca.Votes != cb.Votes {
				return false
			}
		}
	}
	return true
}
