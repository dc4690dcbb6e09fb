package signal

import "squeezebot/internal/domain"

// AlignmentDetector computes directional consensus across the basket.
// Pure: Detect has no side effects.
type AlignmentDetector struct {
	mode      domain.BasketMode
	threshold float64 // percent, e.g. 43
}

// NewAlignmentDetector creates a detector for the given mode and
// percentage threshold.
func NewAlignmentDetector(mode domain.BasketMode, threshold float64) *AlignmentDetector {
	return &AlignmentDetector{mode: mode, threshold: threshold}
}

// Detect runs the consensus vote over the current member statuses.
// Members that are not Ready (insufficient history) are excluded from
// the vote entirely.
func (d *AlignmentDetector) Detect(members []domain.BasketMember) domain.AlignmentResult {
	ready := members[:0:0]
	for _, m := range members {
		if m.Ready {
			ready = append(ready, m)
		}
	}
	if len(ready) == 0 {
		return domain.AlignmentResult{Direction: domain.DirectionNeutral, Mode: d.mode}
	}

	var res domain.AlignmentResult
	if d.mode == domain.BasketModeMegaCap {
		res = d.detectMegaCap(ready)
	} else {
		res = d.detectSector(ready)
	}
	res.Mode = d.mode
	return res
}

// detectSector anchors the vote on the highest-weighted member: if the
// anchor is neutral there is no alignment; otherwise the anchor's weight
// plus every same-direction member weight must reach the threshold.
func (d *AlignmentDetector) detectSector(members []domain.BasketMember) domain.AlignmentResult {
	anchor := members[0]
	for _, m := range members[1:] {
		if m.Weight > anchor.Weight {
			anchor = m
		}
	}

	if anchor.Status == domain.DirectionNeutral {
		return domain.AlignmentResult{Direction: domain.DirectionNeutral}
	}

	score := 0.0
	for _, m := range members {
		if m.Status == anchor.Status {
			score += m.Weight
		}
	}

	if score < d.threshold {
		return domain.AlignmentResult{Direction: domain.DirectionNeutral, Score: score}
	}
	return domain.AlignmentResult{Aligned: true, Direction: anchor.Status, Score: score}
}

// detectMegaCap classifies each member independently and requires the
// majority share to reach the threshold. Ties are not aligned.
func (d *AlignmentDetector) detectMegaCap(members []domain.BasketMember) domain.AlignmentResult {
	var bulls, bears int
	for _, m := range members {
		switch m.Status {
		case domain.DirectionBullish:
			bulls++
		case domain.DirectionBearish:
			bears++
		}
	}

	n := float64(len(members))
	bullPct := 100 * float64(bulls) / n
	bearPct := 100 * float64(bears) / n

	switch {
	case bullPct >= d.threshold && bullPct > bearPct:
		return domain.AlignmentResult{Aligned: true, Direction: domain.DirectionBullish, Score: bullPct}
	case bearPct >= d.threshold && bearPct > bullPct:
		return domain.AlignmentResult{Aligned: true, Direction: domain.DirectionBearish, Score: bearPct}
	default:
		score := bullPct
		if bearPct > score {
			score = bearPct
		}
		return domain.AlignmentResult{Direction: domain.DirectionNeutral, Score: score}
	}
}
