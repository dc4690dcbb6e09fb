package verification

import (
	"context"
	"errors"
	"fmt"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// ErrRunNotFound is returned when a run ID has no evaluation records.
var ErrRunNotFound = errors.New("run not found")

// TraceVerifier implements Verifier against stored evaluation traces.
type TraceVerifier struct {
	evaluations storage.EvaluationStore
}

// NewTraceVerifier creates a new TraceVerifier.
func NewTraceVerifier(evaluations storage.EvaluationStore) *TraceVerifier {
	return &TraceVerifier{evaluations: evaluations}
}

var _ Verifier = (*TraceVerifier)(nil)

// VerifyRecord compares a single pair of evaluation records.
func (v *TraceVerifier) VerifyRecord(recorded, replayed *domain.EvaluationRecord) RecordResult {
	divergences := CompareEvaluationRecords(recorded, replayed)

	return RecordResult{
		CandleIdx:   recorded.CandleIdx,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}
}

// VerifyRuns compares two stored runs candle by candle. Records are paired
// by candle index; an index present in only one trace counts as divergent.
func (v *TraceVerifier) VerifyRuns(ctx context.Context, recordedRunID, replayedRunID string) (*TraceReport, error) {
	// 1. Load both traces
	recorded, err := v.evaluations.GetByRunID(ctx, recordedRunID)
	if err != nil {
		return nil, fmt.Errorf("load recorded run: %w", err)
	}
	if len(recorded) == 0 {
		return nil, fmt.Errorf("recorded run %s: %w", recordedRunID, ErrRunNotFound)
	}

	replayed, err := v.evaluations.GetByRunID(ctx, replayedRunID)
	if err != nil {
		return nil, fmt.Errorf("load replayed run: %w", err)
	}
	if len(replayed) == 0 {
		return nil, fmt.Errorf("replayed run %s: %w", replayedRunID, ErrRunNotFound)
	}

	// 2. Pair by candle index
	replayedByIdx := make(map[int]*domain.EvaluationRecord, len(replayed))
	for _, r := range replayed {
		replayedByIdx[r.CandleIdx] = r
	}

	report := &TraceReport{
		RecordedRunID: recordedRunID,
		ReplayedRunID: replayedRunID,
		Results:       make([]RecordResult, 0, len(recorded)),
	}

	// 3. Compare paired records
	for _, rec := range recorded {
		rep, ok := replayedByIdx[rec.CandleIdx]
		if !ok {
			report.Results = append(report.Results, RecordResult{
				CandleIdx: rec.CandleIdx,
				Match:     false,
				Divergences: []FieldDivergence{
					{Field: "Record", Expected: "present", Actual: "missing"},
				},
			})
			report.TotalRecords++
			report.DivergentRecords++
			continue
		}
		delete(replayedByIdx, rec.CandleIdx)

		result := v.VerifyRecord(rec, rep)
		report.Results = append(report.Results, result)
		report.TotalRecords++
		if result.Match {
			report.MatchedRecords++
		} else {
			report.DivergentRecords++
		}
	}

	// 4. Surplus replayed records are divergences too
	for idx := range replayedByIdx {
		report.Results = append(report.Results, RecordResult{
			CandleIdx: idx,
			Match:     false,
			Divergences: []FieldDivergence{
				{Field: "Record", Expected: "missing", Actual: "present"},
			},
		})
		report.TotalRecords++
		report.DivergentRecords++
	}

	return report, nil
}
