package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"squeezebot/internal/domain"
)

// ComputeSimulationID computes a deterministic ID for one simulated
// trade leg of a backtest run.
// Formula: SHA256(run_id|symbol|method|entry_idx|entry_time_unix_ms)
// Returns hex-encoded hash (64 characters).
func ComputeSimulationID(
	runID string,
	symbol string,
	method domain.TrailingMethod,
	entryIdx int,
	entryTime time.Time,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		runID,
		symbol,
		string(method),
		entryIdx,
		entryTime.UnixMilli(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// NewRunID returns a fresh random run identifier. Run IDs distinguish
// backtest executions and are not derived from inputs.
func NewRunID() string {
	return uuid.NewString()
}
