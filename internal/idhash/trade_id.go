package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"squeezebot/internal/domain"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(symbol|direction|timeframe|entry_time_unix_ms)
// Returns hex-encoded hash (64 characters). The same signal replayed
// over the same data produces the same trade ID.
func ComputeTradeID(
	symbol string,
	direction domain.Direction,
	timeframe domain.Timeframe,
	entryTime time.Time,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		symbol,
		string(direction),
		string(timeframe),
		entryTime.UnixMilli(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
