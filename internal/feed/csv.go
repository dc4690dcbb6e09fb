package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"squeezebot/internal/domain"
)

// CSVProvider reads historical candles from per-symbol CSV files named
// SYMBOL_TIMEFRAME.csv under a directory. Files exported by broker
// platforms sometimes arrive UTF-16 encoded with a BOM; the reader
// tolerates both that and plain UTF-8.
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a provider reading from dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

// Compile-time interface check.
var _ Provider = (*CSVProvider)(nil)

// GetCandles loads the file for (symbol, timeframe) and filters to
// [start, end]. Returns ErrDataUnavailable when the file is missing.
func (p *CSVProvider) GetCandles(_ context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	path := fmt.Sprintf("%s/%s_%s.csv", p.dir, symbol, timeframe)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrDataUnavailable)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	candles, err := ParseCandleCSV(f, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var result []domain.Candle
	for _, c := range candles {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		result = append(result, c)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%s %s in [%s, %s]: %w", symbol, timeframe, start, end, ErrDataUnavailable)
	}
	return result, nil
}

// Subscribe is not supported for file-backed data.
func (p *CSVProvider) Subscribe(context.Context, []string, QuoteHandler) (CancelFunc, error) {
	return nil, fmt.Errorf("csv provider has no live stream: %w", ErrDataUnavailable)
}

// ParseCandleCSV parses candle rows from r. The header row maps columns
// by name, case-insensitively; a leading BOM (UTF-8 or UTF-16 of either
// endianness) is transparently stripped. Rows with non-numeric fields
// are skipped rather than failing the whole file.
func ParseCandleCSV(r io.Reader, symbol string, timeframe domain.Timeframe) ([]domain.Candle, error) {
	decoder := unicode.UTF8BOM.NewDecoder()
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(decoder)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := mapColumns(header)
	if cols.close < 0 || cols.timestamp < 0 {
		return nil, fmt.Errorf("header missing timestamp or close column: %v", header)
	}

	var candles []domain.Candle
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		ts, err := parseTimestamp(record[cols.timestamp])
		if err != nil {
			continue
		}

		c := domain.Candle{Symbol: symbol, Timeframe: timeframe, Timestamp: ts}
		c.Open, err = fieldFloat(record, cols.open)
		if err != nil {
			continue
		}
		c.High, err = fieldFloat(record, cols.high)
		if err != nil {
			continue
		}
		c.Low, err = fieldFloat(record, cols.low)
		if err != nil {
			continue
		}
		c.Close, err = fieldFloat(record, cols.close)
		if err != nil {
			continue
		}
		// Volume may be absent in some exports.
		if cols.volume >= 0 {
			c.Volume, _ = fieldFloat(record, cols.volume)
		}

		candles = append(candles, c)
	}

	return candles, nil
}

type columnIndex struct {
	timestamp, open, high, low, close, volume int
}

func mapColumns(header []string) columnIndex {
	cols := columnIndex{timestamp: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timestamp", "time", "date", "datetime":
			if cols.timestamp < 0 {
				cols.timestamp = i
			}
		case "open":
			cols.open = i
		case "high":
			cols.high = i
		case "low":
			cols.low = i
		case "close", "adj close":
			if cols.close < 0 || strings.EqualFold(name, "close") {
				cols.close = i
			}
		case "volume":
			cols.volume = i
		}
	}
	return cols
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// Unix seconds fallback
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func fieldFloat(record []string, idx int) (float64, error) {
	if idx < 0 || idx >= len(record) {
		return 0, fmt.Errorf("missing column %d", idx)
	}
	return strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
}
