package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"

	"squeezebot/internal/domain"
)

// AlpacaProvider serves historical candles from the Alpaca market
// data API. Live quotes come through the websocket stream, so
// Subscribe is not supported here.
type AlpacaProvider struct {
	client *marketdata.Client
	logger zerolog.Logger
}

var _ Provider = (*AlpacaProvider)(nil)

// NewAlpacaProvider creates a provider backed by the given market data client.
func NewAlpacaProvider(client *marketdata.Client, logger zerolog.Logger) *AlpacaProvider {
	return &AlpacaProvider{
		client: client,
		logger: logger.With().Str("component", "alpaca_feed").Logger(),
	}
}

// GetCandles fetches historical bars for symbol in [start, end].
func (p *AlpacaProvider) GetCandles(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	tf, err := alpacaTimeFrame(timeframe)
	if err != nil {
		return nil, err
	}

	bars, err := p.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("get bars for %s: %w", symbol, err)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s %s", ErrDataUnavailable, symbol, timeframe)
	}

	candles := make([]domain.Candle, 0, len(bars))
	for _, bar := range bars {
		candles = append(candles, domain.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: bar.Timestamp.UTC(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    float64(bar.Volume),
		})
	}

	p.logger.Debug().
		Str("symbol", symbol).
		Str("timeframe", string(timeframe)).
		Int("candles", len(candles)).
		Msg("fetched historical bars")

	return candles, nil
}

// Subscribe is not supported; live quotes arrive over the stream client.
func (p *AlpacaProvider) Subscribe(ctx context.Context, symbols []string, handler QuoteHandler) (CancelFunc, error) {
	return nil, fmt.Errorf("%w: historical provider has no live subscription", ErrDataUnavailable)
}

// alpacaTimeFrame maps a bar interval to the Alpaca request timeframe.
func alpacaTimeFrame(timeframe domain.Timeframe) (marketdata.TimeFrame, error) {
	switch timeframe {
	case domain.Timeframe1Min:
		return marketdata.OneMin, nil
	case domain.Timeframe5Min:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case domain.Timeframe15Min:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
}
