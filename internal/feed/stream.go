package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"squeezebot/internal/domain"
)

// StreamConfig configures the quote stream client.
type StreamConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration
	// ReadTimeout bounds a single read.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Stream is a websocket quote-stream client. It maintains one
// connection, resubscribes after reconnects, and dispatches parsed
// quotes to the registered handler.
type Stream struct {
	endpoint string
	config   StreamConfig
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	handlerMu sync.RWMutex
	handler   QuoteHandler
	symbols   []string

	reconnecting atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewStream creates a stream client and connects to the endpoint.
func NewStream(ctx context.Context, endpoint string, config *StreamConfig, logger zerolog.Logger) (*Stream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &Stream{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.With().Str("component", "quote_stream").Logger(),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// connect establishes the websocket connection.
func (s *Stream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Subscribe registers handler for symbols and sends the subscribe
// message. One subscription at a time; a second call replaces the first.
func (s *Stream) Subscribe(symbols []string, handler QuoteHandler) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	s.handlerMu.Lock()
	s.handler = handler
	s.symbols = append([]string(nil), symbols...)
	s.handlerMu.Unlock()

	return s.sendSubscribe(symbols)
}

func (s *Stream) sendSubscribe(symbols []string) error {
	msg := streamRequest{Type: "subscribe", Symbols: symbols}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close shuts down the stream.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// readLoop reads messages and dispatches quotes, reconnecting with
// exponential backoff on connection errors.
func (s *Stream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect re-establishes the connection and resubscribes.
func (s *Stream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("reconnect failed, will retry")
		return
	}

	s.handlerMu.RLock()
	symbols := append([]string(nil), s.symbols...)
	s.handlerMu.RUnlock()

	if len(symbols) > 0 {
		if err := s.sendSubscribe(symbols); err != nil {
			s.logger.Warn().Err(err).Msg("resubscribe failed")
		}
	}

	s.logger.Info().Msg("stream reconnected")
}

// handleMessage parses one inbound message and dispatches quotes.
func (s *Stream) handleMessage(message []byte) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.logger.Debug().Err(err).Msg("unparseable stream message")
		return
	}

	if msg.Type != "quote" || msg.Symbol == "" {
		return
	}

	ts := time.Now().UTC()
	if msg.Timestamp > 0 {
		ts = time.UnixMilli(msg.Timestamp).UTC()
	}

	quote := domain.Quote{
		Symbol:    msg.Symbol,
		Bid:       msg.Bid,
		Ask:       msg.Ask,
		Last:      msg.Last,
		Volume:    msg.Volume,
		Timestamp: ts,
	}

	s.handlerMu.RLock()
	handler := s.handler
	s.handlerMu.RUnlock()

	if handler != nil {
		handler(quote)
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, the reader handles reconnect.
					s.logger.Debug().Err(err).Msg("ping write failed")
				}
			}
			s.connMu.Unlock()
		}
	}
}

// Stream message types

type streamRequest struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

type streamMessage struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"`
}
