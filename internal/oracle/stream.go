package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/makwansoran/futrledger/internal/domain"
)

const (
	writeWait = 10 * time.Second

	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// PriceStream subscribes to a ticker websocket feed and writes every tick
// into the price cache, so the REST path mostly serves cache hits. It
// reconnects with exponential backoff on disconnect.
type PriceStream struct {
	wsURL     string
	assets    []domain.Asset
	cache     domain.PriceCache
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewPriceStream creates a stream for the given assets.
func NewPriceStream(wsURL string, assets []domain.Asset, cache domain.PriceCache, logger *slog.Logger) *PriceStream {
	return &PriceStream{
		wsURL:  wsURL,
		assets: assets,
		cache:  cache,
		logger: logger.With(slog.String("component", "price_stream")),
		done:   make(chan struct{}),
	}
}

// Run connects and streams ticks until the context is cancelled or Close is
// called. Connection failures back off exponentially.
func (s *PriceStream) Run(ctx context.Context) error {
	if len(s.assets) == 0 || s.wsURL == "" {
		s.logger.InfoContext(ctx, "price stream disabled, no assets or url configured")
		return nil
	}

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		err := s.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.WarnContext(ctx, "price stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Close stops the stream.
func (s *PriceStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *PriceStream) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("oracle: dial %s: %w", s.wsURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "price stream subscribed", slog.Int("assets", len(s.assets)))

	go s.pingLoop(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("oracle: read tick: %w", err)
		}
		s.handleTick(ctx, raw)
	}
}

func (s *PriceStream) subscribe(conn *websocket.Conn) error {
	products := make([]string, 0, len(s.assets))
	for _, a := range s.assets {
		products = append(products, string(a)+"-USD")
	}

	cmd := map[string]any{
		"type":        "subscribe",
		"channels":    []string{"ticker"},
		"product_ids": products,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("oracle: subscribe: %w", err)
	}
	return nil
}

// handleTick parses one ticker message and updates the cache. Unparseable
// messages are dropped.
func (s *PriceStream) handleTick(ctx context.Context, raw []byte) {
	var tick struct {
		Type      string `json:"type"`
		ProductID string `json:"product_id"`
		Price     string `json:"price"`
	}
	if err := json.Unmarshal(raw, &tick); err != nil || tick.Type != "ticker" {
		return
	}

	asset, ok := domain.ParseAsset(strings.TrimSuffix(tick.ProductID, "-USD"))
	if !ok {
		return
	}
	price, err := strconv.ParseFloat(tick.Price, 64)
	if err != nil || price <= 0 {
		return
	}

	if err := s.cache.SetPrice(ctx, string(asset), price, time.Now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "price cache write failed",
			slog.String("asset", string(asset)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PriceStream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
