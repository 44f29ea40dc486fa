package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TokenLens/internal/domain/models"
	xhttp "TokenLens/pkg/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
)

const NameFinnhub = "finnhub"

// FinnhubConfig configures the Finnhub trade-stream adapter.
type FinnhubConfig struct {
	APIKey       string
	WebSocketURL string
	Exchange     string
	Quote        string
	DialTimeout  time.Duration
}

// FinnhubStreamProvider serves a price-only MarketSnapshot by subscribing
// to the Finnhub trade stream and returning the first trade it sees.
type FinnhubStreamProvider struct {
	cfg    FinnhubConfig
	dir    *Directory
	dialer *websocket.Dialer
	tracer trace.Tracer
}

func NewFinnhubStreamProvider(cfg FinnhubConfig, dir *Directory, tracer trace.Tracer) *FinnhubStreamProvider {
	if cfg.WebSocketURL == "" {
		cfg.WebSocketURL = "wss://ws.finnhub.io"
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "BINANCE"
	}
	if cfg.Quote == "" {
		cfg.Quote = "USDT"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &FinnhubStreamProvider{
		cfg:    cfg,
		dir:    dir,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout, Proxy: http.ProxyFromEnvironment},
		tracer: tracer,
	}
}

func (p *FinnhubStreamProvider) Name() string                  { return NameFinnhub }
func (p *FinnhubStreamProvider) Capability() models.Capability { return models.CapabilityMarketSnapshot }

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
	Msg  string    `json:"msg"`
}

// streamSymbol builds e.g. BINANCE:BTCUSDT.
func (p *FinnhubStreamProvider) streamSymbol(tokenKey string) string {
	ref := p.dir.Lookup(tokenKey)
	return fmt.Sprintf("%s:%s%s", p.cfg.Exchange, ref.FinnhubSymbol, p.cfg.Quote)
}

func (p *FinnhubStreamProvider) Fetch(ctx context.Context, tokenKey string) models.ProviderResult {
	ctx, span := p.tracer.Start(ctx, "finnhub.first-trade")
	defer span.End()

	if p.cfg.APIKey == "" {
		return Classify(p.Capability(), p.Name(), fmt.Errorf("finnhub api key: %w", ErrUnconfigured))
	}

	trade, err := p.firstTrade(ctx, p.streamSymbol(tokenKey))
	if err != nil {
		return Classify(p.Capability(), p.Name(), err)
	}
	return models.Success(p.Capability(), models.MarketSnapshot{PriceUSD: trade.P})
}

func (p *FinnhubStreamProvider) firstTrade(ctx context.Context, symbol string) (*fhTrade, error) {
	u := p.cfg.WebSocketURL + "?token=" + url.QueryEscape(p.cfg.APIKey)
	conn, resp, err := p.dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, &xhttp.StatusError{Code: resp.StatusCode, Body: "websocket handshake rejected"}
		}
		return nil, fmt.Errorf("finnhub connect: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage when the caller gives up
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	}

	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": symbol}); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", symbol, err)
	}
	defer func() {
		_ = conn.WriteJSON(map[string]string{"type": "unsubscribe", "symbol": symbol})
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, context.DeadlineExceeded
			}
			return nil, fmt.Errorf("finnhub read: %w", err)
		}
		var m fhMessage
		if err := json.Unmarshal(b, &m); err != nil {
			continue
		}
		switch m.Type {
		case "error":
			if strings.Contains(strings.ToLower(m.Msg), "limit") {
				return nil, &xhttp.StatusError{Code: http.StatusTooManyRequests, Body: m.Msg}
			}
			return nil, &decodeError{err: errors.New(m.Msg)}
		case "trade":
			for i := range m.Data {
				if m.Data[i].S == symbol && m.Data[i].P > 0 {
					return &m.Data[i], nil
				}
			}
		}
	}
}
