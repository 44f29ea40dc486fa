package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TokenLens/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newFinnhubServer(t *testing.T, onSubscribe func(conn *websocket.Conn, symbol string)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "fh-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		onSubscribe(conn, sub["symbol"])
		// drain until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestFinnhubReturnsFirstMatchingTrade(t *testing.T) {
	srv := newFinnhubServer(t, func(conn *websocket.Conn, symbol string) {
		assert.Equal(t, "BINANCE:UNIUSDT", symbol)
		_ = conn.WriteJSON(map[string]interface{}{"type": "ping"})
		_ = conn.WriteJSON(map[string]interface{}{"type": "trade", "data": []map[string]interface{}{
			{"s": "BINANCE:BTCUSDT", "p": 60000.0, "v": 1, "t": 1},
			{"s": symbol, "p": 7.25, "v": 10, "t": 2},
		}})
	})
	defer srv.Close()

	p := NewFinnhubStreamProvider(FinnhubConfig{APIKey: "fh-key", WebSocketURL: wsURL(srv)}, testDirectory(), testTracer)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res := p.Fetch(ctx, "UNI")
	require.True(t, res.IsSuccess(), "%+v", res.Err)
	snap, _ := models.PayloadAs[models.MarketSnapshot](res)
	assert.Equal(t, 7.25, snap.PriceUSD)
}

func TestFinnhubQuietStreamTimesOut(t *testing.T) {
	srv := newFinnhubServer(t, func(*websocket.Conn, string) {})
	defer srv.Close()

	p := NewFinnhubStreamProvider(FinnhubConfig{APIKey: "fh-key", WebSocketURL: wsURL(srv)}, testDirectory(), testTracer)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Equal(t, models.ErrTimeout, p.Fetch(ctx, "BTC").Kind())
}

func TestFinnhubRejectedHandshake(t *testing.T) {
	srv := newFinnhubServer(t, func(*websocket.Conn, string) {})
	defer srv.Close()

	p := NewFinnhubStreamProvider(FinnhubConfig{APIKey: "wrong", WebSocketURL: wsURL(srv)}, testDirectory(), testTracer)
	assert.Equal(t, models.ErrUnauthorized, p.Fetch(context.Background(), "BTC").Kind())
}

func TestFinnhubWithoutKeyIsUnconfigured(t *testing.T) {
	p := NewFinnhubStreamProvider(FinnhubConfig{}, testDirectory(), testTracer)
	assert.Equal(t, models.ErrUnconfigured, p.Fetch(context.Background(), "BTC").Kind())
}
