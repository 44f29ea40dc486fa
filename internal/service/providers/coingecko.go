package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"TokenLens/internal/domain/models"
	"TokenLens/internal/services/features"

	"go.opentelemetry.io/otel/trace"
)

const (
	NameCoinGecko   = "coingecko"
	NameCoinGeckoTA = "coingecko_ta"
)

// CoinGeckoConfig configures both CoinGecko adapters.
type CoinGeckoConfig struct {
	BaseURL   string
	APIKey    string
	ChartDays int
	Timeout   time.Duration
}

type coinGeckoBase struct {
	httpBase
	apiKey string
	dir    *Directory
}

func (b *coinGeckoBase) headers() map[string]string {
	h := map[string]string{}
	if b.apiKey != "" {
		h["x-cg-demo-api-key"] = b.apiKey
	}
	return h
}

// CoinGeckoProvider serves MarketSnapshot from /coins/markets.
type CoinGeckoProvider struct {
	coinGeckoBase
}

func NewCoinGeckoProvider(cfg CoinGeckoConfig, dir *Directory, tracer trace.Tracer) *CoinGeckoProvider {
	return &CoinGeckoProvider{coinGeckoBase{
		httpBase: newHTTPBase(cfg.BaseURL, cfg.Timeout, tracer),
		apiKey:   cfg.APIKey,
		dir:      dir,
	}}
}

func (p *CoinGeckoProvider) Name() string                  { return NameCoinGecko }
func (p *CoinGeckoProvider) Capability() models.Capability { return models.CapabilityMarketSnapshot }

type cgMarket struct {
	ID                       string   `json:"id"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                float64  `json:"market_cap"`
	TotalVolume              float64  `json:"total_volume"`
	PriceChangePercentage24h float64  `json:"price_change_percentage_24h"`
}

func (p *CoinGeckoProvider) Fetch(ctx context.Context, tokenKey string) models.ProviderResult {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-market")
	defer span.End()

	ref := p.dir.Lookup(tokenKey)
	var rows []cgMarket
	err := p.getJSON(ctx, "/coins/markets", url.Values{
		"vs_currency": {"usd"},
		"ids":         {ref.CoinGeckoID},
	}, p.headers(), &rows)
	if err != nil {
		return Classify(p.Capability(), p.Name(), err)
	}
	if len(rows) == 0 || rows[0].CurrentPrice == nil {
		return models.Empty(p.Capability())
	}

	m := rows[0]
	return models.Success(p.Capability(), models.MarketSnapshot{
		PriceUSD:     *m.CurrentPrice,
		MarketCapUSD: m.MarketCap,
		Volume24hUSD: m.TotalVolume,
		Change24hPct: m.PriceChangePercentage24h,
	})
}

// CoinGeckoTAProvider serves TechnicalSignals computed locally from the
// daily market_chart series.
type CoinGeckoTAProvider struct {
	coinGeckoBase
	days int
}

func NewCoinGeckoTAProvider(cfg CoinGeckoConfig, dir *Directory, tracer trace.Tracer) *CoinGeckoTAProvider {
	days := cfg.ChartDays
	if days < features.MinCloses {
		days = 60
	}
	return &CoinGeckoTAProvider{
		coinGeckoBase: coinGeckoBase{
			httpBase: newHTTPBase(cfg.BaseURL, cfg.Timeout, tracer),
			apiKey:   cfg.APIKey,
			dir:      dir,
		},
		days: days,
	}
}

func (p *CoinGeckoTAProvider) Name() string                  { return NameCoinGeckoTA }
func (p *CoinGeckoTAProvider) Capability() models.Capability { return models.CapabilityTechnicalSignals }

func (p *CoinGeckoTAProvider) Fetch(ctx context.Context, tokenKey string) models.ProviderResult {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-market-chart")
	defer span.End()

	ref := p.dir.Lookup(tokenKey)
	var raw struct {
		Prices [][]float64 `json:"prices"`
	}
	path := fmt.Sprintf("/coins/%s/market_chart", url.PathEscape(ref.CoinGeckoID))
	err := p.getJSON(ctx, path, url.Values{
		"vs_currency": {"usd"},
		"days":        {strconv.Itoa(p.days)},
		"interval":    {"daily"},
	}, p.headers(), &raw)
	if err != nil {
		return Classify(p.Capability(), p.Name(), err)
	}

	closes := make([]float64, 0, len(raw.Prices))
	for _, pt := range raw.Prices {
		if len(pt) >= 2 && pt[1] > 0 {
			closes = append(closes, pt[1])
		}
	}
	ts, ok := features.Technicals(closes, features.BarsPerYearDaily)
	if !ok {
		return models.Empty(p.Capability())
	}
	return models.Success(p.Capability(), ts)
}
