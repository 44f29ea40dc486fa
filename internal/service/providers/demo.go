package providers

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"

	"TokenLens/internal/domain/models"
	"TokenLens/pkg/util"
)

const NameDemo = "demo"

// DemoProvider fabricates deterministic data seeded from the token key.
// It belongs last in a chain so that real sources always win.
type DemoProvider struct {
	capability models.Capability
}

func NewDemoProvider(c models.Capability) *DemoProvider {
	return &DemoProvider{capability: c}
}

func (p *DemoProvider) Name() string                  { return NameDemo }
func (p *DemoProvider) Capability() models.Capability { return p.capability }

func seeded(tokenKey string, c models.Capability) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(util.NormalizeTokenKey(tokenKey)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(c))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (p *DemoProvider) Fetch(_ context.Context, tokenKey string) models.ProviderResult {
	r := seeded(tokenKey, p.capability)
	switch p.capability {
	case models.CapabilityMarketSnapshot:
		price := round2(math.Pow(10, r.Float64()*5-1)) + 0.01
		mcap := price * (1e6 + r.Float64()*1e9)
		vol := mcap * (0.01 + r.Float64()*0.2)
		return models.Success(p.capability, models.MarketSnapshot{
			PriceUSD:     price,
			MarketCapUSD: round2(mcap),
			Volume24hUSD: round2(vol),
			Change24hPct: round2(r.Float64()*20 - 10),
			LiquidityUSD: round2(vol * (0.05 + r.Float64()*0.3)),
		})
	case models.CapabilitySocialMentions:
		prev := 10 + r.Intn(500)
		return models.Success(p.capability, models.SocialMentions{
			Current24h:  int(float64(prev) * (0.5 + r.Float64())),
			Previous24h: prev,
			Sentiment:   round2(r.Float64()*2 - 1),
			Sources:     []string{NameDemo},
		})
	case models.CapabilityWhaleActivity:
		n := r.Intn(40)
		avg := 5e5 + r.Float64()*5e6
		flow := float64(n) * avg
		in := flow * r.Float64()
		return models.Success(p.capability, models.WhaleActivity{
			Transfers24h: n,
			InflowUSD:    round2(in),
			OutflowUSD:   round2(flow - in),
			LargestUSD:   round2(avg * (1 + r.Float64()*2)),
		})
	case models.CapabilityTechnicalSignals:
		sma50 := 1 + r.Float64()*1000
		sma20 := sma50 * (0.9 + r.Float64()*0.2)
		macd := (sma20 - sma50) / 10
		trend := "sideways"
		switch {
		case sma20 > sma50*1.02:
			trend = "up"
		case sma20 < sma50*0.98:
			trend = "down"
		}
		return models.Success(p.capability, models.TechnicalSignals{
			RSI14:      round2(20 + r.Float64()*60),
			MACD:       round2(macd),
			MACDSignal: round2(macd * (0.5 + r.Float64())),
			SMA20:      round2(sma20),
			SMA50:      round2(sma50),
			Volatility: round2(0.2 + r.Float64()*1.3),
			Trend:      trend,
		})
	case models.CapabilityHolderDistribution:
		top10 := 10 + r.Float64()*60
		return models.Success(p.capability, models.HolderDistribution{
			TotalHolders: 1000 + r.Intn(500_000),
			Top10Pct:     round2(top10),
			Top50Pct:     round2(math.Min(100, top10+r.Float64()*25)),
			Gini:         round2(0.5 + r.Float64()*0.45),
		})
	default:
		return models.Failure(p.capability, models.ErrUnconfigured, NameDemo, "no demo data for %s", p.capability)
	}
}
