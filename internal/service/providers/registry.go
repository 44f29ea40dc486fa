package providers

import (
	"fmt"
	"time"

	"TokenLens/internal/domain/models"
	"TokenLens/internal/domain/service"
	"TokenLens/internal/service/ratelimit"
	"TokenLens/pkg/config"

	"go.opentelemetry.io/otel/trace"
)

// Deps are the collaborators shared by every adapter.
type Deps struct {
	Config   *config.Config
	Tracer   trace.Tracer
	Cooldown *ratelimit.Cooldown
	Limiter  *ratelimit.Limiter
	Observer GuardObserver
}

// serves lists which capability each adapter implements.
var serves = map[string]models.Capability{
	NameCoinGecko:   models.CapabilityMarketSnapshot,
	NameFinnhub:     models.CapabilityMarketSnapshot,
	NameReddit:      models.CapabilitySocialMentions,
	NameWhaleAlert:  models.CapabilityWhaleActivity,
	NameCoinGeckoTA: models.CapabilityTechnicalSignals,
	NameAnalytics:   models.CapabilityTechnicalSignals,
	NameBlockscout:  models.CapabilityHolderDistribution,
}

// BuildChains turns the configured capability chains into ChainSpecs in
// canonical capability order. Demo entries are dropped when demo data is
// disabled.
func BuildChains(d Deps) ([]service.ChainSpec, error) {
	cfg := d.Config
	dir := NewDirectory(cfg.Tokens)
	if d.Cooldown == nil {
		d.Cooldown = ratelimit.NewCooldown(nil)
	}

	specs := make([]service.ChainSpec, 0, len(cfg.Capabilities))
	for _, c := range models.AllCapabilities() {
		cc, ok := cfg.Capabilities[string(c)]
		if !ok {
			continue
		}
		spec := service.ChainSpec{
			Capability: c,
			SuccessTTL: cc.SuccessTTL,
			ErrorTTL:   cc.ErrorTTL,
			Timeout:    cc.Timeout,
		}
		for _, name := range cc.Providers {
			if name == NameDemo {
				if cfg.Providers.Demo.Enabled {
					spec.Providers = append(spec.Providers, NewDemoProvider(c))
				}
				continue
			}
			p, err := newProvider(name, c, dir, d)
			if err != nil {
				return nil, err
			}
			spec.Providers = append(spec.Providers, p)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func newProvider(name string, c models.Capability, dir *Directory, d Deps) (service.Provider, error) {
	if want, ok := serves[name]; !ok || want != c {
		return nil, fmt.Errorf("provider %q cannot serve %s", name, c)
	}

	pc := d.Config.Providers
	timeout := pc.HTTPTimeout
	cg := CoinGeckoConfig{
		BaseURL:   pc.CoinGecko.BaseURL,
		APIKey:    pc.CoinGecko.APIKey,
		ChartDays: pc.CoinGecko.ChartDays,
		Timeout:   timeout,
	}

	var (
		p       service.Provider
		pacing  float64
		backoff = pc.RateLimitCooldown
	)
	switch name {
	case NameCoinGecko:
		p, pacing = NewCoinGeckoProvider(cg, dir, d.Tracer), pc.CoinGecko.RatePerMinute
	case NameCoinGeckoTA:
		p, pacing = NewCoinGeckoTAProvider(cg, dir, d.Tracer), pc.CoinGecko.RatePerMinute
	case NameFinnhub:
		p = NewFinnhubStreamProvider(FinnhubConfig{
			APIKey:       pc.Finnhub.APIKey,
			WebSocketURL: pc.Finnhub.WebSocketURL,
			Exchange:     pc.Finnhub.Exchange,
			Quote:        pc.Finnhub.Quote,
			DialTimeout:  timeout,
		}, dir, d.Tracer)
	case NameReddit:
		p = NewRedditProvider(RedditConfig{
			BaseURL:   pc.Reddit.BaseURL,
			UserAgent: pc.Reddit.UserAgent,
			Limit:     pc.Reddit.Limit,
			Timeout:   timeout,
		}, dir, d.Tracer)
	case NameWhaleAlert:
		p = NewWhaleAlertProvider(WhaleAlertConfig{
			BaseURL:     pc.WhaleAlert.BaseURL,
			APIKey:      pc.WhaleAlert.APIKey,
			MinValueUSD: pc.WhaleAlert.MinValueUSD,
			Timeout:     timeout,
		}, dir, d.Tracer)
	case NameBlockscout:
		p = NewBlockscoutProvider(BlockscoutConfig{BaseURL: pc.Blockscout.BaseURL, Timeout: timeout}, dir, d.Tracer)
	case NameAnalytics:
		p = NewAnalyticsProvider(AnalyticsConfig{
			ServiceURL: pc.Analytics.ServiceURL,
			Retries:    pc.Analytics.Retries,
			Timeout:    timeout,
		}, d.Tracer)
	}

	// both CoinGecko adapters draw from one budget
	opts := []GuardOption{WithBackoff(backoff), WithObserver(d.Observer)}
	if pacing > 0 {
		opts = append(opts, WithPacing(d.Limiter, "upstream:coingecko", pacing, 2))
	}
	return Guard(p, d.Cooldown, opts...), nil
}

// Describe summarizes chains for the capabilities endpoint.
type Describe struct {
	Capability models.Capability `json:"capability"`
	Providers  []string          `json:"providers"`
	SuccessTTL string            `json:"success_ttl"`
	ErrorTTL   string            `json:"error_ttl"`
	Timeout    string            `json:"timeout"`
}

func DescribeChains(specs []service.ChainSpec) []Describe {
	out := make([]Describe, 0, len(specs))
	for _, s := range specs {
		out = append(out, Describe{
			Capability: s.Capability,
			Providers:  s.ProviderNames(),
			SuccessTTL: s.SuccessTTL.Round(time.Second).String(),
			ErrorTTL:   s.ErrorTTL.Round(time.Second).String(),
			Timeout:    s.Timeout.String(),
		})
	}
	return out
}
