package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"TokenLens/internal/domain/models"

	"go.opentelemetry.io/otel/trace"
)

const NameWhaleAlert = "whalealert"

// WhaleAlertConfig configures the Whale Alert adapter.
type WhaleAlertConfig struct {
	BaseURL     string
	APIKey      string
	MinValueUSD int
	Timeout     time.Duration
}

// WhaleAlertProvider summarizes large transfers of the last 24h relative
// to exchange wallets.
type WhaleAlertProvider struct {
	httpBase
	apiKey   string
	minValue int
	dir      *Directory
	now      func() time.Time
}

func NewWhaleAlertProvider(cfg WhaleAlertConfig, dir *Directory, tracer trace.Tracer) *WhaleAlertProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.whale-alert.io/v1"
	}
	if cfg.MinValueUSD <= 0 {
		cfg.MinValueUSD = 500_000
	}
	return &WhaleAlertProvider{
		httpBase: newHTTPBase(cfg.BaseURL, cfg.Timeout, tracer),
		apiKey:   cfg.APIKey,
		minValue: cfg.MinValueUSD,
		dir:      dir,
		now:      time.Now,
	}
}

func (p *WhaleAlertProvider) Name() string                  { return NameWhaleAlert }
func (p *WhaleAlertProvider) Capability() models.Capability { return models.CapabilityWhaleActivity }

type waOwner struct {
	OwnerType string `json:"owner_type"`
}

type waResponse struct {
	Result       string `json:"result"`
	Message      string `json:"message"`
	Count        int    `json:"count"`
	Transactions []struct {
		AmountUSD float64 `json:"amount_usd"`
		From      waOwner `json:"from"`
		To        waOwner `json:"to"`
	} `json:"transactions"`
}

func (p *WhaleAlertProvider) Fetch(ctx context.Context, tokenKey string) models.ProviderResult {
	ctx, span := p.tracer.Start(ctx, "whalealert.transactions")
	defer span.End()

	if p.apiKey == "" {
		return Classify(p.Capability(), p.Name(), fmt.Errorf("whale alert api key: %w", ErrUnconfigured))
	}

	ref := p.dir.Lookup(tokenKey)
	var resp waResponse
	err := p.getJSON(ctx, "/transactions", url.Values{
		"api_key":   {p.apiKey},
		"min_value": {strconv.Itoa(p.minValue)},
		"start":     {strconv.FormatInt(p.now().Add(-24*time.Hour).Unix(), 10)},
		"currency":  {strings.ToLower(ref.Key)},
	}, nil, &resp)
	if err != nil {
		return Classify(p.Capability(), p.Name(), err)
	}
	if resp.Result != "success" {
		return Classify(p.Capability(), p.Name(), &decodeError{err: errors.New(resp.Message)})
	}

	var out models.WhaleActivity
	for _, tx := range resp.Transactions {
		out.Transfers24h++
		if tx.AmountUSD > out.LargestUSD {
			out.LargestUSD = tx.AmountUSD
		}
		toExchange := tx.To.OwnerType == "exchange"
		fromExchange := tx.From.OwnerType == "exchange"
		switch {
		case toExchange && !fromExchange:
			out.InflowUSD += tx.AmountUSD
		case fromExchange && !toExchange:
			out.OutflowUSD += tx.AmountUSD
		}
	}
	return models.Success(p.Capability(), out)
}
