package providers

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"time"

	"TokenLens/internal/domain/models"

	"go.opentelemetry.io/otel/trace"
)

const NameBlockscout = "blockscout"

// BlockscoutConfig configures the Blockscout adapter.
type BlockscoutConfig struct {
	BaseURL string
	Timeout time.Duration
}

// BlockscoutProvider derives HolderDistribution for ERC-20 tokens from the
// Blockscout v2 token and holder endpoints.
type BlockscoutProvider struct {
	httpBase
	dir *Directory
}

func NewBlockscoutProvider(cfg BlockscoutConfig, dir *Directory, tracer trace.Tracer) *BlockscoutProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://eth.blockscout.com/api/v2"
	}
	return &BlockscoutProvider{httpBase: newHTTPBase(cfg.BaseURL, cfg.Timeout, tracer), dir: dir}
}

func (p *BlockscoutProvider) Name() string                  { return NameBlockscout }
func (p *BlockscoutProvider) Capability() models.Capability { return models.CapabilityHolderDistribution }

type bsToken struct {
	Holders     string `json:"holders"`
	HolderCount string `json:"holders_count"`
	TotalSupply string `json:"total_supply"`
}

type bsHolders struct {
	Items []struct {
		Value string `json:"value"`
	} `json:"items"`
}

func (p *BlockscoutProvider) Fetch(ctx context.Context, tokenKey string) models.ProviderResult {
	ctx, span := p.tracer.Start(ctx, "blockscout.holders")
	defer span.End()

	ref := p.dir.Lookup(tokenKey)
	if ref.Address == "" {
		return Classify(p.Capability(), p.Name(), fmt.Errorf("contract address for %s: %w", ref.Key, ErrUnconfigured))
	}
	addr := url.PathEscape(ref.Address)

	var tok bsToken
	if err := p.getJSON(ctx, "/tokens/"+addr, nil, nil, &tok); err != nil {
		return Classify(p.Capability(), p.Name(), err)
	}
	var holders bsHolders
	if err := p.getJSON(ctx, "/tokens/"+addr+"/holders", nil, nil, &holders); err != nil {
		return Classify(p.Capability(), p.Name(), err)
	}

	count := tok.HolderCount
	if count == "" {
		count = tok.Holders
	}
	total, _ := strconv.Atoi(count)
	supply := bigFloat(tok.TotalSupply)
	if total == 0 || len(holders.Items) == 0 || supply <= 0 {
		return models.Empty(p.Capability())
	}

	balances := make([]float64, 0, len(holders.Items))
	for _, h := range holders.Items {
		balances = append(balances, bigFloat(h.Value))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(balances)))

	return models.Success(p.Capability(), models.HolderDistribution{
		TotalHolders: total,
		Top10Pct:     topShare(balances, 10, supply),
		Top50Pct:     topShare(balances, 50, supply),
		Gini:         gini(balances),
	})
}

// bigFloat parses integer token amounts that overflow int64.
func bigFloat(s string) float64 {
	f, ok := new(big.Float).SetString(s)
	if !ok {
		return 0
	}
	v, _ := f.Float64()
	return v
}

func topShare(desc []float64, n int, supply float64) float64 {
	if n > len(desc) {
		n = len(desc)
	}
	sum := 0.0
	for _, b := range desc[:n] {
		sum += b
	}
	return math.Min(100, sum/supply*100)
}

// gini over the sampled balances; 0 is perfectly even.
func gini(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	asc := append([]float64(nil), values...)
	sort.Float64s(asc)
	var cum, weighted float64
	for i, v := range asc {
		cum += v
		weighted += float64(i+1) * v
	}
	if cum == 0 {
		return 0
	}
	return (2*weighted)/(float64(n)*cum) - float64(n+1)/float64(n)
}
