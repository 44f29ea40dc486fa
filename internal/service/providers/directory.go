package providers

import (
	"strings"

	"TokenLens/pkg/config"
	"TokenLens/pkg/util"
)

// TokenRef holds the upstream identifiers of one token.
type TokenRef struct {
	Key           string
	CoinGeckoID   string
	FinnhubSymbol string
	Address       string
	Subreddits    []string
}

// Directory resolves token keys to upstream identifiers. Unknown tokens
// get best-guess identifiers derived from the key; the contract address
// is only ever taken from configuration.
type Directory struct {
	tokens map[string]TokenRef
}

func NewDirectory(tokens map[string]config.TokenConfig) *Directory {
	d := &Directory{tokens: make(map[string]TokenRef, len(tokens))}
	for k, t := range tokens {
		key := util.NormalizeTokenKey(k)
		d.tokens[key] = TokenRef{
			Key:           key,
			CoinGeckoID:   strings.TrimSpace(t.CoinGeckoID),
			FinnhubSymbol: strings.ToUpper(strings.TrimSpace(t.FinnhubSymbol)),
			Address:       strings.TrimSpace(t.Address),
			Subreddits:    t.Subreddits,
		}
	}
	return d
}

// Lookup never fails; missing fields are filled from the key.
func (d *Directory) Lookup(tokenKey string) TokenRef {
	key := util.NormalizeTokenKey(tokenKey)
	ref, ok := d.tokens[key]
	if !ok {
		ref = TokenRef{Key: key}
	}
	if ref.CoinGeckoID == "" {
		ref.CoinGeckoID = strings.ToLower(key)
	}
	if ref.FinnhubSymbol == "" {
		ref.FinnhubSymbol = key
	}
	if len(ref.Subreddits) == 0 {
		ref.Subreddits = []string{"CryptoCurrency"}
	}
	return ref
}
