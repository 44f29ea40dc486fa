package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"TokenLens/internal/domain/models"
	xhttp "TokenLens/pkg/http"

	"go.opentelemetry.io/otel/trace"
)

const NameReddit = "reddit"

// RedditConfig configures the Reddit adapter.
type RedditConfig struct {
	BaseURL   string
	UserAgent string
	Limit     int
	Timeout   time.Duration
}

// RedditProvider counts subreddit posts mentioning the token over the last
// two days and scores their tone from titles.
type RedditProvider struct {
	httpBase
	dir   *Directory
	limit int
	now   func() time.Time
}

func NewRedditProvider(cfg RedditConfig, dir *Directory, tracer trace.Tracer) *RedditProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.reddit.com"
	}
	if cfg.Limit <= 0 || cfg.Limit > 100 {
		cfg.Limit = 100
	}
	return &RedditProvider{
		httpBase: newHTTPBase(cfg.BaseURL, cfg.Timeout, tracer, xhttp.WithUserAgent(cfg.UserAgent)),
		dir:      dir,
		limit:    cfg.Limit,
		now:      time.Now,
	}
}

func (p *RedditProvider) Name() string                  { return NameReddit }
func (p *RedditProvider) Capability() models.Capability { return models.CapabilitySocialMentions }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID         string  `json:"id"`
				Title      string  `json:"title"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (p *RedditProvider) Fetch(ctx context.Context, tokenKey string) models.ProviderResult {
	ctx, span := p.tracer.Start(ctx, "reddit.search")
	defer span.End()

	ref := p.dir.Lookup(tokenKey)
	now := p.now()
	dayAgo := now.Add(-24 * time.Hour)
	twoDaysAgo := now.Add(-48 * time.Hour)

	var (
		cur, prev int
		tone      float64
		scored    int
		sources   []string
		lastErr   error
		seen      = map[string]bool{}
	)
	for _, sub := range ref.Subreddits {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}
		var listing redditListing
		err := p.getJSON(ctx, fmt.Sprintf("/r/%s/search.json", url.PathEscape(sub)), url.Values{
			"q":           {ref.Key},
			"restrict_sr": {"1"},
			"sort":        {"new"},
			"t":           {"week"},
			"limit":       {strconv.Itoa(p.limit)},
		}, nil, &listing)
		if err != nil {
			lastErr = err
			continue
		}
		sources = append(sources, "r/"+sub)

		for _, child := range listing.Data.Children {
			post := child.Data
			if post.ID == "" || seen[post.ID] {
				continue
			}
			seen[post.ID] = true
			at := time.Unix(int64(post.CreatedUTC), 0)
			switch {
			case !at.Before(dayAgo):
				cur++
			case !at.Before(twoDaysAgo):
				prev++
			default:
				continue
			}
			if s, ok := titleTone(post.Title); ok {
				tone += s
				scored++
			}
		}
	}

	if len(sources) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no subreddits for %s: %w", ref.Key, ErrUnconfigured)
		}
		return Classify(p.Capability(), p.Name(), lastErr)
	}
	if cur == 0 && prev == 0 {
		return models.Empty(p.Capability())
	}

	sentiment := 0.0
	if scored > 0 {
		sentiment = tone / float64(scored)
	}
	return models.Success(p.Capability(), models.SocialMentions{
		Current24h:  cur,
		Previous24h: prev,
		Sentiment:   sentiment,
		Sources:     sources,
	})
}

var (
	bullishWords = wordSet("bull", "bullish", "moon", "mooning", "pump", "pumping", "breakout", "rally", "ath", "buy", "buying", "surge", "surging")
	bearishWords = wordSet("bear", "bearish", "dump", "dumping", "crash", "crashing", "scam", "rug", "rugpull", "sell", "selling", "hack", "hacked", "drop")
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// titleTone scores a title in [-1,1]; ok is false when no lexicon word matches.
func titleTone(title string) (float64, bool) {
	var pos, neg int
	for _, w := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if bullishWords[w] {
			pos++
		}
		if bearishWords[w] {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0, false
	}
	return float64(pos-neg) / float64(pos+neg), true
}
