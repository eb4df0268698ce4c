package sentiment

import (
	"context"
	"sync"
	"time"

	"IndexPulse/internal/domain/models"
	xhttp "IndexPulse/pkg/http"
	applogger "IndexPulse/pkg/logger"
)

// HTTPSource pulls per-symbol sentiment scores from an external service
// and maps them onto feature-table rows. Scores are cached for a TTL so
// repeated augmentations within a window share one fetch. Unknown
// symbols and fetch failures yield a neutral 0.0.
type HTTPSource struct {
	client *xhttp.Client
	url    string
	ttl    time.Duration
	l      *applogger.Logger

	mu        sync.Mutex
	scores    map[string]float64
	fetchedAt time.Time
}

// NewHTTPSource creates the source. url points at an endpoint returning
// {"scores": {"SYMBOL": score}} for a symbols query parameter.
func NewHTTPSource(url string, timeout, ttl time.Duration, l *applogger.Logger) *HTTPSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &HTTPSource{
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
		url:    url,
		ttl:    ttl,
		l:      l,
	}
}

// Scores implements features.SentimentSource.
func (s *HTTPSource) Scores(t *models.Table) []float64 {
	bySymbol := s.fetch(distinct(t.Symbols))
	out := make([]float64, t.Len())
	for i := range out {
		if i < len(t.Symbols) {
			out[i] = bySymbol[t.Symbols[i]]
		}
	}
	return out
}

func (s *HTTPSource) fetch(symbols []string) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scores != nil && time.Since(s.fetchedAt) < s.ttl {
		return s.scores
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var resp struct {
		Scores map[string]float64 `json:"scores"`
	}
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.url,
		QueryParams: map[string][]string{"symbols": symbols},
	}, &resp)
	if err != nil {
		if s.l != nil {
			s.l.Warn("sentiment fetch failed, using neutral scores", applogger.Error(err))
		}
		if s.scores != nil {
			return s.scores
		}
		return map[string]float64{}
	}

	s.scores = resp.Scores
	s.fetchedAt = time.Now()
	return s.scores
}

func distinct(xs []string) []string {
	seen := make(map[string]bool, len(xs))
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
