package queries

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"graphbench/internal/gremlin"
)

// DefaultWebsitesTTL is how long a discovered list of most active websites
// is reused.
const DefaultWebsitesTTL = 24 * time.Hour

// WebsiteSource yields the ids of the most visited websites.
type WebsiteSource interface {
	Websites(ctx context.Context, ev Evaluator) ([]string, error)
}

// StaticWebsites is a fixed list.
type StaticWebsites []string

func (s StaticWebsites) Websites(context.Context, Evaluator) ([]string, error) {
	if len(s) == 0 {
		return nil, errors.New("queries: website list is empty")
	}
	return s, nil
}

// ReadWebsites reads one website id per line. Blank lines and lines starting
// with # are ignored.
func ReadWebsites(r io.Reader) (StaticWebsites, error) {
	var out StaticWebsites
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("queries: read websites: %w", err)
	}
	return out, nil
}

func LoadWebsitesFile(path string) (StaticWebsites, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("queries: open websites file: %w", err)
	}
	defer f.Close()
	return ReadWebsites(f)
}

// WebsiteStore persists website lists per key.
type WebsiteStore interface {
	GetWebsites(key string) ([]string, time.Time, error)
	PutWebsites(key string, ids []string, at time.Time) error
}

// CachedWebsites runs the slow aggregation over all websites at most once per
// TTL and keeps the result in Store. When the aggregation fails it falls back
// to a stale cached list, then to Seed.
type CachedWebsites struct {
	Store  WebsiteStore
	Key    string
	TTL    time.Duration
	Seed   StaticWebsites
	Limit  int
	Now    func() time.Time
	Logger *zap.Logger
}

func (c *CachedWebsites) Websites(ctx context.Context, ev Evaluator) ([]string, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultWebsitesTTL
	}
	limit := c.Limit
	if limit <= 0 {
		limit = DiscoveryLimit
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cached, at, err := c.Store.GetWebsites(c.Key)
	if err == nil && len(cached) > 0 && now().Sub(at) < ttl {
		logger.Debug("using cached websites", zap.Int("count", len(cached)), zap.Time("discovered", at))
		return cached, nil
	}
	if err != nil {
		logger.Debug("no cached websites", zap.String("key", c.Key), zap.Error(err))
	}

	logger.Info("discovering most active websites, this may take a while")
	found, qerr := mostActiveWebsites(ctx, ev, limit)
	if qerr == nil && len(found) > 0 {
		if err := c.Store.PutWebsites(c.Key, found, now()); err != nil {
			logger.Warn("cannot cache websites", zap.Error(err))
		}
		return found, nil
	}
	if qerr == nil {
		qerr = ErrNoArguments
	}

	switch {
	case len(cached) > 0:
		logger.Warn("website discovery failed, using stale cache", zap.Error(qerr), zap.Time("discovered", at))
		return cached, nil
	case len(c.Seed) > 0:
		logger.Warn("website discovery failed, using seed list", zap.Error(qerr), zap.Int("count", len(c.Seed)))
		return c.Seed, nil
	}
	return nil, fmt.Errorf("queries: most active websites: %w", qerr)
}

func mostActiveWebsites(ctx context.Context, ev Evaluator, limit int) ([]string, error) {
	raw, err := ev.Eval(ctx, mostActiveWebsitesScript, map[string]any{"limit": gremlin.Int32(int32(limit))})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprint(v))
	}
	return out, nil
}
