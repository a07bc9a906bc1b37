// Package feed fetches weekly performance and load data from the upstream
// dispatch feed shards.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/truckboard/truckboard/internal/domain"
)

// Dataset is the merged output of one full fetch across every shard.
type Dataset struct {
	Weekly []domain.WeeklyRecord
	Loads  []domain.LoadRecord
	// ShardsFailed counts shards that did not resolve; non-zero only when
	// the partial-failure policy allowed the fetch to proceed.
	ShardsFailed int
}

// shardPayload is the wire shape each shard serves.
type shardPayload struct {
	Weekly []domain.WeeklyRecord `json:"weekly"`
	Loads  []domain.LoadRecord   `json:"loads"`
}

// Config holds the feed endpoints and the partial-failure policy.
type Config struct {
	ShardURLs []string // weekly performance shards
	LoadURLs  []string // per-load detail shards
	Timeout   time.Duration
	// AllowPartial lets a fetch proceed with whatever shards resolved.
	// At least one shard must still succeed: aggregating nothing would
	// silently blank the dashboard.
	AllowPartial bool
}

// Client fetches and merges shard data. All shards are fetched
// concurrently; aggregation must not start until the merge completes,
// because weighted averages over a partial entity set skew every rank.
type Client struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a feed client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("client", "feed").Logger(),
	}
}

// FetchAll fetches every configured shard concurrently and merges the
// results. With AllowPartial set, failed shards are logged and skipped as
// long as at least one resolves; otherwise the first failure aborts the
// whole fetch.
func (c *Client) FetchAll(ctx context.Context) (*Dataset, error) {
	urls := make([]string, 0, len(c.cfg.ShardURLs)+len(c.cfg.LoadURLs))
	urls = append(urls, c.cfg.ShardURLs...)
	urls = append(urls, c.cfg.LoadURLs...)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no feed shards configured")
	}

	var (
		mu      sync.Mutex
		dataset Dataset
		ok      int
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, url := range urls {
		url := url
		g.Go(func() error {
			payload, err := c.fetchShard(ctx, url)
			if err != nil {
				if !c.cfg.AllowPartial {
					return err
				}
				c.log.Warn().Err(err).Str("url", url).Msg("Shard failed, proceeding without it")
				mu.Lock()
				dataset.ShardsFailed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			dataset.Weekly = append(dataset.Weekly, payload.Weekly...)
			dataset.Loads = append(dataset.Loads, payload.Loads...)
			ok++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("feed fetch failed: %w", err)
	}
	if ok == 0 {
		return nil, fmt.Errorf("all %d feed shards failed", len(urls))
	}

	c.log.Info().
		Int("shards", len(urls)).
		Int("failed", dataset.ShardsFailed).
		Int("weekly_records", len(dataset.Weekly)).
		Int("loads", len(dataset.Loads)).
		Msg("Feed fetch complete")
	return &dataset, nil
}

func (c *Client) fetchShard(ctx context.Context, url string) (*shardPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shard request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shard %s returned status %d", url, resp.StatusCode)
	}

	var payload shardPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse shard %s: %w", url, err)
	}
	return &payload, nil
}
