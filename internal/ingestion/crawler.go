// Package ingestion crawls Midgard swap actions backwards in time into
// per-asset-pair raw ndjson files, checkpointing after every page.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/idhash"
	"thorswap-lab/internal/midgard"
	"thorswap-lab/internal/observability"
	"thorswap-lab/internal/storage"
	"thorswap-lab/internal/storage/memory"
)

// DefaultThrottle is the pause between successful page requests.
const DefaultThrottle = 300 * time.Millisecond

const nsPerSecond = int64(time.Second)

// ErrNoAssets is returned when a crawler is configured without asset pairs.
var ErrNoAssets = errors.New("no assets configured")

// retryCounter is implemented by clients that count their own retries.
type retryCounter interface {
	Retries() int64
}

// Crawler walks each asset pair from its cursor back to the state's MinTs.
type Crawler struct {
	client   midgard.Client
	states   storage.CrawlStateStore
	seen     storage.SeenKeyStore
	outdir   string
	assets   []string
	typ      string
	limit    int
	throttle time.Duration
	logger   *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// CrawlerOptions contains configuration for creating a Crawler.
type CrawlerOptions struct {
	Client midgard.Client
	States storage.CrawlStateStore
	Seen   storage.SeenKeyStore // defaults to an in-memory set

	OutDir   string
	Assets   []string // defaults to DefaultAssets
	Type     string   // defaults to "swap"
	Limit    int      // defaults to midgard.MaxPageSize
	Throttle time.Duration
	Logger   *zap.Logger
}

// NewCrawler creates a new crawler.
func NewCrawler(opts CrawlerOptions) (*Crawler, error) {
	if opts.Client == nil || opts.States == nil {
		return nil, fmt.Errorf("crawler requires a client and a state store")
	}
	assets := opts.Assets
	if len(assets) == 0 {
		assets = DefaultAssets
	}
	for _, a := range assets {
		if a == "" {
			return nil, ErrNoAssets
		}
	}
	seen := opts.Seen
	if seen == nil {
		seen = memory.NewSeenKeyStore()
	}
	typ := opts.Type
	if typ == "" {
		typ = domain.TypeSwap
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = midgard.MaxPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Crawler{
		client:   opts.Client,
		states:   opts.States,
		seen:     seen,
		outdir:   opts.OutDir,
		assets:   assets,
		typ:      typ,
		limit:    limit,
		throttle: opts.Throttle,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}, nil
}

// Assets returns the crawled asset pairs in round-robin order.
func (c *Crawler) Assets() []string {
	return c.assets
}

// Prepare builds the starting state for a run. A fresh crawl starts every
// cursor at min(now, maxTs). A resumed crawl continues from the saved
// checkpoint, falling back to the oldest action already on disk. In both
// cases keys of actions already on disk are loaded into the seen store.
// minTs and maxTs are ns; zero means unbounded.
func (c *Crawler) Prepare(ctx context.Context, minTs, maxTs int64, resume bool) (*domain.CrawlState, error) {
	start := c.now().UnixNano()
	if maxTs > 0 && maxTs < start {
		start = maxTs
	}

	var state *domain.CrawlState
	if resume {
		saved, err := c.states.Load(ctx)
		switch {
		case err == nil:
			state = saved
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, fmt.Errorf("load crawl state: %w", err)
		}
	}
	if state == nil {
		state = domain.NewCrawlState(minTs, maxTs)
	}
	if minTs > 0 && (state.MinTs == 0 || minTs < state.MinTs) {
		// A lower bound further back reopens cursors that stopped at the old one.
		for a, cur := range state.Cursors {
			if cur.Finished && cur.Ts >= minTs {
				cur.Finished = false
				state.Cursors[a] = cur
			}
		}
		state.MinTs = minTs
	}
	if maxTs > 0 {
		state.MaxTs = maxTs
	}

	for _, a := range c.assets {
		n, oldest, err := c.loadSeen(ctx, a)
		if err != nil {
			return nil, err
		}
		if _, ok := state.Cursors[a]; ok {
			continue
		}
		cur := domain.CrawlCursor{Ts: start}
		if resume && oldest > 0 {
			cur.Ts = oldest
		}
		state.Cursors[a] = cur
		c.logger.Info("cursor initialized",
			zap.String("assets", a),
			zap.Int64("ts", cur.Ts),
			zap.Int("seen", n))
	}
	return state, nil
}

// loadSeen marks every action already in the raw file of assets as seen
// and returns how many there were and the oldest action date.
func (c *Crawler) loadSeen(ctx context.Context, assets string) (int, int64, error) {
	lines, err := readRawIfExists(RawPath(c.outdir, assets))
	if err != nil {
		return 0, 0, err
	}
	if len(lines) == 0 {
		return 0, 0, nil
	}

	keys := make([]string, 0, len(lines))
	var oldest int64
	for i := range lines {
		keys = append(keys, idhash.ComputeActionKey(&lines[i].Action))
		if d := lines[i].Action.DateNs(); d > 0 && (oldest == 0 || d < oldest) {
			oldest = d
		}
	}
	if err := c.seen.MarkSeen(ctx, assets, keys...); err != nil {
		return 0, 0, fmt.Errorf("load seen keys for %s: %w", assets, err)
	}
	return len(keys), oldest, nil
}

// Run crawls round-robin over all unfinished asset pairs until each reaches
// its lower bound or runs out of data. The state is saved after every page.
// On error the last saved state is returned together with the error so the
// caller can report where to resume.
func (c *Crawler) Run(ctx context.Context, state *domain.CrawlState) (*domain.CrawlState, error) {
	if state == nil {
		return nil, storage.ErrInvalidInput
	}
	state = state.Clone()
	for _, a := range c.assets {
		if _, ok := state.Cursors[a]; !ok {
			state.Cursors[a] = domain.CrawlCursor{Ts: c.now().UnixNano()}
		}
	}
	if err := c.checkpoint(ctx, state); err != nil {
		return state, err
	}

	retriesBefore := c.retries()
	defer func() {
		state.Stats.Retries += c.retries() - retriesBefore
	}()

	for !state.Done(c.assets) {
		for _, a := range c.assets {
			if state.Cursors[a].Finished {
				continue
			}
			if err := ctx.Err(); err != nil {
				return state, err
			}
			if err := c.step(ctx, state, a); err != nil {
				return state, fmt.Errorf("crawl %s: %w", a, err)
			}
		}
	}

	c.logger.Info("crawl finished",
		zap.Int64("pages", state.Stats.Pages),
		zap.Int64("written", state.Stats.Written),
		zap.Int64("duplicates", state.Stats.Duplicates))
	return state, nil
}

// step fetches and stores one page for assets and advances its cursor.
func (c *Crawler) step(ctx context.Context, state *domain.CrawlState, assets string) error {
	cur := state.Cursors[assets]

	if state.MinTs > 0 && cur.Ts < state.MinTs {
		c.logger.Info("reached lower bound", zap.String("assets", assets))
		cur.Finished = true
		state.Cursors[assets] = cur
		return c.checkpoint(ctx, state)
	}

	page, err := c.client.Actions(ctx, midgard.ActionsQuery{
		Type:         c.typ,
		Asset:        assets,
		TimestampSec: cur.Ts / nsPerSecond,
		Offset:       cur.Offset,
		Limit:        c.limit,
	})
	if err != nil {
		return err
	}
	state.Stats.Pages++
	state.Stats.Fetched += int64(len(page.Actions))

	if len(page.Actions) == 0 {
		c.logger.Info("no more data", zap.String("assets", assets))
		cur.Finished = true
		state.Cursors[assets] = cur
		return c.checkpoint(ctx, state)
	}

	var (
		keep          []int
		crossed       bool
		oldest        int64
		oldestSec     int64
		countAtOldest int
	)
	for i := range page.Actions {
		d := page.Actions[i].DateNs()
		if state.MinTs > 0 && d > 0 && d < state.MinTs {
			crossed = true
		} else {
			keep = append(keep, i)
		}
		if d > 0 && (oldest == 0 || d < oldest) {
			oldest = d
		}
	}
	if oldest > 0 {
		// Midgard filters by whole seconds, so the offset counts every
		// action already consumed in the oldest second.
		oldestSec = oldest / nsPerSecond
		for i := range page.Actions {
			if d := page.Actions[i].DateNs(); d > 0 && d/nsPerSecond == oldestSec {
				countAtOldest++
			}
		}
	}

	written, dups, err := c.write(ctx, assets, page, keep)
	if err != nil {
		return err
	}
	state.Stats.Written += int64(written)
	state.Stats.Duplicates += int64(dups)
	observability.RecordCrawlPage(assets, written, dups)

	switch {
	case oldest == 0:
		// No parseable dates: skip past the page so the crawl still advances.
		cur.Offset += len(page.Actions)
	case oldestSec == cur.Ts/nsPerSecond:
		cur.Offset += countAtOldest
	default:
		cur.Ts = oldest
		cur.Offset = countAtOldest
	}
	if crossed && len(keep) == 0 {
		c.logger.Info("all remaining actions before lower bound", zap.String("assets", assets))
		cur.Finished = true
	}
	state.Cursors[assets] = cur
	observability.UpdateCrawlCursor(assets, cur.Ts)

	c.logger.Debug("page stored",
		zap.String("assets", assets),
		zap.Int("actions", len(page.Actions)),
		zap.Int("written", written),
		zap.Int("duplicates", dups),
		zap.Int64("next_ts", cur.Ts),
		zap.Int("next_offset", cur.Offset))

	if err := c.checkpoint(ctx, state); err != nil {
		return err
	}
	return c.sleep(ctx, c.throttle)
}

// write appends the kept actions of page that were not seen before.
// Data is appended before keys are marked and before the checkpoint, so an
// interrupted page is re-fetched and deduplicated on resume.
func (c *Crawler) write(ctx context.Context, assets string, page *midgard.ActionsPage, keep []int) (written, dups int, err error) {
	var (
		raws  []json.RawMessage
		keys  []string
		batch = make(map[string]struct{}, len(keep))
	)
	for _, i := range keep {
		key := idhash.ComputeActionKey(&page.Actions[i])
		if _, dup := batch[key]; dup {
			dups++
			continue
		}
		seen, err := c.seen.IsSeen(ctx, assets, key)
		if err != nil {
			return 0, 0, fmt.Errorf("check seen key: %w", err)
		}
		if seen {
			dups++
			continue
		}
		batch[key] = struct{}{}
		raws = append(raws, page.Raw[i])
		keys = append(keys, key)
	}
	if len(raws) == 0 {
		return 0, dups, nil
	}

	if err := dataset.AppendRaw(RawPath(c.outdir, assets), raws); err != nil {
		return 0, 0, fmt.Errorf("append raw actions: %w", err)
	}
	if err := c.seen.MarkSeen(ctx, assets, keys...); err != nil {
		return 0, 0, fmt.Errorf("mark seen keys: %w", err)
	}
	return len(raws), dups, nil
}

func (c *Crawler) checkpoint(ctx context.Context, state *domain.CrawlState) error {
	state.UpdatedAt = c.now().UTC()
	if err := c.states.Save(ctx, state); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	observability.RecordCheckpoint()
	return nil
}

func (c *Crawler) retries() int64 {
	if rc, ok := c.client.(retryCounter); ok {
		return rc.Retries()
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
