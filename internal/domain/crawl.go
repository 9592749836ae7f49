package domain

import "time"

// CrawlCursor is the backward-pagination position for one asset pair.
// Ts is the upper timestamp bound (ns) of the next page; Offset skips
// records already consumed at that exact bound.
type CrawlCursor struct {
	Ts       int64 `json:"ts"`
	Offset   int   `json:"offset"`
	Finished bool  `json:"finished"`
}

// CrawlStats counts crawl progress for reporting.
type CrawlStats struct {
	Pages      int64 `json:"pages"`
	Fetched    int64 `json:"fetched"`
	Written    int64 `json:"written"`
	Duplicates int64 `json:"duplicates"`
	Retries    int64 `json:"retries"`
}

// CrawlState is the checkpoint passed into and returned from a crawl.
// Keys of Cursors are asset-pair names such as "BTC.BTC-ETH.ETH".
type CrawlState struct {
	MinTs     int64                  `json:"minTs"`
	MaxTs     int64                  `json:"maxTs"`
	Cursors   map[string]CrawlCursor `json:"cursors"`
	Stats     CrawlStats             `json:"stats"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// NewCrawlState creates an empty checkpoint for the [minTs, maxTs] window.
func NewCrawlState(minTs, maxTs int64) *CrawlState {
	return &CrawlState{MinTs: minTs, MaxTs: maxTs, Cursors: make(map[string]CrawlCursor)}
}

// Clone returns a deep copy.
func (s *CrawlState) Clone() *CrawlState {
	c := *s
	c.Cursors = make(map[string]CrawlCursor, len(s.Cursors))
	for k, v := range s.Cursors {
		c.Cursors[k] = v
	}
	return &c
}

// Done reports whether every cursor in keys is finished.
func (s *CrawlState) Done(keys []string) bool {
	for _, k := range keys {
		if !s.Cursors[k].Finished {
			return false
		}
	}
	return true
}
