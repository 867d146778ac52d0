package scraper

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"fundscraper/internal/fetchpool"
	"fundscraper/pkg/logger"
	"fundscraper/pkg/models"
	"fundscraper/pkg/parser"
)

// ListingResult is the outcome of one full listing collection run.
type ListingResult struct {
	Entries     []models.RankEntry
	TotalCount  int
	PagesTotal  int
	PagesOK     int
	PagesFailed int
	// FailedRows counts malformed rows skipped during parsing.
	FailedRows int
}

// Collector walks a paginated ranked listing across concurrent workers.
// Page 1 is fetched alone first: it carries the total record count that
// sizes the rest of the run. A failed page is logged and skipped; only
// a failed first page aborts the run.
type Collector struct {
	registry *Registry
	raws     RawStore
	workers  int
	pageSize int
	logger   logger.Logger
}

// NewCollector creates a listing collector. raws may be nil; raw page
// payloads are stored best-effort when it is not.
func NewCollector(registry *Registry, raws RawStore, workers, pageSize int, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	if workers <= 0 {
		workers = 5
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Collector{
		registry: registry,
		raws:     raws,
		workers:  workers,
		pageSize: pageSize,
		logger:   log,
	}
}

// CollectListing fetches every page of a source's ranked listing, up to
// maxPages (0 means no cap), and returns the merged entries ordered by
// rank.
func (c *Collector) CollectListing(source models.Source, rankType string, maxPages int) (*ListingResult, error) {
	fetcher, err := c.registry.ListingFetcher(source)
	if err != nil {
		return nil, err
	}

	c.logger.InfoWithFields("starting listing collection", map[string]interface{}{
		"source":    string(source),
		"rank_type": rankType,
		"page_size": c.pageSize,
		"max_pages": maxPages,
	})

	// The first page sizes the run; without it there is nothing to plan.
	first, err := c.collectPage(fetcher, source, rankType, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing page 1: %w", err)
	}

	result := &ListingResult{
		Entries:    first.Entries,
		TotalCount: first.TotalCount,
		PagesTotal: 1,
		PagesOK:    1,
		FailedRows: first.FailedRows,
	}

	if first.TotalCount == 0 {
		c.logger.InfoWithFields("listing is empty", map[string]interface{}{
			"source":    string(source),
			"rank_type": rankType,
		})
		return result, nil
	}

	totalPages := (first.TotalCount + c.pageSize - 1) / c.pageSize
	if maxPages > 0 && totalPages > maxPages {
		totalPages = maxPages
	}
	result.PagesTotal = totalPages
	if totalPages <= 1 {
		return result, nil
	}

	var (
		mu      sync.Mutex
		byPage  = make(map[int]*parser.RankListing, totalPages-1)
		pool    = fetchpool.New(c.workers, c.logger)
		done    = make(chan struct{})
		pagesOK = 0
	)

	pool.Start()
	go func() {
		defer close(done)
		for res := range pool.Results() {
			if res.Err != nil {
				c.logger.WarnWithFields("listing page failed, skipping", map[string]interface{}{
					"source": string(source),
					"page":   res.Job.Key,
					"error":  res.Err.Error(),
				})
			}
		}
	}()

	for page := 2; page <= totalPages; page++ {
		page := page
		job := fetchpool.Job{
			Key: fmt.Sprintf("page-%d", page),
			Execute: func() error {
				listing, err := c.collectPage(fetcher, source, rankType, page)
				if err != nil {
					return err
				}
				mu.Lock()
				byPage[page] = listing
				pagesOK++
				mu.Unlock()
				return nil
			},
		}
		if err := pool.Submit(job); err != nil {
			c.logger.WithError(err).Warn("listing job rejected")
		}
	}

	pool.Stop()
	<-done

	result.PagesOK += pagesOK
	result.PagesFailed = totalPages - result.PagesOK

	for page := 2; page <= totalPages; page++ {
		listing, ok := byPage[page]
		if !ok {
			continue
		}
		result.Entries = append(result.Entries, listing.Entries...)
		result.FailedRows += listing.FailedRows
	}
	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Rank < result.Entries[j].Rank
	})

	c.logger.InfoWithFields("listing collection finished", map[string]interface{}{
		"source":       string(source),
		"rank_type":    rankType,
		"entries":      len(result.Entries),
		"total_count":  result.TotalCount,
		"pages_total":  result.PagesTotal,
		"pages_failed": result.PagesFailed,
		"failed_rows":  result.FailedRows,
	})

	return result, nil
}

// collectPage fetches and parses one listing page, storing the raw
// payload when a raw store is attached. A storage failure never fails
// the page; the parsed entries are the point of the run.
func (c *Collector) collectPage(fetcher ListingFetcher, source models.Source, rankType string, page int) (*parser.RankListing, error) {
	payload, originURL, err := fetcher.FetchListingPage(rankType, page, c.pageSize)
	if err != nil {
		return nil, err
	}

	startRank := (page-1)*c.pageSize + 1
	listing, err := parser.ParseRankListing(payload, rankType, startRank)
	if err != nil {
		return nil, err
	}

	if c.raws != nil {
		record := models.RawRecord{
			EntityKey: fmt.Sprintf("%s-page-%d", rankType, page),
			Kind:      models.KindOther,
			Source:    source,
			OriginURL: originURL,
			Content:   payload,
			FetchedAt: time.Now(),
		}
		if _, err := c.raws.SaveRaw(record); err != nil {
			c.logger.WarnWithFields("failed to store raw listing page", map[string]interface{}{
				"source": string(source),
				"page":   page,
				"error":  err.Error(),
			})
		}
	}

	return listing, nil
}
