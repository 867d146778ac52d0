// Package scraper provides the core functionality for collecting fund data.
//
// The scraper package orchestrates the collection pipeline, coordinating
// between source clients, the payload parser, rate limiting and storage.
//
// Architecture:
//
// The Registry maps source identities to clients, split by capability:
// a client that can walk a ranked listing implements ListingFetcher, one
// that can fetch per-fund documents implements EntityFetcher, and so on.
// Sources register whatever subset they support; asking for a missing
// capability is a configuration error, not a panic.
//
// The Collector walks a paginated listing. Page 1 is fetched alone first
// because it carries the total record count; the remaining pages run on
// a bounded worker pool. A failed page is logged and skipped, so one bad
// page never loses the rest of the listing.
//
// The Service ties it together: batched entity tasks with per-item
// failure isolation, listing collection with date-keyed rank upserts,
// and reference-data imports.
//
// Usage:
//
//	store, _ := storage.Open("funds.db", log)
//	service, _ := scraper.NewService(scraper.NewRegistry(), store, nil, cfg, log)
//	service.Registry().Register(source.ID(), source)
//
//	task, _ := service.CreateTask(models.SourceEastmoney, models.KindBasic,
//	    []string{"000001", "000002"})
//	result, _ := service.RunTask(task.TaskID)
//
// Rate Limiting:
//
// Rate limits live inside the source clients, not here: every client
// shares one interval limiter per origin, so listing pages and entity
// fetches running on different workers still space their requests.
package scraper
