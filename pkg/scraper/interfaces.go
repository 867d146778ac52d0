package scraper

import (
	"sync"

	"fundscraper/pkg/errors"
	"fundscraper/pkg/models"
)

// ListingFetcher fetches one page of a ranked fund listing for the given
// category. The payload comes back raw; decoding is the parser's job.
type ListingFetcher interface {
	FetchListingPage(rankType string, page, pageSize int) (payload, originURL string, err error)
}

// EntityFetcher fetches one document of the given kind for a single
// entity key (a fund code, for the sources currently implemented).
type EntityFetcher interface {
	FetchEntity(key string, kind models.DataKind) (payload, originURL string, err error)
}

// CatalogFetcher fetches a source's full fund reference catalog.
type CatalogFetcher interface {
	FetchCatalog() (payload, originURL string, err error)
}

// CompanyFetcher fetches a source's fund company listing.
type CompanyFetcher interface {
	FetchCompanies() (payload, originURL string, err error)
}

// RawStore persists raw payloads. Save reports whether the record was
// new; a false return with nil error means the natural key already
// existed and the stored content was left untouched.
type RawStore interface {
	SaveRaw(record models.RawRecord) (bool, error)
}

// RankStore persists structured rank rows, upserting on
// (fund code, rank type, rank date).
type RankStore interface {
	UpsertRankEntries(entries []models.RankEntry) error
}

// ReferenceStore persists fund and company reference data, updating
// rows in place on re-import.
type ReferenceStore interface {
	UpsertFunds(funds []models.FundInfo) (models.ImportResult, error)
	UpsertCompanies(companies []models.CompanyInfo) (models.ImportResult, error)
}

// TaskStore persists collection tasks and their items.
type TaskStore interface {
	SaveTask(task *models.CollectionTask) error
	UpdateTask(task *models.CollectionTask) error
	GetTask(taskID string) (*models.CollectionTask, error)
	ListTasks(filter models.TaskFilter, page, pageSize int) (*models.TaskPage, error)
}

// Store is the full persistence surface the service needs.
type Store interface {
	RawStore
	RankStore
	ReferenceStore
	TaskStore
}

// Registry maps source identities to registered clients, split by
// capability. A client declares a capability by implementing the
// matching fetcher interface; registration records whichever ones it
// has.
type Registry struct {
	mu        sync.RWMutex
	listing   map[models.Source]ListingFetcher
	entity    map[models.Source]EntityFetcher
	catalog   map[models.Source]CatalogFetcher
	companies map[models.Source]CompanyFetcher
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		listing:   make(map[models.Source]ListingFetcher),
		entity:    make(map[models.Source]EntityFetcher),
		catalog:   make(map[models.Source]CatalogFetcher),
		companies: make(map[models.Source]CompanyFetcher),
	}
}

// Register records a client under a source identity. The client must
// implement at least one fetcher capability. Registering the same
// source again replaces the earlier client.
func (r *Registry) Register(source models.Source, client interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	registered := false
	if f, ok := client.(ListingFetcher); ok {
		r.listing[source] = f
		registered = true
	}
	if f, ok := client.(EntityFetcher); ok {
		r.entity[source] = f
		registered = true
	}
	if f, ok := client.(CatalogFetcher); ok {
		r.catalog[source] = f
		registered = true
	}
	if f, ok := client.(CompanyFetcher); ok {
		r.companies[source] = f
		registered = true
	}

	if !registered {
		return errors.NewConfigurationError("client for source %q implements no fetcher capability", source)
	}
	return nil
}

// ListingFetcher returns the listing client for a source.
func (r *Registry) ListingFetcher(source models.Source) (ListingFetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.listing[source]
	if !ok {
		return nil, errors.NewConfigurationError("no listing client registered for source %q", source)
	}
	return f, nil
}

// EntityFetcher returns the entity client for a source.
func (r *Registry) EntityFetcher(source models.Source) (EntityFetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.entity[source]
	if !ok {
		return nil, errors.NewConfigurationError("no entity client registered for source %q", source)
	}
	return f, nil
}

// CatalogFetcher returns the catalog client for a source.
func (r *Registry) CatalogFetcher(source models.Source) (CatalogFetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.catalog[source]
	if !ok {
		return nil, errors.NewConfigurationError("no catalog client registered for source %q", source)
	}
	return f, nil
}

// CompanyFetcher returns the company listing client for a source.
func (r *Registry) CompanyFetcher(source models.Source) (CompanyFetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.companies[source]
	if !ok {
		return nil, errors.NewConfigurationError("no company client registered for source %q", source)
	}
	return f, nil
}

// Sources lists every source with at least one registered capability.
func (r *Registry) Sources() []models.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[models.Source]bool)
	for s := range r.listing {
		seen[s] = true
	}
	for s := range r.entity {
		seen[s] = true
	}
	for s := range r.catalog {
		seen[s] = true
	}
	for s := range r.companies {
		seen[s] = true
	}

	sources := make([]models.Source, 0, len(seen))
	for s := range seen {
		sources = append(sources, s)
	}
	return sources
}
