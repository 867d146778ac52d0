package scraper

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fundscraper/internal/fetchpool"
	"fundscraper/internal/metrics"
	"fundscraper/pkg/config"
	"fundscraper/pkg/errors"
	"fundscraper/pkg/logger"
	"fundscraper/pkg/models"
	"fundscraper/pkg/parser"
	"fundscraper/pkg/retry"
)

// Service orchestrates collection runs: listing walks, batched entity
// tasks, and reference-data imports. It owns nothing network-facing
// itself; sources register their clients and the service routes work
// through the registry.
type Service struct {
	registry  *Registry
	collector *Collector
	store     Store
	metrics   *metrics.Collector
	workers   int
	logger    logger.Logger
}

// NewService creates a collection service. mc may be nil; a fresh
// metrics collector is created in that case.
func NewService(registry *Registry, store Store, mc *metrics.Collector, cfg *config.Config, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if store == nil {
		return nil, errors.NewConfigurationError("service requires a store")
	}
	if mc == nil {
		var err error
		mc, err = metrics.NewCollector()
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics collector: %w", err)
		}
	}

	workers := cfg.Collector.Workers
	if workers <= 0 {
		workers = 5
	}

	return &Service{
		registry:  registry,
		collector: NewCollector(registry, store, workers, cfg.Collector.PageSize, log),
		store:     store,
		metrics:   mc,
		workers:   workers,
		logger:    log,
	}, nil
}

// Registry returns the source registry for client registration.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Metrics returns the pipeline metrics collector.
func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

// CreateTask records a new pending collection task over a batch of
// entity keys. Duplicate keys are collapsed, keeping first position.
func (s *Service) CreateTask(source models.Source, kind models.DataKind, keys []string) (*models.CollectionTask, error) {
	if len(keys) == 0 {
		return nil, errors.NewConfigurationError("task requires at least one entity key")
	}

	seen := make(map[string]bool, len(keys))
	items := make([]models.TaskItem, 0, len(keys))
	now := time.Now()
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, models.TaskItem{
			EntityKey: key,
			Status:    models.ItemPending,
			UpdatedAt: now,
		})
	}
	if len(items) == 0 {
		return nil, errors.NewConfigurationError("task requires at least one entity key")
	}

	task := &models.CollectionTask{
		TaskID:     uuid.NewString(),
		Source:     source,
		Kind:       kind,
		Status:     models.TaskPending,
		TotalCount: len(items),
		CreatedAt:  now,
		Items:      items,
	}

	if err := s.store.SaveTask(task); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	s.logger.InfoWithFields("task created", map[string]interface{}{
		"task_id": task.TaskID,
		"source":  string(source),
		"kind":    string(kind),
		"items":   len(items),
	})

	return task, nil
}

// RunTask executes a pending task. Items run concurrently; a failed
// item records its error and the run continues. The task itself fails
// only when no client is registered for its source or something
// unexpected escapes an item.
func (s *Service) RunTask(taskID string) (result *models.TaskResult, err error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskPending {
		return nil, errors.NewConfigurationError("task %s is %s, only pending tasks can run", taskID, task.Status)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", taskID, r)
			s.failTask(task, err.Error())
			result = s.taskResult(task)
		}
	}()

	fetcher, ferr := s.registry.EntityFetcher(task.Source)
	if ferr != nil {
		s.failTask(task, ferr.Error())
		return s.taskResult(task), ferr
	}

	now := time.Now()
	task.Status = models.TaskRunning
	task.StartedAt = &now
	if err := s.store.UpdateTask(task); err != nil {
		return nil, fmt.Errorf("failed to mark task running: %w", err)
	}

	s.logger.InfoWithFields("task started", map[string]interface{}{
		"task_id": task.TaskID,
		"source":  string(task.Source),
		"kind":    string(task.Kind),
		"items":   len(task.Items),
	})

	var mu sync.Mutex
	pool := fetchpool.New(s.workers, s.logger)
	pool.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range pool.Results() {
		}
	}()

	for i := range task.Items {
		item := &task.Items[i]
		if item.Status != models.ItemPending {
			continue
		}
		job := fetchpool.Job{
			Key: item.EntityKey,
			Execute: func() error {
				_, itemErr := s.fetchAndStore(fetcher, task.Source, task.Kind, item.EntityKey)
				mu.Lock()
				item.UpdatedAt = time.Now()
				if itemErr != nil {
					item.Status = models.ItemFailed
					item.ErrorMessage = itemErr.Error()
					task.ErrorCount++
				} else {
					item.Status = models.ItemSuccess
					task.SuccessCount++
				}
				mu.Unlock()
				s.metrics.ObserveTaskItem(string(task.Source), string(task.Kind), string(item.Status))
				return itemErr
			},
		}
		if err := pool.Submit(job); err != nil {
			s.logger.WithError(err).WithField("entity_key", item.EntityKey).Warn("task job rejected")
		}
	}

	pool.Stop()
	<-done

	end := time.Now()
	task.Status = models.TaskCompleted
	task.EndedAt = &end
	if err := s.store.UpdateTask(task); err != nil {
		return nil, fmt.Errorf("failed to finalize task: %w", err)
	}

	s.logger.InfoWithFields("task finished", map[string]interface{}{
		"task_id":       task.TaskID,
		"status":        string(task.Status),
		"success_count": task.SuccessCount,
		"error_count":   task.ErrorCount,
	})

	return s.taskResult(task), nil
}

// CollectEntities fetches one document of the given kind for each key,
// stores the raw payloads, and returns the records that were captured.
// A failed key is logged and skipped; the rest of the batch continues.
// Unlike RunTask, nothing is recorded in the task ledger.
func (s *Service) CollectEntities(source models.Source, kind models.DataKind, keys []string) ([]models.RawRecord, error) {
	fetcher, err := s.registry.EntityFetcher(source)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		records []models.RawRecord
	)
	pool := fetchpool.New(s.workers, s.logger)
	pool.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range pool.Results() {
			if res.Err != nil {
				s.logger.WarnWithFields("entity collection failed, skipping", map[string]interface{}{
					"source":     string(source),
					"kind":       string(kind),
					"entity_key": res.Job.Key,
					"error":      res.Err.Error(),
				})
			}
		}
	}()

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		key := key
		job := fetchpool.Job{
			Key: key,
			Execute: func() error {
				record, err := s.fetchAndStore(fetcher, source, kind, key)
				if err != nil {
					return err
				}
				mu.Lock()
				records = append(records, record)
				mu.Unlock()
				return nil
			},
		}
		if err := pool.Submit(job); err != nil {
			s.logger.WithError(err).WithField("entity_key", key).Warn("entity job rejected")
		}
	}

	pool.Stop()
	<-done

	return records, nil
}

// fetchAndStore fetches one document and stores it raw. A panic inside
// the fetch is confined to the key.
func (s *Service) fetchAndStore(fetcher EntityFetcher, source models.Source, kind models.DataKind, key string) (record models.RawRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("item %s panicked: %v", key, r)
		}
	}()

	start := time.Now()
	payload, originURL, err := fetcher.FetchEntity(key, kind)
	s.metrics.ObserveFetch(string(source), string(kind), err, time.Since(start))
	if err != nil {
		return models.RawRecord{}, err
	}

	record = models.RawRecord{
		EntityKey: key,
		Kind:      kind,
		Source:    source,
		OriginURL: originURL,
		Content:   payload,
		FetchedAt: time.Now(),
	}

	var stored bool
	err = retry.Do(func() error {
		var saveErr error
		stored, saveErr = s.store.SaveRaw(record)
		return saveErr
	}, &retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: 100 * time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
		Logger:      s.logger,
	})
	if err != nil {
		return models.RawRecord{}, err
	}

	s.metrics.ObserveRawStore(string(source), string(kind), stored)
	return record, nil
}

func (s *Service) failTask(task *models.CollectionTask, message string) {
	now := time.Now()
	task.Status = models.TaskFailed
	task.ErrorMessage = message
	if task.StartedAt == nil {
		task.StartedAt = &now
	}
	task.EndedAt = &now
	if err := s.store.UpdateTask(task); err != nil {
		s.logger.WithError(err).WithField("task_id", task.TaskID).Error("failed to persist failed task")
	}
}

func (s *Service) taskResult(task *models.CollectionTask) *models.TaskResult {
	return &models.TaskResult{
		TaskID:       task.TaskID,
		Status:       task.Status,
		SuccessCount: task.SuccessCount,
		ErrorCount:   task.ErrorCount,
	}
}

// TaskStatus returns the stored state of a task without touching it.
func (s *Service) TaskStatus(taskID string) (*models.CollectionTask, error) {
	return s.store.GetTask(taskID)
}

// TaskHistory returns one page of past tasks matching the filter.
func (s *Service) TaskHistory(filter models.TaskFilter, page, pageSize int) (*models.TaskPage, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return s.store.ListTasks(filter, page, pageSize)
}

// CollectListing walks a source's ranked listing and upserts the parsed
// rank rows, keyed by fund, rank type and date.
func (s *Service) CollectListing(source models.Source, rankType string, maxPages int) (*ListingResult, error) {
	result, err := s.collector.CollectListing(source, rankType, maxPages)
	if err != nil {
		return nil, err
	}

	s.metrics.AddParsedRows(string(source), "rank", len(result.Entries), result.FailedRows)

	if len(result.Entries) > 0 {
		if err := s.store.UpsertRankEntries(result.Entries); err != nil {
			return nil, fmt.Errorf("failed to store rank entries: %w", err)
		}
	}
	return result, nil
}

// ImportFunds fetches a source's fund catalog and merges it into the
// reference store, updating rows that changed since the last import.
func (s *Service) ImportFunds(source models.Source) (*models.ImportResult, error) {
	fetcher, err := s.registry.CatalogFetcher(source)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	payload, originURL, err := fetcher.FetchCatalog()
	s.metrics.ObserveFetch(string(source), "catalog", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.saveReferenceRaw(source, "fund-catalog", originURL, payload)

	funds, skipped, err := parser.ParseFundCatalog(payload)
	if err != nil {
		return nil, err
	}
	s.metrics.AddParsedRows(string(source), "catalog", len(funds), skipped)

	result, err := s.store.UpsertFunds(funds)
	if err != nil {
		return nil, fmt.Errorf("failed to store fund catalog: %w", err)
	}

	s.logger.InfoWithFields("fund catalog imported", map[string]interface{}{
		"source":  string(source),
		"total":   result.TotalCount,
		"added":   result.AddedCount,
		"updated": result.UpdatedCount,
		"skipped": skipped,
	})

	return &result, nil
}

// ImportCompanies fetches a source's fund company listing and merges it
// into the reference store.
func (s *Service) ImportCompanies(source models.Source) (*models.ImportResult, error) {
	fetcher, err := s.registry.CompanyFetcher(source)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	payload, originURL, err := fetcher.FetchCompanies()
	s.metrics.ObserveFetch(string(source), "companies", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.saveReferenceRaw(source, "company-listing", originURL, payload)

	companies, skipped, err := parser.ParseCompanyListing(payload)
	if err != nil {
		return nil, err
	}
	s.metrics.AddParsedRows(string(source), "companies", len(companies), skipped)

	result, err := s.store.UpsertCompanies(companies)
	if err != nil {
		return nil, fmt.Errorf("failed to store company listing: %w", err)
	}

	s.logger.InfoWithFields("company listing imported", map[string]interface{}{
		"source":  string(source),
		"total":   result.TotalCount,
		"added":   result.AddedCount,
		"updated": result.UpdatedCount,
		"skipped": skipped,
	})

	return &result, nil
}

// saveReferenceRaw keeps the raw reference payload for replay. Failure
// is logged, not propagated; the parsed data is the point of the call.
func (s *Service) saveReferenceRaw(source models.Source, key, originURL, payload string) {
	stored, err := s.store.SaveRaw(models.RawRecord{
		EntityKey: key,
		Kind:      models.KindOther,
		Source:    source,
		OriginURL: originURL,
		Content:   payload,
		FetchedAt: time.Now(),
	})
	if err != nil {
		s.logger.WarnWithFields("failed to store raw reference payload", map[string]interface{}{
			"source": string(source),
			"key":    key,
			"error":  err.Error(),
		})
		return
	}
	s.metrics.ObserveRawStore(string(source), "reference", stored)
}
