package scraper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundscraper/pkg/config"
	"fundscraper/pkg/errors"
	"fundscraper/pkg/models"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu        sync.Mutex
	raws      map[string]models.RawRecord
	ranks     []models.RankEntry
	funds     map[string]models.FundInfo
	companies map[string]models.CompanyInfo
	tasks     map[string]models.CollectionTask
}

func newMemStore() *memStore {
	return &memStore{
		raws:      make(map[string]models.RawRecord),
		funds:     make(map[string]models.FundInfo),
		companies: make(map[string]models.CompanyInfo),
		tasks:     make(map[string]models.CollectionTask),
	}
}

func (m *memStore) SaveRaw(record models.RawRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.raws[record.Key()]; ok {
		return false, nil
	}
	m.raws[record.Key()] = record
	return true, nil
}

func (m *memStore) UpsertRankEntries(entries []models.RankEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranks = append(m.ranks, entries...)
	return nil
}

func (m *memStore) UpsertFunds(funds []models.FundInfo) (models.ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := models.ImportResult{TotalCount: len(funds)}
	for _, f := range funds {
		if existing, ok := m.funds[f.FundCode]; ok {
			if existing != f {
				result.UpdatedCount++
			}
		} else {
			result.AddedCount++
		}
		m.funds[f.FundCode] = f
	}
	return result, nil
}

func (m *memStore) UpsertCompanies(companies []models.CompanyInfo) (models.ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := models.ImportResult{TotalCount: len(companies)}
	for _, c := range companies {
		if existing, ok := m.companies[c.CompanyCode]; ok {
			if existing != c {
				result.UpdatedCount++
			}
		} else {
			result.AddedCount++
		}
		m.companies[c.CompanyCode] = c
	}
	return result, nil
}

func (m *memStore) SaveTask(task *models.CollectionTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.TaskID] = copyTask(task)
	return nil
}

func (m *memStore) UpdateTask(task *models.CollectionTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.TaskID]; !ok {
		return errors.NewStorageError("task %s does not exist", task.TaskID)
	}
	m.tasks[task.TaskID] = copyTask(task)
	return nil
}

func (m *memStore) GetTask(taskID string) (*models.CollectionTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, errors.NewStorageError("task %s not found", taskID)
	}
	copied := copyTask(&task)
	return &copied, nil
}

func (m *memStore) ListTasks(filter models.TaskFilter, page, pageSize int) (*models.TaskPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &models.TaskPage{Page: page, PageSize: pageSize}
	for _, task := range m.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		result.Tasks = append(result.Tasks, copyTask(&task))
	}
	result.Total = len(result.Tasks)
	return result, nil
}

func copyTask(task *models.CollectionTask) models.CollectionTask {
	copied := *task
	copied.Items = append([]models.TaskItem(nil), task.Items...)
	return copied
}

// fakeEntity serves documents per key and fails keys listed in failKeys.
type fakeEntity struct {
	failKeys map[string]bool

	mu    sync.Mutex
	calls int
}

func (f *fakeEntity) FetchEntity(key string, kind models.DataKind) (string, string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.failKeys[key] {
		return "", "", errors.NewFetchError(404, "resource not found")
	}
	return "<html>" + key + "</html>", "https://example.test/" + key + ".html", nil
}

// panickyEntity panics while fetching the keys listed in panicKeys.
type panickyEntity struct {
	panicKeys map[string]bool
}

func (f *panickyEntity) FetchEntity(key string, kind models.DataKind) (string, string, error) {
	if f.panicKeys[key] {
		panic("index out of range while decoding " + key)
	}
	return "<html>" + key + "</html>", "https://example.test/" + key + ".html", nil
}

// panicOnRunStore panics the first time a task is marked running,
// simulating a failure that escapes the per-item handlers.
type panicOnRunStore struct {
	*memStore
	tripped bool
}

func (p *panicOnRunStore) UpdateTask(task *models.CollectionTask) error {
	if task.Status == models.TaskRunning && !p.tripped {
		p.tripped = true
		panic("storage invariant violated")
	}
	return p.memStore.UpdateTask(task)
}

type fakeReference struct {
	catalogPayload string
	companyPayload string
}

func (f *fakeReference) FetchCatalog() (string, string, error) {
	return f.catalogPayload, "https://example.test/fundcode_search.js", nil
}

func (f *fakeReference) FetchCompanies() (string, string, error) {
	return f.companyPayload, "https://example.test/companies", nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Collector.Workers = 3

	service, err := NewService(NewRegistry(), store, nil, cfg, testLogger(t))
	require.NoError(t, err)
	return service
}

func TestCreateTaskValidation(t *testing.T) {
	service := newTestService(t, newMemStore())

	_, err := service.CreateTask(models.SourceEastmoney, models.KindBasic, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	// Duplicates and empty keys collapse.
	task, err := service.CreateTask(models.SourceEastmoney, models.KindBasic,
		[]string{"000001", "", "000002", "000001"})
	require.NoError(t, err)
	assert.Equal(t, 2, task.TotalCount)
	require.Len(t, task.Items, 2)
	assert.Equal(t, "000001", task.Items[0].EntityKey)
	assert.Equal(t, models.TaskPending, task.Status)
	assert.NotEmpty(t, task.TaskID)
}

func TestRunTaskIsolatesItemFailures(t *testing.T) {
	store := newMemStore()
	service := newTestService(t, store)

	fetcher := &fakeEntity{failKeys: map[string]bool{"000002": true}}
	require.NoError(t, service.Registry().Register(models.SourceEastmoney, fetcher))

	task, err := service.CreateTask(models.SourceEastmoney, models.KindBasic,
		[]string{"000001", "000002", "000003"})
	require.NoError(t, err)

	result, err := service.RunTask(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, result.Status)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)

	stored, err := service.TaskStatus(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, stored.Status)
	require.NotNil(t, stored.StartedAt)
	require.NotNil(t, stored.EndedAt)

	byKey := make(map[string]models.TaskItem)
	for _, item := range stored.Items {
		byKey[item.EntityKey] = item
	}
	assert.Equal(t, models.ItemSuccess, byKey["000001"].Status)
	assert.Equal(t, models.ItemFailed, byKey["000002"].Status)
	assert.Contains(t, byKey["000002"].ErrorMessage, "404")
	assert.Equal(t, models.ItemSuccess, byKey["000003"].Status)

	// Successful items left raw payloads behind, the failed one did not.
	assert.Len(t, store.raws, 2)
}

func TestRunTaskUnregisteredSourceFails(t *testing.T) {
	service := newTestService(t, newMemStore())

	task, err := service.CreateTask(models.SourceXueqiu, models.KindBasic, []string{"000001"})
	require.NoError(t, err)

	result, err := service.RunTask(task.TaskID)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	require.NotNil(t, result)
	assert.Equal(t, models.TaskFailed, result.Status)

	stored, err := service.TaskStatus(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
	// Items stay pending: nothing was attempted.
	require.Len(t, stored.Items, 1)
	assert.Equal(t, models.ItemPending, stored.Items[0].Status)
}

func TestRunTaskOnlyRunsPendingTasks(t *testing.T) {
	service := newTestService(t, newMemStore())
	require.NoError(t, service.Registry().Register(models.SourceEastmoney, &fakeEntity{}))

	task, err := service.CreateTask(models.SourceEastmoney, models.KindBasic, []string{"000001"})
	require.NoError(t, err)

	_, err = service.RunTask(task.TaskID)
	require.NoError(t, err)

	_, err = service.RunTask(task.TaskID)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestRunTaskDeduplicatesRefetch(t *testing.T) {
	store := newMemStore()
	service := newTestService(t, store)
	require.NoError(t, service.Registry().Register(models.SourceEastmoney, &fakeEntity{}))

	for i := 0; i < 2; i++ {
		task, err := service.CreateTask(models.SourceEastmoney, models.KindBasic, []string{"000001"})
		require.NoError(t, err)
		result, err := service.RunTask(task.TaskID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.SuccessCount)
	}

	// Same document fetched twice, stored once.
	assert.Len(t, store.raws, 1)
}

func TestRunTaskConfinesItemPanic(t *testing.T) {
	store := newMemStore()
	service := newTestService(t, store)
	require.NoError(t, service.Registry().Register(models.SourceEastmoney,
		&panickyEntity{panicKeys: map[string]bool{"000002": true}}))

	task, err := service.CreateTask(models.SourceEastmoney, models.KindBasic,
		[]string{"000001", "000002", "000003"})
	require.NoError(t, err)

	result, err := service.RunTask(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, result.Status)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)

	stored, err := service.TaskStatus(task.TaskID)
	require.NoError(t, err)
	byKey := make(map[string]models.TaskItem)
	for _, item := range stored.Items {
		byKey[item.EntityKey] = item
	}
	assert.Equal(t, models.ItemFailed, byKey["000002"].Status)
	assert.Contains(t, byKey["000002"].ErrorMessage, "panicked")
	assert.Equal(t, models.ItemSuccess, byKey["000001"].Status)
	assert.Equal(t, models.ItemSuccess, byKey["000003"].Status)
}

func TestRunTaskFailsOnEscapedPanic(t *testing.T) {
	store := &panicOnRunStore{memStore: newMemStore()}
	service := newTestService(t, store)
	require.NoError(t, service.Registry().Register(models.SourceEastmoney, &fakeEntity{}))

	task, err := service.CreateTask(models.SourceEastmoney, models.KindBasic, []string{"000001"})
	require.NoError(t, err)

	result, err := service.RunTask(task.TaskID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	require.NotNil(t, result)
	assert.Equal(t, models.TaskFailed, result.Status)

	stored, err := service.TaskStatus(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "panicked")
	// Nothing was attempted, so the items stay pending.
	require.Len(t, stored.Items, 1)
	assert.Equal(t, models.ItemPending, stored.Items[0].Status)
}

func TestCollectEntitiesReturnsRecords(t *testing.T) {
	store := newMemStore()
	service := newTestService(t, store)
	require.NoError(t, service.Registry().Register(models.SourceEastmoney,
		&fakeEntity{failKeys: map[string]bool{"000002": true}}))

	records, err := service.CollectEntities(models.SourceEastmoney, models.KindBasic,
		[]string{"000001", "000002", "000003", "000001", ""})
	require.NoError(t, err)
	require.Len(t, records, 2)

	byKey := make(map[string]models.RawRecord)
	for _, r := range records {
		byKey[r.EntityKey] = r
	}
	assert.Contains(t, byKey["000001"].Content, "000001")
	assert.Equal(t, models.KindBasic, byKey["000001"].Kind)
	assert.Equal(t, models.SourceEastmoney, byKey["000001"].Source)
	assert.NotEmpty(t, byKey["000001"].OriginURL)
	// The failed key contributes no record.
	_, ok := byKey["000002"]
	assert.False(t, ok)

	// Every returned record was also persisted.
	assert.Len(t, store.raws, 2)
}

func TestCollectEntitiesUnregisteredSource(t *testing.T) {
	service := newTestService(t, newMemStore())

	_, err := service.CollectEntities(models.SourceXueqiu, models.KindBasic, []string{"000001"})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestCollectListingStoresRankEntries(t *testing.T) {
	store := newMemStore()
	service := newTestService(t, store)
	require.NoError(t, service.Registry().Register(models.SourceEastmoney, &fakeListing{total: 120}))

	result, err := service.CollectListing(models.SourceEastmoney, "all", 0)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 120)
	assert.Len(t, store.ranks, 120)
}

func TestImportFunds(t *testing.T) {
	store := newMemStore()
	service := newTestService(t, store)

	payload := `var r = [["000001","HXCZ","fund one","mixed","HUAXIACHENGZHANG"],` +
		`["000002","HXDP","fund two","equity","HUAXIADAPAN"]];`
	require.NoError(t, service.Registry().Register(models.SourceEastmoney, &fakeReference{
		catalogPayload: payload,
	}))

	result, err := service.ImportFunds(models.SourceEastmoney)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, 2, result.AddedCount)
	assert.Equal(t, "fund one", store.funds["000001"].FundName)

	// Raw catalog payload captured alongside the parsed rows.
	assert.Len(t, store.raws, 1)

	// Second import of the same catalog adds nothing.
	result, err = service.ImportFunds(models.SourceEastmoney)
	require.NoError(t, err)
	assert.Equal(t, 0, result.AddedCount)
	assert.Equal(t, 0, result.UpdatedCount)
}

func TestImportCompanies(t *testing.T) {
	store := newMemStore()
	service := newTestService(t, store)

	payload := `var gs = {op:[["80000080","company A"],["80000081","company B"]]};`
	require.NoError(t, service.Registry().Register(models.SourceEastmoney, &fakeReference{
		companyPayload: payload,
	}))

	result, err := service.ImportCompanies(models.SourceEastmoney)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AddedCount)
	assert.Equal(t, "company A", store.companies["80000080"].CompanyName)
}

func TestImportFundsBadPayload(t *testing.T) {
	service := newTestService(t, newMemStore())
	require.NoError(t, service.Registry().Register(models.SourceEastmoney, &fakeReference{
		catalogPayload: "<html>maintenance page</html>",
	}))

	_, err := service.ImportFunds(models.SourceEastmoney)
	require.Error(t, err)
	assert.True(t, errors.IsParse(err))
}
