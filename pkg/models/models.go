package models

import "time"

// Source identifies an external origin system with its own payload format
// and rate limits.
type Source string

const (
	SourceEastmoney Source = "eastmoney"
	SourceTiantian  Source = "tiantian"
	SourceXueqiu    Source = "xueqiu"
	SourceAnt       Source = "ant"
	SourceOther     Source = "other"
)

// DataKind is the category of payload captured for a fund.
type DataKind string

const (
	KindBasic    DataKind = "fund_basic"
	KindDaily    DataKind = "fund_daily"
	KindHoldings DataKind = "fund_holdings"
	KindRating   DataKind = "fund_rating"
	KindOther    DataKind = "other"
)

// RawRecord is one fetched payload, stored verbatim for replay/reparsing.
// The tuple (EntityKey, Kind, Source, OriginURL) is the natural key; raw
// data is immutable once captured.
type RawRecord struct {
	EntityKey string
	Kind      DataKind
	Source    Source
	OriginURL string
	Content   string
	FetchedAt time.Time
}

// Key returns the natural dedup key for the record.
func (r RawRecord) Key() string {
	return r.EntityKey + "|" + string(r.Kind) + "|" + string(r.Source) + "|" + r.OriginURL
}

// RankEntry is one structured, date-scoped row of a ranked fund listing.
// Growth fields are pointers: a nil value means the source omitted the
// figure, which is distinct from 0.
type RankEntry struct {
	FundCode  string
	ShortName string
	Pinyin    string
	Rank      int
	RankType  string
	RankDate  time.Time

	NAV      *float64
	AccumNAV *float64

	DailyGrowth       *float64
	WeeklyGrowth      *float64
	MonthlyGrowth     *float64
	QuarterlyGrowth   *float64
	YearlyGrowth      *float64
	TwoYearGrowth     *float64
	ThreeYearGrowth   *float64
	FiveYearGrowth    *float64
	YTDGrowth         *float64
	SinceLaunchGrowth *float64
}

// FundInfo is a reference row from a source's fund catalog.
type FundInfo struct {
	FundCode  string
	ShortName string
	FundName  string
	FundType  string
	Pinyin    string
}

// CompanyInfo is a reference row from a source's fund-company listing.
type CompanyInfo struct {
	CompanyCode string
	CompanyName string
}

// TaskStatus is the lifecycle state of a collection task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// ItemStatus is the lifecycle state of a single task item.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
)

// TaskItem is the per-entity sub-unit of a collection task.
type TaskItem struct {
	EntityKey    string
	Status       ItemStatus
	ErrorMessage string
	UpdatedAt    time.Time
}

// CollectionTask records one orchestrated collection run over a batch of
// entity keys. Counts only grow while the task is running and are frozen
// once it reaches a terminal status.
type CollectionTask struct {
	TaskID       string
	Source       Source
	Kind         DataKind
	Status       TaskStatus
	TotalCount   int
	SuccessCount int
	ErrorCount   int
	ErrorMessage string
	StartedAt    *time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time
	Items        []TaskItem
}

// TaskResult is the summary returned by RunTask.
type TaskResult struct {
	TaskID       string
	Status       TaskStatus
	SuccessCount int
	ErrorCount   int
}

// TaskFilter narrows a task history query. Zero values mean "no filter".
type TaskFilter struct {
	Source    Source
	Kind      DataKind
	Status    TaskStatus
	StartDate time.Time
	EndDate   time.Time
}

// TaskPage is one page of task history.
type TaskPage struct {
	Total    int
	Page     int
	PageSize int
	Tasks    []CollectionTask
}

// ImportResult summarizes a reference-data import.
type ImportResult struct {
	TotalCount   int
	AddedCount   int
	UpdatedCount int
}
