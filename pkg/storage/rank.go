package storage

import (
	"time"

	"fundscraper/pkg/errors"
	"fundscraper/pkg/models"
)

const dateFormat = "2006-01-02"

// UpsertRankEntries writes rank rows in one transaction, replacing any
// earlier row for the same (fund code, rank type, date). Re-running a
// collection for the same day refreshes the figures instead of piling
// up duplicates.
func (s *Store) UpsertRankEntries(entries []models.RankEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.NewStorageError("failed to begin rank transaction: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO rank_entries (
			fund_code, short_name, pinyin, rank_no, rank_type, rank_date,
			nav, accum_nav,
			daily_growth, weekly_growth, monthly_growth, quarterly_growth,
			yearly_growth, two_year_growth, three_year_growth, five_year_growth,
			ytd_growth, since_launch_growth
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fund_code, rank_type, rank_date) DO UPDATE SET
			short_name = excluded.short_name,
			pinyin = excluded.pinyin,
			rank_no = excluded.rank_no,
			nav = excluded.nav,
			accum_nav = excluded.accum_nav,
			daily_growth = excluded.daily_growth,
			weekly_growth = excluded.weekly_growth,
			monthly_growth = excluded.monthly_growth,
			quarterly_growth = excluded.quarterly_growth,
			yearly_growth = excluded.yearly_growth,
			two_year_growth = excluded.two_year_growth,
			three_year_growth = excluded.three_year_growth,
			five_year_growth = excluded.five_year_growth,
			ytd_growth = excluded.ytd_growth,
			since_launch_growth = excluded.since_launch_growth`)
	if err != nil {
		return errors.NewStorageError("failed to prepare rank upsert: %v", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.Exec(
			e.FundCode, e.ShortName, e.Pinyin, e.Rank, e.RankType,
			e.RankDate.Format(dateFormat),
			e.NAV, e.AccumNAV,
			e.DailyGrowth, e.WeeklyGrowth, e.MonthlyGrowth, e.QuarterlyGrowth,
			e.YearlyGrowth, e.TwoYearGrowth, e.ThreeYearGrowth, e.FiveYearGrowth,
			e.YTDGrowth, e.SinceLaunchGrowth,
		)
		if err != nil {
			return errors.NewStorageError("failed to upsert rank entry %s: %v", e.FundCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit rank entries: %v", err)
	}
	return nil
}

// RankEntries returns one day's rank rows ordered by rank.
func (s *Store) RankEntries(rankType string, date time.Time) ([]models.RankEntry, error) {
	rows, err := s.db.Query(`
		SELECT fund_code, short_name, pinyin, rank_no, rank_type, rank_date,
			nav, accum_nav,
			daily_growth, weekly_growth, monthly_growth, quarterly_growth,
			yearly_growth, two_year_growth, three_year_growth, five_year_growth,
			ytd_growth, since_launch_growth
		FROM rank_entries
		WHERE rank_type = ? AND rank_date = ?
		ORDER BY rank_no`,
		rankType, date.Format(dateFormat),
	)
	if err != nil {
		return nil, errors.NewStorageError("failed to query rank entries: %v", err)
	}
	defer rows.Close()

	var entries []models.RankEntry
	for rows.Next() {
		var e models.RankEntry
		var rankDate string
		err := rows.Scan(
			&e.FundCode, &e.ShortName, &e.Pinyin, &e.Rank, &e.RankType, &rankDate,
			&e.NAV, &e.AccumNAV,
			&e.DailyGrowth, &e.WeeklyGrowth, &e.MonthlyGrowth, &e.QuarterlyGrowth,
			&e.YearlyGrowth, &e.TwoYearGrowth, &e.ThreeYearGrowth, &e.FiveYearGrowth,
			&e.YTDGrowth, &e.SinceLaunchGrowth,
		)
		if err != nil {
			return nil, errors.NewStorageError("failed to scan rank entry: %v", err)
		}
		e.RankDate, _ = time.Parse(dateFormat, rankDate)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to iterate rank entries: %v", err)
	}
	return entries, nil
}
