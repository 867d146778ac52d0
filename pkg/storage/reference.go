package storage

import (
	"database/sql"

	"fundscraper/pkg/errors"
	"fundscraper/pkg/models"
)

// UpsertFunds merges a fund catalog into the store. New codes are
// inserted, changed rows updated in place, identical rows left alone;
// the returned counts distinguish the three.
func (s *Store) UpsertFunds(funds []models.FundInfo) (models.ImportResult, error) {
	result := models.ImportResult{TotalCount: len(funds)}
	if len(funds) == 0 {
		return result, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return result, errors.NewStorageError("failed to begin fund import: %v", err)
	}
	defer tx.Rollback()

	selectStmt, err := tx.Prepare(`
		SELECT short_name, fund_name, fund_type, pinyin FROM funds WHERE fund_code = ?`)
	if err != nil {
		return result, errors.NewStorageError("failed to prepare fund lookup: %v", err)
	}
	defer selectStmt.Close()

	upsertStmt, err := tx.Prepare(`
		INSERT INTO funds (fund_code, short_name, fund_name, fund_type, pinyin)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fund_code) DO UPDATE SET
			short_name = excluded.short_name,
			fund_name = excluded.fund_name,
			fund_type = excluded.fund_type,
			pinyin = excluded.pinyin`)
	if err != nil {
		return result, errors.NewStorageError("failed to prepare fund upsert: %v", err)
	}
	defer upsertStmt.Close()

	for _, f := range funds {
		var existing models.FundInfo
		err := selectStmt.QueryRow(f.FundCode).Scan(
			&existing.ShortName, &existing.FundName, &existing.FundType, &existing.Pinyin)
		switch {
		case err == sql.ErrNoRows:
			result.AddedCount++
		case err != nil:
			return result, errors.NewStorageError("failed to look up fund %s: %v", f.FundCode, err)
		case existing.ShortName == f.ShortName && existing.FundName == f.FundName &&
			existing.FundType == f.FundType && existing.Pinyin == f.Pinyin:
			continue
		default:
			result.UpdatedCount++
		}

		if _, err := upsertStmt.Exec(f.FundCode, f.ShortName, f.FundName, f.FundType, f.Pinyin); err != nil {
			return result, errors.NewStorageError("failed to upsert fund %s: %v", f.FundCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return result, errors.NewStorageError("failed to commit fund import: %v", err)
	}
	return result, nil
}

// GetFund returns one catalog row, or nil when the code is unknown.
func (s *Store) GetFund(fundCode string) (*models.FundInfo, error) {
	var f models.FundInfo
	err := s.db.QueryRow(`
		SELECT fund_code, short_name, fund_name, fund_type, pinyin
		FROM funds WHERE fund_code = ?`, fundCode,
	).Scan(&f.FundCode, &f.ShortName, &f.FundName, &f.FundType, &f.Pinyin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageError("failed to load fund %s: %v", fundCode, err)
	}
	return &f, nil
}

// CountFunds returns the catalog size.
func (s *Store) CountFunds() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM funds`).Scan(&n); err != nil {
		return 0, errors.NewStorageError("failed to count funds: %v", err)
	}
	return n, nil
}

// UpsertCompanies merges a company listing into the store, mirroring
// UpsertFunds.
func (s *Store) UpsertCompanies(companies []models.CompanyInfo) (models.ImportResult, error) {
	result := models.ImportResult{TotalCount: len(companies)}
	if len(companies) == 0 {
		return result, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return result, errors.NewStorageError("failed to begin company import: %v", err)
	}
	defer tx.Rollback()

	for _, c := range companies {
		var existingName string
		err := tx.QueryRow(`SELECT company_name FROM companies WHERE company_code = ?`,
			c.CompanyCode).Scan(&existingName)
		switch {
		case err == sql.ErrNoRows:
			result.AddedCount++
		case err != nil:
			return result, errors.NewStorageError("failed to look up company %s: %v", c.CompanyCode, err)
		case existingName == c.CompanyName:
			continue
		default:
			result.UpdatedCount++
		}

		_, err = tx.Exec(`
			INSERT INTO companies (company_code, company_name) VALUES (?, ?)
			ON CONFLICT(company_code) DO UPDATE SET company_name = excluded.company_name`,
			c.CompanyCode, c.CompanyName)
		if err != nil {
			return result, errors.NewStorageError("failed to upsert company %s: %v", c.CompanyCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return result, errors.NewStorageError("failed to commit company import: %v", err)
	}
	return result, nil
}
