package parser

import (
	"strings"

	errs "fundscraper/pkg/errors"
	"fundscraper/pkg/models"
)

// The fund catalog is a JS array-of-arrays assignment:
//
//	var r = [["000001","HXCZ","华夏成长混合","混合型","HUAXIACHENGZHANG"], ...];
//
// Each inner array is positional: code, short name, full name, type, pinyin.
const fundCatalogMarker = "var r ="

// Company listings nest the same bracket grammar inside an object literal:
//
//	var gs = {op:[["80000080","华夏基金"],["80000223","易方达基金"], ...]}
//
// Company names carry punctuation, so fields are recovered from the quoted
// segments inside each bracket group rather than by splitting on commas.
const companyListingMarker = "var gs"

const minFundCatalogFields = 5

// ParseFundCatalog converts a raw catalog payload into fund reference rows.
// Returns the rows, the number of rows skipped for being too short, and a
// ParseError when the payload does not look like a catalog at all.
func ParseFundCatalog(payload string) ([]models.FundInfo, int, error) {
	if len(payload) > maxPayloadBytes {
		return nil, 0, errs.NewParseError("fund catalog payload exceeds %d bytes", maxPayloadBytes)
	}
	idx := strings.Index(payload, fundCatalogMarker)
	if idx < 0 {
		return nil, 0, errs.NewParseError("fund catalog marker not found, payload starts with: %s", excerpt(payload, 120))
	}

	var (
		funds   []models.FundInfo
		skipped int
	)
	for _, group := range bracketGroups(payload[idx:]) {
		fields := quotedStrings(group)
		if len(fields) < minFundCatalogFields {
			skipped++
			continue
		}
		funds = append(funds, models.FundInfo{
			FundCode:  fields[0],
			ShortName: fields[1],
			FundName:  fields[2],
			FundType:  fields[3],
			Pinyin:    fields[4],
		})
	}
	return funds, skipped, nil
}

// ParseCompanyListing converts a raw company listing payload into company
// reference rows. Groups with fewer than two fields are counted as skipped.
func ParseCompanyListing(payload string) ([]models.CompanyInfo, int, error) {
	if len(payload) > maxPayloadBytes {
		return nil, 0, errs.NewParseError("company listing payload exceeds %d bytes", maxPayloadBytes)
	}
	idx := strings.Index(payload, companyListingMarker)
	if idx < 0 {
		return nil, 0, errs.NewParseError("company listing marker not found, payload starts with: %s", excerpt(payload, 120))
	}

	var (
		companies []models.CompanyInfo
		skipped   int
	)
	for _, group := range bracketGroups(payload[idx:]) {
		fields := quotedStrings(group)
		if len(fields) < 2 {
			skipped++
			continue
		}
		companies = append(companies, models.CompanyInfo{
			CompanyCode: fields[0],
			CompanyName: fields[1],
		})
	}
	return companies, skipped, nil
}
