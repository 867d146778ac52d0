package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	errs "fundscraper/pkg/errors"
	"fundscraper/pkg/models"
)

// The ranking endpoint answers with a JS assignment, not JSON:
//
//	var rankData = {datas:["000001,fund,FD,2026-08-26,1.06,3.43,0.28,...", ...],
//	                allRecords:237,pageIndex:1,pageNum:50,...};
//
// Each row is one double-quoted string of comma-delimited positional fields.
const rankDataMarker = "var rankData"

// Row field positions in a ranking row.
const (
	rankFieldCode = iota
	rankFieldShortName
	rankFieldPinyin
	rankFieldDate
	rankFieldNAV
	rankFieldAccumNAV
	rankFieldDaily
	rankFieldWeekly
	rankFieldMonthly
	rankFieldQuarterly
	rankFieldYearly
	rankFieldTwoYear
	rankFieldThreeYear
	rankFieldFiveYear
	rankFieldYTD
	rankFieldSinceLaunch

	minRankRowFields = rankFieldSinceLaunch + 1
)

var (
	allRecordsRe = regexp.MustCompile(`allRecords:(\d+)`)
	pageIndexRe  = regexp.MustCompile(`pageIndex:(\d+)`)
)

// RankListing is the structured result of one ranking page.
type RankListing struct {
	Entries    []models.RankEntry
	TotalCount int
	PageIndex  int
	// FailedRows counts rows rejected for having too few fields.
	FailedRows int
}

// ParseRankListing converts one raw ranking page into structured entries.
// startRank is the 1-based rank of the page's first row; rank within a page
// follows row order because the listing is fetched pre-sorted. A malformed
// row is counted and skipped, the rest of the page still parses.
func ParseRankListing(payload, rankType string, startRank int) (*RankListing, error) {
	if len(payload) > maxPayloadBytes {
		return nil, errs.NewParseError("rank payload exceeds %d bytes", maxPayloadBytes)
	}
	if !strings.Contains(payload, rankDataMarker) {
		return nil, errs.NewParseError("rank data marker not found, payload starts with: %s", excerpt(payload, 120))
	}

	listing := &RankListing{PageIndex: 1}
	if m := allRecordsRe.FindStringSubmatch(payload); m != nil {
		listing.TotalCount, _ = strconv.Atoi(m[1])
	}
	if m := pageIndexRe.FindStringSubmatch(payload); m != nil {
		listing.PageIndex, _ = strconv.Atoi(m[1])
	}

	datas := datasSection(payload)
	if datas == "" {
		// A page past the end, or an empty market day; not a format error.
		return listing, nil
	}

	rows := quotedStrings(datas)
	rank := startRank
	for _, row := range rows {
		fields := strings.Split(row, ",")
		if len(fields) < minRankRowFields {
			listing.FailedRows++
			continue
		}

		entry := models.RankEntry{
			FundCode:  strings.TrimSpace(fields[rankFieldCode]),
			ShortName: strings.TrimSpace(fields[rankFieldShortName]),
			Pinyin:    strings.TrimSpace(fields[rankFieldPinyin]),
			Rank:      rank,
			RankType:  rankType,
			RankDate:  parseDate(fields[rankFieldDate]),

			NAV:      parseNullableFloat(fields[rankFieldNAV]),
			AccumNAV: parseNullableFloat(fields[rankFieldAccumNAV]),

			DailyGrowth:       parseNullableFloat(fields[rankFieldDaily]),
			WeeklyGrowth:      parseNullableFloat(fields[rankFieldWeekly]),
			MonthlyGrowth:     parseNullableFloat(fields[rankFieldMonthly]),
			QuarterlyGrowth:   parseNullableFloat(fields[rankFieldQuarterly]),
			YearlyGrowth:      parseNullableFloat(fields[rankFieldYearly]),
			TwoYearGrowth:     parseNullableFloat(fields[rankFieldTwoYear]),
			ThreeYearGrowth:   parseNullableFloat(fields[rankFieldThreeYear]),
			FiveYearGrowth:    parseNullableFloat(fields[rankFieldFiveYear]),
			YTDGrowth:         parseNullableFloat(fields[rankFieldYTD]),
			SinceLaunchGrowth: parseNullableFloat(fields[rankFieldSinceLaunch]),
		}
		if entry.FundCode == "" {
			listing.FailedRows++
			continue
		}
		listing.Entries = append(listing.Entries, entry)
		rank++
	}
	return listing, nil
}

// datasSection extracts the interior of the datas:[...] array, quote-aware.
func datasSection(payload string) string {
	const marker = "datas:["
	start := strings.Index(payload, marker)
	if start < 0 {
		return ""
	}
	start += len(marker)

	inQuote := false
	escaped := false
	for i := start; i < len(payload); i++ {
		c := payload[i]
		if inQuote {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
		case ']':
			return payload[start:i]
		}
	}
	return ""
}

// parseNullableFloat converts a percentage-or-number field. A trailing '%'
// is stripped. An empty field means the source omitted the value: it maps
// to nil, never to zero.
func parseNullableFloat(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "-" || s == "--" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
