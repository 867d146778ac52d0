package eastmoney

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	// BaseURL is the public fund portal.
	BaseURL = "https://fund.eastmoney.com"

	// APIURL is the data API host behind the portal.
	APIURL = "https://fundmobapi.eastmoney.com"

	// RankEndpoint serves paginated open-fund ranking data.
	RankEndpoint = "/data/rankhandler.aspx"

	// CatalogEndpoint serves the full fund code catalog as a JS array literal.
	CatalogEndpoint = "/js/fundcode_search.js"

	// CompanyEndpoint serves the fund company listing.
	CompanyEndpoint = "/Company/home/KFSFundNet"

	// HoldingsEndpoint serves fund portfolio holdings archives.
	HoldingsEndpoint = "/f10/FundArchivesDatas.aspx"

	// RankReferer is required by the rank endpoint; requests without it
	// get an empty payload back.
	RankReferer = "https://fund.eastmoney.com/data/fundranking.html"

	// DefaultPageSize is the page size the portal itself uses.
	DefaultPageSize = 50

	// MaxPageSize is the largest page the rank endpoint honors.
	MaxPageSize = 200
)

// rankTypeCodes maps category names to the portal's ft parameter values.
var rankTypeCodes = map[string]string{
	"all":    "all",
	"equity": "gp",
	"mixed":  "hh",
	"bond":   "zq",
	"index":  "zs",
	"qdii":   "qdii",
	"fof":    "fof",
}

// RankURL constructs the rank listing URL for one page of the given fund
// category. Unknown categories fall back to "all". Funds are ordered by
// daily growth descending, matching the portal's default view.
func RankURL(base, rankType string, page, pageSize int) string {
	if base == "" {
		base = BaseURL
	}
	ft, ok := rankTypeCodes[rankType]
	if !ok {
		ft = "all"
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	} else if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}

	now := time.Now()
	params := url.Values{}
	params.Set("op", "ph")
	params.Set("dt", "kf")
	params.Set("ft", ft)
	params.Set("rs", "")
	params.Set("gs", "0")
	params.Set("sc", "rzdf")
	params.Set("st", "desc")
	params.Set("sd", now.AddDate(-1, 0, 0).Format("2006-01-02"))
	params.Set("ed", now.Format("2006-01-02"))
	params.Set("pi", strconv.Itoa(page))
	params.Set("pn", strconv.Itoa(pageSize))
	params.Set("dx", "1")
	params.Set("v", fmt.Sprintf("%.16f", float64(now.UnixNano())/1e9))

	return fmt.Sprintf("%s%s?%s", base, RankEndpoint, params.Encode())
}

// CatalogURL returns the fund code catalog URL.
func CatalogURL(base string) string {
	if base == "" {
		base = BaseURL
	}
	return base + CatalogEndpoint
}

// CompanyURL returns the fund company listing URL.
func CompanyURL(base string) string {
	if base == "" {
		base = BaseURL
	}
	return base + CompanyEndpoint
}

// FundPageURL returns the public detail page for a single fund.
func FundPageURL(base, code string) string {
	if base == "" {
		base = BaseURL
	}
	return fmt.Sprintf("%s/%s.html", base, code)
}

// NAVHistoryURL constructs the paginated NAV history URL for a fund.
func NAVHistoryURL(api, code string, page, pageSize int) string {
	if api == "" {
		api = APIURL
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	params := url.Values{}
	params.Set("FCODE", code)
	params.Set("pageIndex", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("deviceid", "Wap")
	params.Set("plat", "Wap")
	params.Set("product", "EFund")
	params.Set("version", "2.0.0")

	return fmt.Sprintf("%s/FundMNewApi/FundMNHisNetList?%s", api, params.Encode())
}

// HoldingsURL constructs the portfolio holdings URL for a fund.
func HoldingsURL(base, code string) string {
	if base == "" {
		base = BaseURL
	}
	params := url.Values{}
	params.Set("type", "jjcc")
	params.Set("code", code)
	params.Set("topline", "10")

	return fmt.Sprintf("%s%s?%s", base, HoldingsEndpoint, params.Encode())
}

// IsValidFundCode reports whether code looks like a fund code: exactly
// six ASCII digits.
func IsValidFundCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
