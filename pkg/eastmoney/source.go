package eastmoney

import (
	"fundscraper/pkg/config"
	"fundscraper/pkg/errors"
	"fundscraper/pkg/logger"
	"fundscraper/pkg/models"
	"fundscraper/pkg/ratelimit"
)

// Source bundles the eastmoney client with a rate limiter. Every fetch
// waits on the limiter first, so concurrent callers sharing one Source
// never hit the portal faster than the configured interval.
type Source struct {
	client  *Client
	limiter ratelimit.Limiter
	baseURL string
	apiURL  string
	logger  logger.Logger
}

// NewSource creates a rate-limited eastmoney source from configuration.
func NewSource(cfg *config.Config, limiter ratelimit.Limiter, log logger.Logger) *Source {
	if log == nil {
		log = logger.GetLogger()
	}

	baseURL := cfg.Eastmoney.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	apiURL := cfg.Eastmoney.APIURL
	if apiURL == "" {
		apiURL = APIURL
	}

	return &Source{
		client:  NewClient(cfg.HTTP.Timeout, cfg.Eastmoney.UserAgent, cfg.HTTP.MaxRetries, log),
		limiter: limiter,
		baseURL: baseURL,
		apiURL:  apiURL,
		logger:  log,
	}
}

// ID returns the source identity used for registration and storage.
func (s *Source) ID() models.Source {
	return models.SourceEastmoney
}

// FetchListingPage fetches one page of the open-fund ranking for the given
// category and returns the raw JS payload together with the URL it came from.
func (s *Source) FetchListingPage(rankType string, page, pageSize int) (string, string, error) {
	s.limiter.Wait()

	rawURL := RankURL(s.baseURL, rankType, page, pageSize)
	payload, err := s.client.GetText(rawURL, RankReferer)
	if err != nil {
		return "", rawURL, err
	}
	return payload, rawURL, nil
}

// FetchCatalog fetches the full fund code catalog.
func (s *Source) FetchCatalog() (string, string, error) {
	s.limiter.Wait()

	rawURL := CatalogURL(s.baseURL)
	payload, err := s.client.GetText(rawURL, "")
	if err != nil {
		return "", rawURL, err
	}
	return payload, rawURL, nil
}

// FetchCompanies fetches the fund company listing.
func (s *Source) FetchCompanies() (string, string, error) {
	s.limiter.Wait()

	rawURL := CompanyURL(s.baseURL)
	payload, err := s.client.GetText(rawURL, "")
	if err != nil {
		return "", rawURL, err
	}
	return payload, rawURL, nil
}

// FetchEntity fetches one document for a single fund. The URL depends on
// the requested data kind.
func (s *Source) FetchEntity(key string, kind models.DataKind) (string, string, error) {
	if !IsValidFundCode(key) {
		return "", "", errors.NewConfigurationError("invalid fund code %q", key)
	}

	var rawURL string
	switch kind {
	case models.KindBasic:
		rawURL = FundPageURL(s.baseURL, key)
	case models.KindDaily:
		rawURL = NAVHistoryURL(s.apiURL, key, 1, DefaultPageSize)
	case models.KindHoldings:
		rawURL = HoldingsURL(s.baseURL, key)
	default:
		return "", "", errors.NewConfigurationError("source eastmoney does not serve data kind %q", kind)
	}

	s.limiter.Wait()

	payload, err := s.client.GetText(rawURL, FundPageURL(s.baseURL, key))
	if err != nil {
		return "", rawURL, err
	}
	return payload, rawURL, nil
}
