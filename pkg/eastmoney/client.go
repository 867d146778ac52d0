package eastmoney

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"fundscraper/pkg/errors"
	"fundscraper/pkg/logger"
)

// maxBodyBytes bounds how much of a response we are willing to read.
// The full fund catalog is around 2 MB; anything past this is garbage.
const maxBodyBytes = 8 << 20

// Client is a plain-text HTTP client for the eastmoney endpoints. All
// payloads come back as JS literals, so the client deals in strings and
// leaves decoding to the parser package.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	maxRetries int
	logger     logger.Logger
}

// NewClient creates an eastmoney client. The endpoints reject requests
// without a browser User-Agent and a fund.eastmoney.com Referer.
func NewClient(timeout time.Duration, userAgent string, maxRetries int, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Referer":         BaseURL,
			"Accept":          "*/*",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		},
		maxRetries: maxRetries,
		logger:     log,
	}
}

// SetHeader sets a custom header for the client.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest performs an HTTP request with the configured headers.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.NewFetchError(0, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// doRequestWithRetry performs an HTTP request with retry on transient
// failures: network errors, 5xx, and 429 responses.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WarnWithFields("retrying HTTP request", map[string]interface{}{
				"method":  req.Method,
				"url":     req.URL.String(),
				"attempt": attempt,
				"error":   lastErr.Error(),
			})
			time.Sleep(time.Second * time.Duration(attempt))
		}

		resp, err := c.doRequest(req)
		if err != nil {
			lastErr = err
			if errors.IsRetryable(err) {
				continue
			}
			return nil, err
		}

		if errors.IsRetryableStatusCode(resp.StatusCode) {
			lastErr = errors.NewFetchError(resp.StatusCode, "server returned status %d", resp.StatusCode)
			resp.Body.Close()
			continue
		}

		return resp, nil
	}

	c.logger.ErrorWithFields("max retries exceeded", map[string]interface{}{
		"method":      req.Method,
		"url":         req.URL.String(),
		"max_retries": c.maxRetries,
		"last_error":  lastErr.Error(),
	})

	return nil, lastErr
}

// Get performs a GET request to the specified URL.
func (c *Client) Get(rawURL string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewFetchError(0, "failed to create request: %v", err)
	}

	return c.doRequestWithRetry(req)
}

// GetText performs a GET request and returns the response body as a
// string. The referer overrides the default when non-empty; the rank
// endpoint returns an empty payload unless the referer matches the
// public ranking page.
func (c *Client) GetText(rawURL, referer string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errors.NewFetchError(0, "failed to create request: %v", err)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return "", errors.NewFetchError(resp.StatusCode, "failed to read response body: %v", err)
	}
	if len(body) > maxBodyBytes {
		return "", errors.NewFetchError(resp.StatusCode, "response body exceeds %d bytes", maxBodyBytes)
	}

	return string(body), nil
}

// checkResponseStatus maps non-200 responses to fetch errors.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.NewFetchError(resp.StatusCode, "resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.NewFetchError(resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.NewFetchError(resp.StatusCode, "server error")
	case resp.StatusCode >= 400:
		c.logger.ErrorWithFields("unexpected response status", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.NewFetchError(resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	default:
		return nil
	}
}

// String implements fmt.Stringer for log output.
func (c *Client) String() string {
	return fmt.Sprintf("eastmoney client (timeout %s, retries %d)", c.httpClient.Timeout, c.maxRetries)
}
