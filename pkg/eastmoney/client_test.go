package eastmoney

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundscraper/pkg/config"
	"fundscraper/pkg/errors"
	"fundscraper/pkg/logger"
	"fundscraper/pkg/models"
	"fundscraper/pkg/ratelimit"
)

const testUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.New(&config.LoggingConfig{Level: "disabled"})
	require.NoError(t, err)
	return log
}

func TestGetTextSendsHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("var rankData = {datas:[]};"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, testUserAgent, 0, testLogger(t))

	body, err := client.GetText(server.URL+"/data/rankhandler.aspx", RankReferer)
	require.NoError(t, err)
	assert.Contains(t, body, "rankData")
	assert.Equal(t, testUserAgent, gotUA)
	assert.Equal(t, RankReferer, gotReferer)
}

func TestGetTextDefaultReferer(t *testing.T) {
	var gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, testUserAgent, 0, testLogger(t))

	_, err := client.GetText(server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, BaseURL, gotReferer)
}

func TestGetTextNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(5*time.Second, testUserAgent, 3, testLogger(t))

	_, err := client.GetText(server.URL+"/missing", "")
	require.Error(t, err)
	assert.True(t, errors.IsFetch(err))

	var fetchErr *errors.Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.Code)
}

func TestGetTextRetriesServerError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, testUserAgent, 3, testLogger(t))
	start := time.Now()
	body, err := client.GetText(server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "recovered", body)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestGetTextExhaustsRetries(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(5*time.Second, testUserAgent, 1, testLogger(t))

	_, err := client.GetText(server.URL, "")
	require.Error(t, err)
	assert.True(t, errors.IsFetch(err))
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestGetTextRejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := strings.Repeat("x", 1<<20)
		for i := 0; i < 9; i++ {
			w.Write([]byte(chunk))
		}
	}))
	defer server.Close()

	client := NewClient(30*time.Second, testUserAgent, 0, testLogger(t))

	_, err := client.GetText(server.URL, "")
	require.Error(t, err)
	assert.True(t, errors.IsFetch(err))
	assert.Contains(t, err.Error(), "exceeds")
}

func newTestSource(t *testing.T, serverURL string) *Source {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Eastmoney.BaseURL = serverURL
	cfg.Eastmoney.APIURL = serverURL
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.HTTP.MaxRetries = 0
	return NewSource(cfg, ratelimit.NewInterval(0), testLogger(t))
}

func TestSourceFetchListingPage(t *testing.T) {
	var gotPath, gotReferer string
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotReferer = r.Header.Get("Referer")
		gotQuery = r.URL.Query()
		w.Write([]byte(`var rankData = {datas:[],allRecords:0,pageIndex:2};`))
	}))
	defer server.Close()

	source := newTestSource(t, server.URL)

	payload, originURL, err := source.FetchListingPage("equity", 2, 50)
	require.NoError(t, err)
	assert.Contains(t, payload, "rankData")
	assert.Contains(t, originURL, RankEndpoint)
	assert.Equal(t, RankEndpoint, gotPath)
	assert.Equal(t, RankReferer, gotReferer)
	assert.Equal(t, []string{"ph"}, gotQuery["op"])
	assert.Equal(t, []string{"gp"}, gotQuery["ft"])
	assert.Equal(t, []string{"2"}, gotQuery["pi"])
	assert.Equal(t, []string{"50"}, gotQuery["pn"])
	assert.Equal(t, []string{"1"}, gotQuery["dx"])
}

func TestSourceFetchEntityURLs(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	source := newTestSource(t, server.URL)

	_, originURL, err := source.FetchEntity("000001", models.KindBasic)
	require.NoError(t, err)
	assert.Equal(t, "/000001.html", gotPath)
	assert.Contains(t, originURL, "/000001.html")

	_, _, err = source.FetchEntity("000001", models.KindHoldings)
	require.NoError(t, err)
	assert.Equal(t, HoldingsEndpoint, gotPath)
}

func TestSourceFetchEntityRejectsBadInput(t *testing.T) {
	source := newTestSource(t, "http://127.0.0.1:0")

	_, _, err := source.FetchEntity("not-a-code", models.KindBasic)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	_, _, err = source.FetchEntity("000001", models.KindRating)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestIsValidFundCode(t *testing.T) {
	assert.True(t, IsValidFundCode("000001"))
	assert.True(t, IsValidFundCode("970009"))
	assert.False(t, IsValidFundCode("00001"))
	assert.False(t, IsValidFundCode("0000011"))
	assert.False(t, IsValidFundCode("00000a"))
	assert.False(t, IsValidFundCode(""))
}
