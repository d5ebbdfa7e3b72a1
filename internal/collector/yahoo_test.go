package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceForecaster/internal/apperrors"
)

const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"ACME","gmtoffset":-14400,"exchangeTimezoneName":"America/New_York"},
  "timestamp":[1704292200,1704205800],
  "indicators":{
    "quote":[{"open":[11.0,10.0],"high":[12.0,11.0],"low":[10.5,9.5],"close":[null,10.5],"volume":[2000,1000]}],
    "adjclose":[{"adjclose":[11.4,10.4]}]
  }}],"error":null}}`

func TestYahooFetcher_ParsesNullableBars(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := f.FetchRange(context.Background(), "SPX", start, start.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/^GSPC", gotPath)
	assert.Contains(t, gotQuery, "interval=1d")
	assert.Contains(t, gotQuery, "period1=1704067200")

	require.Len(t, rows, 2)
	// sorted chronologically
	assert.Equal(t, 2, rows[0].Date.Day())
	assert.Equal(t, 3, rows[1].Date.Day())
	assert.Equal(t, 10.5, rows[0].Close.Float64)
	assert.False(t, rows[1].Close.Valid)
	assert.Equal(t, 11.4, rows[1].AdjustedClose.Float64)
	assert.Equal(t, "SPX", rows[1].Instrument)
	_, offset := rows[0].Date.Zone()
	assert.Equal(t, -14400, offset)
}

func TestYahooFetcher_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	_, err := f.FetchRange(context.Background(), "NOPE", time.Now().AddDate(0, -1, 0), time.Now())
	assert.ErrorIs(t, err, apperrors.ErrInstrumentNotFound)
}

func TestRESTFetcher_RangeAndAuth(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "ACME", r.URL.Query().Get("symbol"))
		w.Write([]byte(`[
			{"timestamp":1704240000,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10,"adj_close":1.4},
			{"timestamp":1704153600,"open":1,"high":2,"low":0.5,"close":null,"volume":10},
			{"timestamp":1704672000,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10}
		]`))
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", "")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := f.FetchRange(context.Background(), "ACME", start, start.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", auth)
	require.Len(t, rows, 2, "bar on the end date is excluded")
	assert.True(t, rows[0].Date.Before(rows[1].Date))
	assert.False(t, rows[0].Close.Valid)
	assert.False(t, rows[0].AdjustedClose.Valid)
}

func TestRESTFetcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRESTFetcher(srv.URL, "", "").FetchRange(context.Background(), "A", time.Now().AddDate(0, 0, -3), time.Now())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 503"))
	assert.Equal(t, apperrors.KindUnclassified, apperrors.KindOf(err))
}
