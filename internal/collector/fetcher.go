package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"PriceForecaster/internal/model"
)

// Fetcher retrieves daily bars for one symbol over [start, end).
// Implementations return an apperrors.KindInstrumentNotFound error when the
// source does not know the symbol.
type Fetcher interface {
	FetchRange(ctx context.Context, symbol string, start, end time.Time) ([]model.RawSeriesRow, error)
	Name() string
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}
