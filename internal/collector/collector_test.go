package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceForecaster/internal/apperrors"
	"PriceForecaster/internal/model"
)

var (
	winStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	winEnd   = winStart.AddDate(0, 3, 0)
)

func window(t *testing.T, ids ...string) model.InstrumentWindow {
	t.Helper()
	w, err := model.NewInstrumentWindow(ids, winStart, winEnd)
	require.NoError(t, err)
	return w
}

func TestCollector_SkipsMissingInstrument(t *testing.T) {
	f := &StaticFetcher{Bars: map[string][]model.RawSeriesRow{
		"Y": GenerateBars(100, winStart, 20),
	}}
	c := NewCollector(f, Options{Workers: 2})

	res, err := c.Fetch(context.Background(), window(t, "X", "Y"))
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.Equal(t, "Y", res.Series[0].Instrument)
	assert.Len(t, res.Series[0].Rows, 20)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, "X", res.Issues[0].Instrument)
	assert.Equal(t, apperrors.KindInstrumentNotFound, res.Issues[0].Kind)
	assert.Equal(t, model.StageFetch, res.Issues[0].Stage)
}

func TestCollector_NoDataRetrieved(t *testing.T) {
	c := NewCollector(&StaticFetcher{}, Options{})

	_, err := c.Fetch(context.Background(), window(t, "X"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNoDataRetrieved)
}

func TestCollector_EmptyRowsAreSkipped(t *testing.T) {
	f := &StaticFetcher{Bars: map[string][]model.RawSeriesRow{
		"OLD": GenerateBars(10, winStart.AddDate(-1, 0, 0), 5),
		"NEW": GenerateBars(10, winStart, 5),
	}}
	res, err := NewCollector(f, Options{}).Fetch(context.Background(), window(t, "OLD", "NEW"))
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.Equal(t, "NEW", res.Series[0].Instrument)
}

func TestCollector_PreservesInputOrder(t *testing.T) {
	ids := []string{"E", "D", "C", "B", "A"}
	bars := map[string][]model.RawSeriesRow{}
	for _, id := range ids {
		bars[id] = GenerateBars(50, winStart, 3)
	}
	res, err := NewCollector(&StaticFetcher{Bars: bars}, Options{Workers: 4}).
		Fetch(context.Background(), window(t, ids...))
	require.NoError(t, err)

	var got []string
	for _, s := range res.Series {
		got = append(got, s.Instrument)
	}
	assert.Equal(t, ids, got)
}

func TestCollector_SourceErrorIsRecovered(t *testing.T) {
	f := &StaticFetcher{
		Bars:   map[string][]model.RawSeriesRow{"OK": GenerateBars(10, winStart, 3)},
		Errors: map[string]error{"BAD": errors.New("connection reset")},
	}
	res, err := NewCollector(f, Options{}).Fetch(context.Background(), window(t, "BAD", "OK"))
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0].Detail, "connection reset")
}

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) Name() string { return "failing" }

func (f *countingFetcher) FetchRange(context.Context, string, time.Time, time.Time) ([]model.RawSeriesRow, error) {
	f.calls.Add(1)
	return nil, errors.New("upstream down")
}

func TestCollector_BreakerStopsCallingFailingSource(t *testing.T) {
	f := &countingFetcher{}
	c := NewCollector(f, Options{Workers: 1, BreakerFailures: 2, BreakerTimeout: time.Minute})

	_, err := c.Fetch(context.Background(), window(t, "A", "B", "C", "D"))
	require.ErrorIs(t, err, apperrors.ErrNoDataRetrieved)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCollector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &StaticFetcher{Bars: map[string][]model.RawSeriesRow{"A": GenerateBars(10, winStart, 3)}}

	_, err := NewCollector(f, Options{}).Fetch(ctx, window(t, "A"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
