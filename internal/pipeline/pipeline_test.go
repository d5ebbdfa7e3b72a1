package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceForecaster/internal/apperrors"
	"PriceForecaster/internal/artifact"
	"PriceForecaster/internal/collector"
	"PriceForecaster/internal/forecast"
	"PriceForecaster/internal/model"
	"PriceForecaster/internal/normalizer"
	"PriceForecaster/internal/recorder"
)

var (
	dataStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runClock  = time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC)
)

type capturingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (c *capturingNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, text)
	return nil
}

type fixture struct {
	pipeline *Pipeline
	recorder *recorder.SQLiteRecorder
	notifier *capturingNotifier
	root     string
}

func newFixture(t *testing.T, fetcher collector.Fetcher) *fixture {
	t.Helper()
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	f := &fixture{recorder: rec, notifier: &capturingNotifier{}, root: t.TempDir()}
	f.pipeline = &Pipeline{
		Collector: collector.NewCollector(fetcher, collector.Options{Workers: 2}),
		Engine:    forecast.NewEngine(forecast.Options{Workers: 2}),
		Writer:    &artifact.Writer{Workers: 2},
		Recorder:  rec,
		Notifier:  f.notifier,
		Config: Config{
			HorizonDays: forecast.DefaultHorizonDays,
			OutputRoot:  f.root,
			Scope:       normalizer.ScopeInstrument,
		},
		Now: func() time.Time { return runClock },
	}
	return f
}

func testWindow(t *testing.T, ids ...string) model.InstrumentWindow {
	t.Helper()
	w, err := model.NewInstrumentWindow(ids, dataStart, dataStart.AddDate(0, 2, 0))
	require.NoError(t, err)
	return w
}

func acmeWithGap() []model.RawSeriesRow {
	bars := collector.GenerateBars(100, dataStart, 40)
	for i := 10; i < 13; i++ {
		bars[i].Open = null.Float{}
		bars[i].High = null.Float{}
		bars[i].Low = null.Float{}
		bars[i].Close = null.Float{}
		bars[i].Volume = null.Float{}
	}
	return bars
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, &collector.StaticFetcher{Bars: map[string][]model.RawSeriesRow{
		"ACME":  acmeWithGap(),
		"ZEBRA": collector.GenerateBars(50, dataStart, 40),
	}})

	res, err := f.pipeline.Run(context.Background(), testWindow(t, "ACME", "ZEBRA"))
	require.NoError(t, err)

	assert.Equal(t, "20240305_101112", res.RunID)
	assert.Equal(t, []string{"ACME", "ZEBRA"}, res.Fetched)
	assert.Empty(t, res.Issues)

	require.Len(t, res.Normalized, 80)
	for _, r := range res.Normalized {
		for _, v := range r.NumericFields() {
			assert.True(t, v.Valid, "%s %s has a null field", r.Instrument, r.Date.Format("2006-01-02"))
		}
	}
	assert.Equal(t, "ACME", res.Normalized[0].Instrument)
	assert.Equal(t, "ZEBRA", res.Normalized[40].Instrument)

	require.Len(t, res.Forecasts, 140)
	for i, r := range res.Forecasts {
		inHorizon := i%70 >= 40
		assert.Equal(t, !inHorizon, r.Observed.Valid, "row %d", i)
	}

	entries, err := os.ReadDir(res.Dir)
	require.NoError(t, err)
	var dataFiles []string
	for _, e := range entries {
		if !e.IsDir() {
			dataFiles = append(dataFiles, e.Name())
		}
	}
	assert.Equal(t, []string{"prices_20240305_101112.csv"}, dataFiles)
	assert.Equal(t, artifact.DataFilePath(f.root, res.RunID), res.DataFile)

	charts, err := os.ReadDir(filepath.Join(res.Dir, "charts"))
	require.NoError(t, err)
	assert.Len(t, charts, 2)
	assert.Equal(t, []string{
		artifact.ChartPath(f.root, res.RunID, "ACME"),
		artifact.ChartPath(f.root, res.RunID, "ZEBRA"),
	}, res.ChartFiles)

	last, err := f.recorder.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, res.ID, last.ID)
	assert.Equal(t, recorder.StatusSucceeded, last.Status)
	assert.Equal(t, 80, last.NormalizedRows)
	assert.Equal(t, 140, last.ForecastRows)
	assert.Equal(t, 2, last.Charts)

	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "20240305_101112")

	assert.Len(t, res.Preview(5), 5)
	assert.Len(t, res.Preview(500), 80)
}

func TestRun_SkipsFailingInstrument(t *testing.T) {
	f := newFixture(t, &collector.StaticFetcher{
		Bars:   map[string][]model.RawSeriesRow{"Y": collector.GenerateBars(20, dataStart, 30)},
		Errors: map[string]error{"X": errors.New("connection reset")},
	})

	res, err := f.pipeline.Run(context.Background(), testWindow(t, "X", "Y"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Y"}, res.Fetched)
	assert.Len(t, res.Normalized, 30)
	assert.Len(t, res.Forecasts, 60)
	assert.Len(t, res.ChartFiles, 1)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "X", res.Issues[0].Instrument)
	assert.Equal(t, model.StageFetch, res.Issues[0].Stage)
	assert.Equal(t, apperrors.KindInstrumentNotFound, res.Issues[0].Kind)

	n, err := f.recorder.IssueCount(res.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_ShortHistoryIsSkipped(t *testing.T) {
	f := newFixture(t, &collector.StaticFetcher{Bars: map[string][]model.RawSeriesRow{
		"LONG":  collector.GenerateBars(20, dataStart, 30),
		"SHORT": collector.GenerateBars(20, dataStart, 1),
	}})

	res, err := f.pipeline.Run(context.Background(), testWindow(t, "LONG", "SHORT"))
	require.NoError(t, err)

	assert.Len(t, res.Normalized, 31)
	assert.Len(t, res.Forecasts, 60)
	assert.Len(t, res.ChartFiles, 1)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, model.StageForecast, res.Issues[0].Stage)
	assert.Equal(t, apperrors.KindInsufficientHistory, res.Issues[0].Kind)
}

func TestRun_NoDataRetrieved(t *testing.T) {
	f := newFixture(t, &collector.StaticFetcher{Errors: map[string]error{"X": errors.New("boom")}})

	res, err := f.pipeline.Run(context.Background(), testWindow(t, "X"))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperrors.ErrNoDataRetrieved)
	assert.Equal(t, 2, apperrors.ExitCode(err))

	_, statErr := os.Stat(filepath.Join(f.root, "20240305_101112"))
	assert.True(t, os.IsNotExist(statErr), "no run directory for a failed fetch")

	last, err := f.recorder.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, recorder.StatusFailed, last.Status)
	assert.Equal(t, string(apperrors.KindNoDataRetrieved), last.ErrorKind)

	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "NO_DATA_RETRIEVED")
}

func TestRun_ArtifactWriteFailure(t *testing.T) {
	f := newFixture(t, &collector.StaticFetcher{Bars: map[string][]model.RawSeriesRow{
		"Y": collector.GenerateBars(20, dataStart, 30),
	}})
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	f.pipeline.Config.OutputRoot = blocker

	_, err := f.pipeline.Run(context.Background(), testWindow(t, "Y"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrArtifactWriteFailure)
	assert.Equal(t, 3, apperrors.ExitCode(err))
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, &collector.StaticFetcher{Bars: map[string][]model.RawSeriesRow{
		"Y": collector.GenerateBars(20, dataStart, 30),
	}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx, testWindow(t, "Y"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, apperrors.ExitCode(err))
}

func TestRun_WithoutRecorderOrNotifier(t *testing.T) {
	p := &Pipeline{
		Collector: collector.NewCollector(&collector.StaticFetcher{Bars: map[string][]model.RawSeriesRow{
			"Y": collector.GenerateBars(20, dataStart, 10),
		}}, collector.Options{}),
		Engine: forecast.NewEngine(forecast.Options{}),
		Writer: &artifact.Writer{},
		Config: Config{HorizonDays: 5, OutputRoot: t.TempDir()},
	}
	res, err := p.Run(context.Background(), testWindow(t, "Y"))
	require.NoError(t, err)
	assert.Len(t, res.Forecasts, 15)
	assert.Len(t, res.RunID, len(RunIDLayout))
}
