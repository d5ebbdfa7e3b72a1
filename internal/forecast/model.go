package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Point is one historical observation.
type Point struct {
	Date  time.Time
	Value float64
}

// Estimate is the model's point estimate for one date with its components.
type Estimate struct {
	Date     time.Time
	Value    float64
	Trend    float64
	Seasonal float64
}

// Model fits one history and predicts arbitrary dates. A Model is used for a
// single instrument and never shared.
type Model interface {
	Fit(history []Point) error
	Predict(dates []time.Time) ([]Estimate, error)
}

// Seasonality is a Fourier series with the given period in days.
type Seasonality struct {
	Name   string
	Period float64
	Order  int
}

// Config holds the fixed model settings.
type Config struct {
	Seasonalities         []Seasonality
	SeasonalityPriorScale float64
	ChangepointPriorScale float64
	NumChangepoints       int
	ChangepointRange      float64 // share of history eligible for changepoints
}

// DefaultConfig enables daily, weekly and yearly seasonality with strong
// seasonal priors and a flexible trend.
func DefaultConfig() Config {
	return Config{
		Seasonalities: []Seasonality{
			{Name: "yearly", Period: 365.25, Order: 10},
			{Name: "weekly", Period: 7, Order: 3},
			{Name: "daily", Period: 1, Order: 4},
		},
		SeasonalityPriorScale: 10.0,
		ChangepointPriorScale: 0.5,
		NumChangepoints:       25,
		ChangepointRange:      0.8,
	}
}

// MinFitPoints is the smallest history the additive model accepts.
const MinFitPoints = 2

const (
	trendPriorScale = 5.0
	noiseScale      = 0.05
	secondsPerDay   = 86400.0
)

var errNotFitted = errors.New("model has not been fitted")

// AdditiveModel is a piecewise-linear trend plus Fourier seasonalities,
// fitted by maximum a posteriori estimation under Gaussian priors.
type AdditiveModel struct {
	cfg Config

	start        time.Time
	spanDays     float64
	scale        float64
	changepoints []float64
	weights      []float64
}

// NewAdditiveModel returns an unfitted model.
func NewAdditiveModel(cfg Config) *AdditiveModel {
	return &AdditiveModel{cfg: cfg}
}

// Fit estimates the trend and seasonal weights from history.
func (m *AdditiveModel) Fit(history []Point) error {
	if len(history) < MinFitPoints {
		return fmt.Errorf("need at least %d points, got %d", MinFitPoints, len(history))
	}
	pts := make([]Point, len(history))
	copy(pts, history)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	m.start = pts[0].Date
	m.spanDays = pts[len(pts)-1].Date.Sub(m.start).Hours() / 24
	if m.spanDays <= 0 {
		m.spanDays = 1
	}
	m.scale = 0
	for _, p := range pts {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return fmt.Errorf("non-finite value on %s", p.Date.Format("2006-01-02"))
		}
		m.scale = math.Max(m.scale, math.Abs(p.Value))
	}
	if m.scale == 0 {
		m.scale = 1
	}
	m.changepoints = m.placeChangepoints(pts)

	n, p := len(pts), m.numFeatures()
	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, pt := range pts {
		x.SetRow(i, m.features(pt.Date))
		y.SetVec(i, pt.Value/m.scale)
	}

	var a mat.SymDense
	a.SymOuterK(1, x.T())
	for j, s := range m.priorScales() {
		a.SetSym(j, j, a.At(j, j)+(noiseScale*noiseScale)/(s*s))
	}
	var b mat.VecDense
	b.MulVec(x.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(&a); !ok {
		return errors.New("normal equations are not positive definite")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &b); err != nil {
		return fmt.Errorf("solve normal equations: %w", err)
	}
	m.weights = make([]float64, p)
	for j := range m.weights {
		m.weights[j] = w.AtVec(j)
	}
	return nil
}

// Predict evaluates the fitted model on dates, in the order given.
func (m *AdditiveModel) Predict(dates []time.Time) ([]Estimate, error) {
	if m.weights == nil {
		return nil, errNotFitted
	}
	trendCols := 2 + len(m.changepoints)
	out := make([]Estimate, len(dates))
	for i, d := range dates {
		f := m.features(d)
		var trend, seasonal float64
		for j, v := range f {
			if j < trendCols {
				trend += m.weights[j] * v
			} else {
				seasonal += m.weights[j] * v
			}
		}
		out[i] = Estimate{
			Date:     d,
			Value:    (trend + seasonal) * m.scale,
			Trend:    trend * m.scale,
			Seasonal: seasonal * m.scale,
		}
	}
	return out, nil
}

// placeChangepoints spreads candidate trend breaks uniformly over the first
// ChangepointRange of the history.
func (m *AdditiveModel) placeChangepoints(pts []Point) []float64 {
	limit := int(math.Ceil(m.cfg.ChangepointRange * float64(len(pts))))
	k := m.cfg.NumChangepoints
	if k > limit-1 {
		k = limit - 1
	}
	if k <= 0 {
		return nil
	}
	cps := make([]float64, 0, k)
	for i := 1; i <= k; i++ {
		idx := int(math.Round(float64(i) * float64(limit-1) / float64(k)))
		cps = append(cps, m.scaledTime(pts[idx].Date))
	}
	return cps
}

func (m *AdditiveModel) scaledTime(d time.Time) float64 {
	return d.Sub(m.start).Hours() / 24 / m.spanDays
}

func (m *AdditiveModel) numFeatures() int {
	n := 2 + len(m.changepoints)
	for _, s := range m.cfg.Seasonalities {
		n += 2 * s.Order
	}
	return n
}

// features lays out [intercept, slope, changepoint hinges..., fourier terms...].
func (m *AdditiveModel) features(d time.Time) []float64 {
	t := m.scaledTime(d)
	f := make([]float64, 0, m.numFeatures())
	f = append(f, 1, t)
	for _, cp := range m.changepoints {
		f = append(f, math.Max(0, t-cp))
	}
	days := float64(d.Unix()) / secondsPerDay
	for _, s := range m.cfg.Seasonalities {
		for k := 1; k <= s.Order; k++ {
			arg := 2 * math.Pi * float64(k) * days / s.Period
			f = append(f, math.Sin(arg), math.Cos(arg))
		}
	}
	return f
}

func (m *AdditiveModel) priorScales() []float64 {
	s := make([]float64, 0, m.numFeatures())
	s = append(s, trendPriorScale, trendPriorScale)
	for range m.changepoints {
		s = append(s, m.cfg.ChangepointPriorScale)
	}
	for _, season := range m.cfg.Seasonalities {
		for k := 0; k < 2*season.Order; k++ {
			s = append(s, m.cfg.SeasonalityPriorScale)
		}
	}
	return s
}

// FutureDates returns periods consecutive calendar days after last.
func FutureDates(last time.Time, periods int) []time.Time {
	out := make([]time.Time, periods)
	for i := range out {
		out[i] = last.AddDate(0, 0, i+1)
	}
	return out
}
