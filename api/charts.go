package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/warp/inclusion-dashboard/chart"
	"github.com/warp/inclusion-dashboard/indicator"
	"go.uber.org/zap"
)

// Chart endpoints take the same parameters as their JSON views and answer
// with image/png. A view without plottable points (including a missing
// forecast file) is a 404.

// TrendsChart renders GET /api/charts/trends.png.
func (h *Handler) TrendsChart(w http.ResponseWriter, r *http.Request) {
	view, ok := h.trends(w, r)
	if !ok {
		return
	}
	h.writeChart(w, "trends", []chart.Series{observationSeries(view.Indicator, view.Points)}, chart.Options{
		Title:  view.Indicator,
		XLabel: "Year",
		YLabel: "Value",
	})
}

// ChannelsChart renders GET /api/charts/channels.png.
func (h *Handler) ChannelsChart(w http.ResponseWriter, r *http.Request) {
	view, ok := h.channels(w, r)
	if !ok {
		return
	}
	series := make([]chart.Series, 0, len(view.Groups))
	for _, g := range view.Groups {
		series = append(series, observationSeries(g.Indicator, g.Points))
	}
	h.writeChart(w, "channels", series, chart.Options{
		Title:  "Channel comparison",
		XLabel: "Year",
		YLabel: "Value",
	})
}

// RatioChart renders GET /api/charts/ratio.png. Undefined years are skipped.
func (h *Handler) RatioChart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.ratio(w, r)
	if !ok {
		return
	}
	points := make([]chart.Point, 0, len(s.Points))
	for _, p := range s.Points {
		if !p.Defined() {
			continue
		}
		points = append(points, chart.Point{X: float64(p.Year), Y: p.Ratio.Decimal.InexactFloat64()})
	}
	h.writeChart(w, "ratio", []chart.Series{{Name: "P2P/ATM", Points: points}}, chart.Options{
		Title:  "P2P / ATM ratio",
		XLabel: "Year",
		YLabel: "Ratio",
	})
}

// ForecastsChart renders GET /api/charts/forecasts.png, one line per
// indicator.
func (h *Handler) ForecastsChart(w http.ResponseWriter, r *http.Request) {
	view, ok := h.forecasts(w, r)
	if !ok {
		return
	}
	if !view.Available {
		h.chartUnavailable(w, "forecasts")
		return
	}
	h.writeChart(w, "forecasts", forecastSeries(view.Records), chart.Options{
		Title:  fmt.Sprintf("Forecasts (%s)", view.Scenario),
		XLabel: "Year",
		YLabel: "Value",
	})
}

// ProjectionsChart renders GET /api/charts/projections.png with the
// inclusion target as a dashed line.
func (h *Handler) ProjectionsChart(w http.ResponseWriter, r *http.Request) {
	view, ok := h.projections(w, r)
	if !ok {
		return
	}
	if !view.Available {
		h.chartUnavailable(w, "projections")
		return
	}
	h.writeChart(w, "projections", forecastSeries(view.Records), chart.Options{
		Title:       fmt.Sprintf("Inclusion projections (%s)", view.Scenario),
		XLabel:      "Year",
		YLabel:      "Percent",
		HasTarget:   true,
		Target:      view.Target,
		TargetLabel: fmt.Sprintf("%g%% target", view.Target),
	})
}

func (h *Handler) writeChart(w http.ResponseWriter, name string, series []chart.Series, opts chart.Options) {
	img, err := chart.LinePNG(series, opts)
	if err != nil {
		if errors.Is(err, chart.ErrNoData) {
			writeError(w, http.StatusNotFound, "No data to plot", err)
			return
		}
		h.Log.Error("failed to render chart", zap.String("chart", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to render chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (h *Handler) chartUnavailable(w http.ResponseWriter, name string) {
	writeError(w, http.StatusNotFound, "Forecasts unavailable", fmt.Errorf("%s: %w", name, indicator.ErrForecastUnavailable))
}

func observationSeries(name string, rows []ObservationDTO) chart.Series {
	s := chart.Series{Name: name, Points: make([]chart.Point, 0, len(rows))}
	for _, row := range rows {
		if row.Value == nil || row.Date == nil {
			continue
		}
		s.Points = append(s.Points, chart.Point{X: decimalYear(*row.Date), Y: *row.Value})
	}
	return s
}

// forecastSeries groups rows by indicator, keeping first-seen order.
func forecastSeries(rows []ForecastDTO) []chart.Series {
	var series []chart.Series
	index := make(map[string]int)
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		i, ok := index[row.Indicator]
		if !ok {
			i = len(series)
			index[row.Indicator] = i
			series = append(series, chart.Series{Name: row.Indicator})
		}
		series[i].Points = append(series[i].Points, chart.Point{X: float64(row.Year), Y: *row.Value})
	}
	return series
}

func decimalYear(date string) float64 {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return math.NaN()
	}
	return chart.DecimalYear(t)
}
