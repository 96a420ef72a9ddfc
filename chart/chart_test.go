package chart_test

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inclusion-dashboard/chart"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestLinePNG_RendersImage(t *testing.T) {
	img, err := chart.LinePNG([]chart.Series{
		{Name: "Account ownership", Points: []chart.Point{{X: 2014, Y: 22}, {X: 2017, Y: 35}, {X: 2021, Y: 46}}},
	}, chart.Options{Title: "Account ownership", HasTarget: true, Target: 60})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestLinePNG_SkipsNonFinitePoints(t *testing.T) {
	img, err := chart.LinePNG([]chart.Series{
		{Name: "ratio", Points: []chart.Point{{X: 2019, Y: 2}, {X: 2020, Y: math.NaN()}, {X: 2021, Y: math.Inf(1)}}},
	}, chart.Options{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestLinePNG_NoData(t *testing.T) {
	_, err := chart.LinePNG([]chart.Series{{Name: "empty"}, {Name: "nan", Points: []chart.Point{{X: 1, Y: math.NaN()}}}}, chart.Options{})
	assert.ErrorIs(t, err, chart.ErrNoData)

	_, err = chart.LinePNG(nil, chart.Options{})
	assert.ErrorIs(t, err, chart.ErrNoData)
}

func TestDecimalYear(t *testing.T) {
	assert.Equal(t, 2021.0, chart.DecimalYear(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	mid := chart.DecimalYear(time.Date(2021, 7, 2, 12, 0, 0, 0, time.UTC))
	assert.InDelta(t, 2021.5, mid, 0.001)
}
