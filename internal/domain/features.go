package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Measurements are the six buoy readings an authority enters.
type Measurements struct {
	WaveHeight    float64 `json:"Hs"`             // significant wave height, m
	MaxWave       float64 `json:"Hmax"`           // maximum wave height, m
	AvgPeriod     float64 `json:"Tz"`             // zero-crossing period, s
	PeakPeriod    float64 `json:"Tp"`             // peak period, s
	PeakDirection float64 `json:"Peak Direction"` // degrees
	SeaTemp       float64 `json:"SST"`            // °C
}

// DefaultMeasurements is the form an authority dashboard opens with.
func DefaultMeasurements() Measurements {
	return Measurements{
		WaveHeight:    1.5,
		MaxWave:       2.5,
		AvgPeriod:     5.0,
		PeakPeriod:    10.0,
		PeakDirection: 190,
		SeaTemp:       28.5,
	}
}

// Feature names expected by the prediction model.
const (
	FeatureWaveHeight    = "Hs"
	FeatureMaxWave       = "Hmax"
	FeatureAvgPeriod     = "Tz"
	FeaturePeakPeriod    = "Tp"
	FeaturePeakDirection = "Peak Direction"
	FeatureSeaTemp       = "SST"
	FeatureHour          = "hour"
	FeatureMonth         = "month"
	FeatureDayOfYearSin  = "day_of_year_sin"
	FeatureDayOfYearCos  = "day_of_year_cos"
	FeatureHsRolling     = "Hs_rolling_6h"
	FeatureTpRolling     = "Tp_rolling_6h"
)

// Features is the flat feature vector posted to the prediction service.
type Features map[string]float64

// BuildFeatures derives the model feature vector for m observed at t. The
// rolling aggregates equal the latest Hs and Tp.
func BuildFeatures(m Measurements, t time.Time) Features {
	angle := 2 * math.Pi * float64(t.YearDay()) / 365

	return Features{
		FeatureWaveHeight:    m.WaveHeight,
		FeatureMaxWave:       m.MaxWave,
		FeatureAvgPeriod:     m.AvgPeriod,
		FeaturePeakPeriod:    m.PeakPeriod,
		FeaturePeakDirection: m.PeakDirection,
		FeatureSeaTemp:       m.SeaTemp,
		FeatureHour:          float64(t.Hour()),
		FeatureMonth:         float64(t.Month()),
		FeatureDayOfYearSin:  math.Sin(angle),
		FeatureDayOfYearCos:  math.Cos(angle),
		FeatureHsRolling:     m.WaveHeight,
		FeatureTpRolling:     m.PeakPeriod,
	}
}

// Key returns a deterministic string for the vector, used as a cache key.
func (f Features) Key() string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%s=%.6f", name, f[name])
	}
	return b.String()
}
