package domain

import "example.com/stravasync/internal/strava"

// nullPolicy decides what an absent numeric value becomes.
type nullPolicy int

const (
	keepNull nullPolicy = iota
	zeroIfNull
)

// fieldRule is one row of the numeric mapping table. Gated fields are only kept when the
// source reports device_watts.
type fieldRule[S, D any] struct {
	Name   string
	Policy nullPolicy
	Gated  bool
	Get    func(*S) *float64
	Set    func(*D, *float64)
}

func (r fieldRule[S, D]) apply(src *S, dst *D, deviceWatts bool) {
	v := r.Get(src)
	if r.Gated && !deviceWatts {
		v = nil
	}
	if v != nil {
		copied := *v
		v = &copied
	} else if r.Policy == zeroIfNull {
		v = new(float64)
	}
	r.Set(dst, v)
}

func applyRules[S, D any](rules []fieldRule[S, D], src *S, dst *D, deviceWatts bool) {
	for _, rule := range rules {
		rule.apply(src, dst, deviceWatts)
	}
}

// zero reads a value produced by a zeroIfNull rule.
func zero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

var activityRules = []fieldRule[strava.Activity, ActivityRecord]{
	{Name: "total_elevation_gain", Policy: zeroIfNull,
		Get: func(a *strava.Activity) *float64 { return a.TotalElevationGain },
		Set: func(r *ActivityRecord, v *float64) { r.TotalElevationGain = zero(v) }},
	{Name: "elev_high", Policy: zeroIfNull,
		Get: func(a *strava.Activity) *float64 { return a.ElevHigh },
		Set: func(r *ActivityRecord, v *float64) { r.ElevHigh = zero(v) }},
	{Name: "elev_low", Policy: zeroIfNull,
		Get: func(a *strava.Activity) *float64 { return a.ElevLow },
		Set: func(r *ActivityRecord, v *float64) { r.ElevLow = zero(v) }},
	{Name: "average_cadence", Policy: keepNull,
		Get: func(a *strava.Activity) *float64 { return a.AverageCadence },
		Set: func(r *ActivityRecord, v *float64) { r.AverageCadence = v }},
	{Name: "average_heartrate", Policy: keepNull,
		Get: func(a *strava.Activity) *float64 { return a.AverageHeartrate },
		Set: func(r *ActivityRecord, v *float64) { r.AverageHeartrate = v }},
	{Name: "max_heartrate", Policy: keepNull,
		Get: func(a *strava.Activity) *float64 { return a.MaxHeartrate },
		Set: func(r *ActivityRecord, v *float64) { r.MaxHeartrate = v }},
	{Name: "calories", Policy: keepNull,
		Get: func(a *strava.Activity) *float64 { return a.Calories },
		Set: func(r *ActivityRecord, v *float64) { r.Calories = v }},
	{Name: "kilojoules", Policy: keepNull, Gated: true,
		Get: func(a *strava.Activity) *float64 { return a.Kilojoules },
		Set: func(r *ActivityRecord, v *float64) { r.Kilojoules = v }},
	{Name: "average_watts", Policy: keepNull, Gated: true,
		Get: func(a *strava.Activity) *float64 { return a.AverageWatts },
		Set: func(r *ActivityRecord, v *float64) { r.AverageWatts = v }},
	{Name: "max_watts", Policy: keepNull, Gated: true,
		Get: func(a *strava.Activity) *float64 { return a.MaxWatts },
		Set: func(r *ActivityRecord, v *float64) { r.MaxWatts = v }},
	{Name: "weighted_average_watts", Policy: keepNull, Gated: true,
		Get: func(a *strava.Activity) *float64 { return a.WeightedAverageWatts },
		Set: func(r *ActivityRecord, v *float64) { r.WeightedAverageWatts = v }},
}

var splitRules = []fieldRule[strava.Split, Split]{
	{Name: "elevation_difference", Policy: zeroIfNull,
		Get: func(s *strava.Split) *float64 { return s.ElevationDifference },
		Set: func(d *Split, v *float64) { d.ElevationDifference = zero(v) }},
	{Name: "average_heartrate", Policy: keepNull,
		Get: func(s *strava.Split) *float64 { return s.AverageHeartrate },
		Set: func(d *Split, v *float64) { d.AverageHeartrate = v }},
}

var lapRules = []fieldRule[strava.Lap, Lap]{
	{Name: "total_elevation_gain", Policy: zeroIfNull,
		Get: func(l *strava.Lap) *float64 { return l.TotalElevationGain },
		Set: func(d *Lap, v *float64) { d.TotalElevationGain = zero(v) }},
	{Name: "average_cadence", Policy: keepNull,
		Get: func(l *strava.Lap) *float64 { return l.AverageCadence },
		Set: func(d *Lap, v *float64) { d.AverageCadence = v }},
	{Name: "average_heartrate", Policy: keepNull,
		Get: func(l *strava.Lap) *float64 { return l.AverageHeartrate },
		Set: func(d *Lap, v *float64) { d.AverageHeartrate = v }},
	{Name: "max_heartrate", Policy: keepNull,
		Get: func(l *strava.Lap) *float64 { return l.MaxHeartrate },
		Set: func(d *Lap, v *float64) { d.MaxHeartrate = v }},
	{Name: "average_watts", Policy: keepNull, Gated: true,
		Get: func(l *strava.Lap) *float64 { return l.AverageWatts },
		Set: func(d *Lap, v *float64) { d.AverageWatts = v }},
}
