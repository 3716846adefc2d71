package domain

import (
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"example.com/stravasync/internal/strava"
)

// DefaultTimezone is used when an activity's timezone cannot be resolved.
const DefaultTimezone = "Europe/Madrid"

// DateLayout renders localized timestamps at second precision with an explicit offset.
const DateLayout = time.RFC3339

// ResolveLocation extracts the IANA zone from Strava's "(GMT+01:00) Europe/Madrid" form.
// The zone is the token after the last space. Input without a space, an empty token, or a zone
// that does not load maps to DefaultTimezone.
func ResolveLocation(timezone string) *time.Location {
	name := DefaultTimezone
	if idx := strings.LastIndex(timezone, " "); idx >= 0 {
		if token := timezone[idx+1:]; token != "" {
			name = token
		}
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatDate renders t in loc, truncated to the second.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Truncate(time.Second).Format(DateLayout)
}

// Normalize maps a detailed activity onto the write model. It performs no I/O and does not
// modify its input.
func Normalize(a *strava.Activity) ActivityRecord {
	loc := ResolveLocation(a.Timezone)

	record := ActivityRecord{
		StravaID:        a.ID,
		ExternalID:      a.ExternalID,
		Name:            a.Name,
		Distance:        a.Distance,
		MovingTime:      a.MovingTime,
		ElapsedTime:     a.ElapsedTime,
		SportType:       string(a.SportType),
		StartDate:       FormatDate(a.StartDate, loc),
		LocationCity:    cloneString(a.LocationCity),
		LocationCountry: cloneString(a.LocationCountry),
		StartLatLng:     slices.Clone(a.StartLatLng),
		EndLatLng:       slices.Clone(a.EndLatLng),
		AverageSpeed:    a.AverageSpeed,
		MaxSpeed:        a.MaxSpeed,
		DeviceName:      cloneString(a.DeviceName),
		Splits:          normalizeSplits(a.SplitsMetric),
		Laps:            normalizeLaps(a.Laps, loc),
		BestEfforts:     normalizeBestEfforts(a.BestEfforts, loc),
	}
	if a.Map.Polyline != "" {
		polyline := a.Map.Polyline
		record.Map = &polyline
	}
	if a.Description != nil && *a.Description != "" {
		record.Description = cloneString(a.Description)
	}
	applyRules(activityRules, a, &record, a.HasDeviceWatts())
	return record
}

func normalizeSplits(in []strava.Split) []Split {
	sorted := slices.Clone(in)
	slices.SortStableFunc(sorted, func(x, y strava.Split) int { return x.Split - y.Split })

	out := make([]Split, 0, len(sorted))
	for i := range sorted {
		src := &sorted[i]
		split := Split{
			Split:        src.Split,
			Distance:     src.Distance,
			MovingTime:   src.MovingTime,
			ElapsedTime:  src.ElapsedTime,
			AverageSpeed: src.AverageSpeed,
		}
		applyRules(splitRules, src, &split, false)
		out = append(out, split)
	}
	return out
}

func normalizeLaps(in []strava.Lap, loc *time.Location) []Lap {
	sorted := slices.Clone(in)
	slices.SortStableFunc(sorted, func(x, y strava.Lap) int { return x.LapIndex - y.LapIndex })

	out := make([]Lap, 0, len(sorted))
	for i := range sorted {
		src := &sorted[i]
		lap := Lap{
			LapID:        src.ID,
			Lap:          src.LapIndex,
			Name:         src.Name,
			Distance:     src.Distance,
			MovingTime:   src.MovingTime,
			ElapsedTime:  src.ElapsedTime,
			StartDate:    FormatDate(src.StartDate, loc),
			AverageSpeed: src.AverageSpeed,
			MaxSpeed:     src.MaxSpeed,
		}
		applyRules(lapRules, src, &lap, src.HasDeviceWatts())
		out = append(out, lap)
	}
	return out
}

func normalizeBestEfforts(in []strava.BestEffort, loc *time.Location) []BestEffort {
	out := make([]BestEffort, 0, len(in))
	for _, src := range in {
		out = append(out, BestEffort{
			BestEffortID: src.ID,
			Name:         src.Name,
			Distance:     src.Distance,
			MovingTime:   src.MovingTime,
			ElapsedTime:  src.ElapsedTime,
			StartDate:    FormatDate(src.StartDate, loc),
		})
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
