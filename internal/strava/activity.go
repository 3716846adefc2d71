// Package strava talks to the Strava REST API: it exchanges the long-lived refresh token for an
// access token and retrieves detailed activities.
package strava

import "time"

// SportType is one of Strava's closed sport type values.
type SportType string

// Ref identifies a related Strava object.
type Ref struct {
	ID int64 `json:"id"`
}

// Map carries the activity route.
type Map struct {
	ID              string `json:"id"`
	Polyline        string `json:"polyline"`
	SummaryPolyline string `json:"summary_polyline"`
}

// Split is one metric (1 km) split.
type Split struct {
	Distance            float64  `json:"distance"`
	MovingTime          int64    `json:"moving_time"`
	ElapsedTime         int64    `json:"elapsed_time"`
	Split               int      `json:"split"`
	ElevationDifference *float64 `json:"elevation_difference"`
	AverageSpeed        float64  `json:"average_speed"`
	AverageHeartrate    *float64 `json:"average_heartrate"`
}

// Lap is a device or manual lap.
type Lap struct {
	ID                 int64     `json:"id"`
	Activity           Ref       `json:"activity"`
	Athlete            Ref       `json:"athlete"`
	Name               string    `json:"name"`
	Distance           float64   `json:"distance"`
	MovingTime         int64     `json:"moving_time"`
	ElapsedTime        int64     `json:"elapsed_time"`
	LapIndex           int       `json:"lap_index"`
	Split              int       `json:"split"`
	TotalElevationGain *float64  `json:"total_elevation_gain"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	AverageSpeed       float64   `json:"average_speed"`
	MaxSpeed           float64   `json:"max_speed"`
	AverageCadence     *float64  `json:"average_cadence"`
	AverageHeartrate   *float64  `json:"average_heartrate"`
	MaxHeartrate       *float64  `json:"max_heartrate"`
	AverageWatts       *float64  `json:"average_watts"`
	DeviceWatts        *bool     `json:"device_watts"`
}

// BestEffort is a fastest-segment record computed by Strava.
type BestEffort struct {
	ID             int64     `json:"id"`
	Activity       Ref       `json:"activity"`
	Athlete        Ref       `json:"athlete"`
	Name           string    `json:"name"`
	Distance       float64   `json:"distance"`
	MovingTime     int64     `json:"moving_time"`
	ElapsedTime    int64     `json:"elapsed_time"`
	StartDate      time.Time `json:"start_date"`
	StartDateLocal time.Time `json:"start_date_local"`
}

// Activity is the detailed activity representation returned by GET /activities/{id}.
type Activity struct {
	ID                   int64        `json:"id"`
	ExternalID           string       `json:"external_id"`
	UploadID             int64        `json:"upload_id"`
	Athlete              Ref          `json:"athlete"`
	Name                 string       `json:"name"`
	Distance             float64      `json:"distance"`
	MovingTime           int64        `json:"moving_time"`
	ElapsedTime          int64        `json:"elapsed_time"`
	TotalElevationGain   *float64     `json:"total_elevation_gain"`
	ElevHigh             *float64     `json:"elev_high"`
	ElevLow              *float64     `json:"elev_low"`
	SportType            SportType    `json:"sport_type"`
	StartDate            time.Time    `json:"start_date"`
	StartDateLocal       time.Time    `json:"start_date_local"`
	Timezone             string       `json:"timezone"`
	LocationCity         *string      `json:"location_city"`
	LocationCountry      *string      `json:"location_country"`
	StartLatLng          []float64    `json:"start_latlng"`
	EndLatLng            []float64    `json:"end_latlng"`
	Map                  Map          `json:"map"`
	AverageSpeed         float64      `json:"average_speed"`
	MaxSpeed             float64      `json:"max_speed"`
	AverageCadence       *float64     `json:"average_cadence"`
	AverageHeartrate     *float64     `json:"average_heartrate"`
	HasHeartrate         *bool        `json:"has_heartrate"`
	MaxHeartrate         *float64     `json:"max_heartrate"`
	Kilojoules           *float64     `json:"kilojoules"`
	AverageWatts         *float64     `json:"average_watts"`
	DeviceWatts          *bool        `json:"device_watts"`
	MaxWatts             *float64     `json:"max_watts"`
	WeightedAverageWatts *float64     `json:"weighted_average_watts"`
	Description          *string      `json:"description"`
	Calories             *float64     `json:"calories"`
	DeviceName           *string      `json:"device_name"`
	SplitsMetric         []Split      `json:"splits_metric"`
	Laps                 []Lap        `json:"laps"`
	BestEfforts          []BestEffort `json:"best_efforts"`
}

// HasDeviceWatts reports whether power values come from a power meter.
func (a *Activity) HasDeviceWatts() bool {
	return a.DeviceWatts != nil && *a.DeviceWatts
}

// HasDeviceWatts reports whether the lap's power values come from a power meter.
func (l *Lap) HasDeviceWatts() bool {
	return l.DeviceWatts != nil && *l.DeviceWatts
}

// TokenResponse is the OAuth refresh grant response.
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}
