package domain

// ActivityRecord is the normalized activity write model keyed by StravaID.
// Dates are rendered in the activity's own timezone with an explicit offset.
type ActivityRecord struct {
	StravaID             int64     `json:"strava_id"`
	ExternalID           string    `json:"external_id"`
	Name                 string    `json:"name"`
	Distance             float64   `json:"distance"`
	MovingTime           int64     `json:"moving_time"`
	ElapsedTime          int64     `json:"elapsed_time"`
	TotalElevationGain   float64   `json:"total_elevation_gain"`
	ElevHigh             float64   `json:"elev_high"`
	ElevLow              float64   `json:"elev_low"`
	SportType            string    `json:"sport_type"`
	StartDate            string    `json:"start_date"`
	LocationCity         *string   `json:"location_city"`
	LocationCountry      *string   `json:"location_country"`
	StartLatLng          []float64 `json:"start_latlng"`
	EndLatLng            []float64 `json:"end_latlng"`
	Map                  *string   `json:"map"`
	AverageSpeed         float64   `json:"average_speed"`
	MaxSpeed             float64   `json:"max_speed"`
	AverageCadence       *float64  `json:"average_cadence"`
	AverageHeartrate     *float64  `json:"average_heartrate"`
	MaxHeartrate         *float64  `json:"max_heartrate"`
	Kilojoules           *float64  `json:"kilojoules"`
	AverageWatts         *float64  `json:"average_watts"`
	MaxWatts             *float64  `json:"max_watts"`
	WeightedAverageWatts *float64  `json:"weighted_average_watts"`
	Description          *string   `json:"description"`
	Calories             *float64  `json:"calories"`
	DeviceName           *string   `json:"device_name"`

	Splits      []Split      `json:"splits"`
	Laps        []Lap        `json:"laps"`
	BestEfforts []BestEffort `json:"best_efforts"`
}

// Split is a per-kilometre split row.
type Split struct {
	Split               int      `json:"split"`
	Distance            float64  `json:"distance"`
	MovingTime          int64    `json:"moving_time"`
	ElapsedTime         int64    `json:"elapsed_time"`
	ElevationDifference float64  `json:"elevation_difference"`
	AverageSpeed        float64  `json:"average_speed"`
	AverageHeartrate    *float64 `json:"average_heartrate"`
}

// Lap is a lap row. LapID is Strava's lap identifier.
type Lap struct {
	LapID              int64    `json:"lap_id"`
	Lap                int      `json:"lap"`
	Name               string   `json:"name"`
	Distance           float64  `json:"distance"`
	MovingTime         int64    `json:"moving_time"`
	ElapsedTime        int64    `json:"elapsed_time"`
	TotalElevationGain float64  `json:"total_elevation_gain"`
	StartDate          string   `json:"start_date"`
	AverageSpeed       float64  `json:"average_speed"`
	MaxSpeed           float64  `json:"max_speed"`
	AverageCadence     *float64 `json:"average_cadence"`
	AverageHeartrate   *float64 `json:"average_heartrate"`
	MaxHeartrate       *float64 `json:"max_heartrate"`
	AverageWatts       *float64 `json:"average_watts"`
}

// BestEffort is a best effort row. BestEffortID is Strava's effort identifier.
type BestEffort struct {
	BestEffortID int64   `json:"best_effort_id"`
	Name         string  `json:"name"`
	Distance     float64 `json:"distance"`
	MovingTime   int64   `json:"moving_time"`
	ElapsedTime  int64   `json:"elapsed_time"`
	StartDate    string  `json:"start_date"`
}

// RemoveResult reports whether a delete found something to remove.
type RemoveResult struct {
	OK      bool
	Message string
}
