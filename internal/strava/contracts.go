package strava

import (
	"encoding/json"
	"strings"

	"example.com/stravasync/internal/schema"
)

// SportTypes lists every sport type the activity contract accepts.
var SportTypes = []SportType{
	"AlpineSki", "BackcountrySki", "Badminton", "Canoeing", "Crossfit", "EBikeRide",
	"Elliptical", "EMountainBikeRide", "Golf", "GravelRide", "Handcycle",
	"HighIntensityIntervalTraining", "Hike", "IceSkate", "InlineSkate", "Kayaking", "Kitesurf",
	"MountainBikeRide", "NordicSki", "Pickleball", "Pilates", "Racquetball", "Ride",
	"RockClimbing", "RollerSki", "Rowing", "Run", "Sail", "Skateboard", "Snowboard", "Snowshoe",
	"Soccer", "Squash", "StairStepper", "StandUpPaddling", "Surfing", "Swim", "TableTennis",
	"Tennis", "TrailRun", "Velomobile", "VirtualRide", "VirtualRow", "VirtualRun", "Walk",
	"WeightTraining", "Wheelchair", "Windsurf", "Workout", "Yoga",
}

// TokenResponseDocument is the contract for the OAuth refresh grant response.
var TokenResponseDocument = schema.Document{Name: "token_response.json", Source: `{
  "type": "object",
  "title": "TokenResponse",
  "properties": {
    "token_type": {"type": "string"},
    "access_token": {"type": "string", "minLength": 1},
    "expires_at": {"type": "number"},
    "expires_in": {"type": "number"},
    "refresh_token": {"type": "string"}
  },
  "required": ["token_type", "access_token", "expires_at", "expires_in", "refresh_token"]
}`}

// ActivityDocument is the contract for a detailed activity.
var ActivityDocument = schema.Document{Name: "activity.json", Source: strings.Replace(`{
  "type": "object",
  "title": "Activity",
  "$defs": {
    "ref": {
      "type": "object",
      "properties": {"id": {"type": "integer"}},
      "required": ["id"]
    },
    "optionalNumber": {"type": ["number", "null"]},
    "optionalInteger": {"type": ["integer", "null"]},
    "optionalBoolean": {"type": ["boolean", "null"]},
    "nullableString": {"type": ["string", "null"]},
    "timestamp": {"type": "string", "format": "date-time"},
    "split": {
      "type": "object",
      "properties": {
        "distance": {"type": "number"},
        "moving_time": {"type": "integer"},
        "elapsed_time": {"type": "integer"},
        "split": {"type": "integer"},
        "elevation_difference": {"$ref": "#/$defs/optionalNumber"},
        "average_speed": {"type": "number"},
        "average_heartrate": {"$ref": "#/$defs/optionalNumber"}
      },
      "required": ["distance", "moving_time", "elapsed_time", "split", "average_speed"]
    },
    "lap": {
      "type": "object",
      "properties": {
        "id": {"type": "integer"},
        "activity": {"$ref": "#/$defs/ref"},
        "athlete": {"$ref": "#/$defs/ref"},
        "name": {"type": "string"},
        "distance": {"type": "number"},
        "moving_time": {"type": "integer"},
        "elapsed_time": {"type": "integer"},
        "lap_index": {"type": "integer"},
        "split": {"type": "integer"},
        "total_elevation_gain": {"$ref": "#/$defs/optionalNumber"},
        "start_date": {"$ref": "#/$defs/timestamp"},
        "start_date_local": {"$ref": "#/$defs/timestamp"},
        "average_speed": {"type": "number"},
        "max_speed": {"type": "number"},
        "average_cadence": {"$ref": "#/$defs/optionalNumber"},
        "average_heartrate": {"$ref": "#/$defs/optionalNumber"},
        "max_heartrate": {"$ref": "#/$defs/optionalNumber"},
        "average_watts": {"$ref": "#/$defs/optionalNumber"},
        "device_watts": {"$ref": "#/$defs/optionalBoolean"}
      },
      "required": ["id", "activity", "athlete", "name", "distance", "moving_time", "elapsed_time",
        "lap_index", "split", "start_date", "start_date_local", "average_speed", "max_speed"]
    },
    "bestEffort": {
      "type": "object",
      "properties": {
        "id": {"type": "integer"},
        "activity": {"$ref": "#/$defs/ref"},
        "athlete": {"$ref": "#/$defs/ref"},
        "name": {"type": "string"},
        "distance": {"type": "number"},
        "moving_time": {"type": "integer"},
        "elapsed_time": {"type": "integer"},
        "start_date": {"$ref": "#/$defs/timestamp"},
        "start_date_local": {"$ref": "#/$defs/timestamp"}
      },
      "required": ["id", "activity", "athlete", "name", "distance", "moving_time", "elapsed_time",
        "start_date", "start_date_local"]
    }
  },
  "properties": {
    "id": {"type": "integer"},
    "external_id": {"type": "string"},
    "upload_id": {"type": "integer"},
    "athlete": {"$ref": "#/$defs/ref"},
    "name": {"type": "string"},
    "distance": {"type": "number"},
    "moving_time": {"type": "integer"},
    "elapsed_time": {"type": "integer"},
    "total_elevation_gain": {"$ref": "#/$defs/optionalNumber"},
    "elev_high": {"$ref": "#/$defs/optionalNumber"},
    "elev_low": {"$ref": "#/$defs/optionalNumber"},
    "sport_type": {"enum": SPORT_TYPES},
    "start_date": {"$ref": "#/$defs/timestamp"},
    "start_date_local": {"$ref": "#/$defs/timestamp"},
    "timezone": {"type": "string"},
    "location_city": {"$ref": "#/$defs/nullableString"},
    "location_country": {"$ref": "#/$defs/nullableString"},
    "start_latlng": {"type": "array", "items": {"type": "number"}},
    "end_latlng": {"type": "array", "items": {"type": "number"}},
    "map": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "polyline": {"type": "string"},
        "summary_polyline": {"type": "string"}
      },
      "required": ["id", "polyline", "summary_polyline"]
    },
    "average_speed": {"type": "number"},
    "max_speed": {"type": "number"},
    "average_cadence": {"$ref": "#/$defs/optionalNumber"},
    "average_heartrate": {"$ref": "#/$defs/optionalNumber"},
    "has_heartrate": {"$ref": "#/$defs/optionalBoolean"},
    "max_heartrate": {"$ref": "#/$defs/optionalInteger"},
    "kilojoules": {"$ref": "#/$defs/optionalNumber"},
    "average_watts": {"$ref": "#/$defs/optionalNumber"},
    "device_watts": {"$ref": "#/$defs/optionalBoolean"},
    "max_watts": {"$ref": "#/$defs/optionalInteger"},
    "weighted_average_watts": {"$ref": "#/$defs/optionalInteger"},
    "description": {"$ref": "#/$defs/nullableString"},
    "calories": {"$ref": "#/$defs/optionalNumber"},
    "device_name": {"$ref": "#/$defs/nullableString"},
    "splits_metric": {"type": "array", "items": {"$ref": "#/$defs/split"}, "minItems": 1},
    "laps": {"type": "array", "items": {"$ref": "#/$defs/lap"}, "minItems": 1},
    "best_efforts": {"type": "array", "items": {"$ref": "#/$defs/bestEffort"}}
  },
  "required": ["id", "external_id", "upload_id", "athlete", "name", "distance", "moving_time",
    "elapsed_time", "sport_type", "start_date", "start_date_local", "timezone", "location_city",
    "location_country", "start_latlng", "end_latlng", "map", "average_speed", "max_speed",
    "description", "device_name", "splits_metric", "laps", "best_efforts"]
}`, "SPORT_TYPES", sportTypeEnum(), 1)}

var (
	// TokenResponseContract validates token refresh responses.
	TokenResponseContract = schema.MustCompile(TokenResponseDocument)
	// ActivityContract validates detailed activities.
	ActivityContract = schema.MustCompile(ActivityDocument)
)

func sportTypeEnum() string {
	raw, _ := json.Marshal(SportTypes)
	return string(raw)
}
