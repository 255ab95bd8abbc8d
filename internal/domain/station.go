package domain

import "time"

const (
	DefaultStationID   = "main_station"
	DefaultStationName = "Яндекс Станция"
	DeviceType         = "yandex_station"

	MinVolume     = 0
	MaxVolume     = 100
	InitialVolume = 50
)

// StationState is the last known state of the single managed station.
type StationState struct {
	Connected    bool
	Volume       int
	IsPlaying    bool
	CurrentTrack *string
	Properties   map[string]any
	LastSeen     *time.Time
}

// Snapshot is a point-in-time copy of the station state plus the commands it
// currently understands.
type Snapshot struct {
	DeviceID          string         `json:"device_id"`
	Name              string         `json:"name"`
	DeviceType        string         `json:"device_type"`
	Connected         bool           `json:"is_connected"`
	IsPlaying         bool           `json:"is_playing"`
	Volume            int            `json:"volume"`
	CurrentTrack      *string        `json:"current_track"`
	LastSeen          *time.Time     `json:"last_seen"`
	Properties        map[string]any `json:"properties"`
	AvailableCommands []string       `json:"available_commands"`
}

// ClampVolume forces level into [MinVolume, MaxVolume].
func ClampVolume(level int) int {
	return max(MinVolume, min(MaxVolume, level))
}
