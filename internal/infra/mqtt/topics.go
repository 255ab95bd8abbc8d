package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"station-assistant/internal/domain"
)

var topicEscaper = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// CommandTopic is where commands for the station at address are published.
func CommandTopic(prefix, address string) string {
	return fmt.Sprintf("%s/%s/command", prefix, topicEscaper.Replace(address))
}

// StateFilter matches state reports from every station under prefix.
func StateFilter(prefix string) string {
	return prefix + "/+/state"
}

// stationFromTopic extracts the station segment from <prefix>/<station>/state.
func stationFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	station, ok := strings.CutSuffix(rest, "/state")
	if !ok || station == "" || strings.Contains(station, "/") {
		return "", false
	}
	return station, true
}

func encodeCommand(command string, params domain.Params) ([]byte, error) {
	if params == nil {
		params = domain.Params{}
	}
	payload, err := json.Marshal(domain.CommandRequest{Command: command, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshaling command: %w", err)
	}
	return payload, nil
}
