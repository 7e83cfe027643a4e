package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the occupancy service.
//
// Seat topics use the scheme: graylogic/occupancy/seat/{name}/{kind}
const (
	// TopicPrefix is the base for all occupancy topics.
	TopicPrefix = "graylogic/occupancy"

	// TopicPrefixSystem is the base for shared system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for occupancy MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.SeatState("Sugiura")
//	// Returns: "graylogic/occupancy/seat/Sugiura/state"
type Topics struct{}

// SeatState returns the retained state topic for one seat.
//
// Example: graylogic/occupancy/seat/Sugiura/state
func (Topics) SeatState(seat string) string {
	return fmt.Sprintf("%s/seat/%s/state", TopicPrefix, TopicSegment(seat))
}

// AllSeatStates returns a wildcard pattern matching every seat state topic.
func (Topics) AllSeatStates() string {
	return TopicPrefix + "/seat/+/state"
}

// SensorReport returns the default topic for pushed sensor reports.
//
// Example: graylogic/occupancy/sensor/report
func (Topics) SensorReport() string {
	return TopicPrefix + "/sensor/report"
}

// ServiceStatus returns the retained online/offline status topic of this
// service. The LWT is published here.
func (Topics) ServiceStatus() string {
	return TopicPrefix + "/status"
}

// SystemTime returns the shared system time topic.
func (Topics) SystemTime() string {
	return TopicPrefixSystem + "/time"
}

// TopicSegment makes a seat name safe to use as one topic level.
// Level separators and wildcards are replaced with underscores.
func TopicSegment(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(name)
}
