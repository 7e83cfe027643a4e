// Package mqtt provides MQTT client connectivity for the occupancy service.
//
// This package manages:
//   - Connection to the Mosquitto broker with auto-reconnect
//   - Retained seat state publishing
//   - Sensor report subscriptions (an alternative to the TCP ingest port)
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	graylogic/occupancy/seat/{name}/state   retained seat state (JSON)
//	graylogic/occupancy/sensor/report       default sensor report topic
//	graylogic/occupancy/status              online/offline (LWT)
//
// Seat names are sanitised with TopicSegment so a name can never inject a
// level separator or wildcard.
//
// # Security Considerations
//
//   - TLS is recommended outside the lab network (cfg.Broker.TLS=true)
//   - Credentials should come from OCCUPANCY_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishRetained(mqtt.Topics{}.SeatState("Sugiura"), payload)
package mqtt
