// Package mqtt provides MQTT client connectivity for Gray Logic Remote.
//
// The broker is the bus between this service and the media bridge that
// speaks the device protocols:
//
//	Gray Logic Remote ↔ MQTT Broker ↔ Media Bridge ↔ Devices
//
// This package manages:
//   - Connection with auto-reconnect and subscription restore
//   - Publishing with QoS and payload validation
//   - Last Will and Testament on graylogic/system/status
//   - Publishing session events on graylogic/remote/event/{type}
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) outside a trusted network
//   - Session events never carry pairing credentials
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeResponses("atv"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
