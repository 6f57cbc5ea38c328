// Package mqtt provides MQTT client connectivity for the GPIO service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic Layout
//
// All topics hang off a configurable prefix (default "graylogic/gpio"):
//
//	{prefix}/state/{pin}     retained pin announcements
//	{prefix}/command/{pin}   inbound reports from the remote observer
//	{prefix}/ack/{pin}       replies to commands
//	{prefix}/status          service online/offline status (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	err = client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        pin, err := topics.PinFromTopic(topic)
//	        ...
//	    })
//
// # Security Considerations
//
//   - Enable TLS for anything beyond a trusted local network (cfg.Broker.TLS)
//   - Credentials are validated against the broker ACL
package mqtt
