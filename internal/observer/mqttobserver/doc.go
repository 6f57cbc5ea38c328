// Package mqttobserver connects a gpio.Runtime to an MQTT broker.
//
// Announcements are published retained on {prefix}/state/{pin} so a
// subscriber joining late sees the current level. Remote parties report
// levels by publishing a wire.Command on {prefix}/command/{pin}; each
// command is answered on {prefix}/ack/{pin} with the resulting edge.
//
//	obs, err := mqttobserver.New(mqttobserver.Options{
//	    Client: client,
//	    Topics: client.Topics(),
//	    Codec:  codec,
//	    QoS:    client.QoS(),
//	    Logger: log,
//	})
//	if err := obs.Start(ctx); err != nil {
//	    return err
//	}
//	rt.SetObservers(obs.Observers())
package mqttobserver
