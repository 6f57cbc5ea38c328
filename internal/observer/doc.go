// Package observer combines several observer transports into one pack
// that a gpio.Runtime can use.
//
// The runtime accepts a single Observers pair. Deployments that expose
// pins over both MQTT and WebSocket combine them here:
//
//	rt.SetObservers(observer.Multi(mqttObs.Observers(), hub.Observers()))
package observer
