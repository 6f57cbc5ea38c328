// Package influxdb writes GPIO transition telemetry to InfluxDB v2.
//
// Every confirmed level change seen by the runtime becomes one point in the
// gpio_transitions measurement:
//
//	gpio_transitions,site=garage,pin=11,mode=input,source=hardware,edge=rising state=1i,level=true
//
// Writes go through the client's non-blocking batched write API, so
// WriteTransition can be registered directly with Runtime.Subscribe:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
//	if err != nil { ... }
//	defer client.Close()
//	unsubscribe := rt.Subscribe(client.Observe)
//
// Asynchronous write failures are reported through SetOnError.
package influxdb
