// Package api exposes the GPIO runtime over HTTP and WebSocket.
//
// REST endpoints:
//
//	GET  /health                      liveness and pin count
//	GET  /api/v1/pins                 every live pin
//	GET  /api/v1/pins/{pin}           one pin
//	POST /api/v1/pins/{pin}/state     report a level, answered with the edge
//	GET  /api/v1/pins/{pin}/history   recorded transitions, newest first
//
// The WebSocket endpoint (default /ws) acts as an observer. Every
// announcement is pushed to all clients as a "pin:send" message, and
// clients report levels with "pin:toggle", answered by a "response"
// carrying the resulting edge:
//
//	-> {"type":"pin:toggle","id":"7","payload":{"pin":12,"state":true,"mode":"output"}}
//	<- {"type":"response","id":"7","payload":{"id":"7","pin":12,"edge":"rising"}}
//
// POST /state goes through the same receive handler as the WebSocket, so
// both are only live once the server's Observers pack is installed on the
// runtime:
//
//	srv, err := api.New(deps)
//	rt.SetObservers(observer.Multi(srv.Observers(), mqttObs.Observers()))
//	srv.Start(ctx)
//	defer srv.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
