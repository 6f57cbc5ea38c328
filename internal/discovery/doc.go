// Package discovery advertises the GPIO API on the local network over mDNS.
//
// The service is registered as _graylogic-gpio._tcp in the local. domain
// with TXT records describing the site and the API paths:
//
//	site=garage version=1.2.0 api=/api/v1 ws=/ws emulated=false
//
// Usage:
//
//	adv := discovery.New(cfg.Discovery, logger)
//	if err := adv.Start(discovery.Info{Port: cfg.API.Port, SiteID: cfg.Site.ID}); err != nil { ... }
//	defer adv.Stop()
package discovery
