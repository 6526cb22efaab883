// Package client is the registration SDK used by prediction services.
//
// A service registers once at startup, heartbeats in the background and
// unregisters on shutdown:
//
//	rc := client.New("http://registry:9000")
//	if err := rc.RegisterWithRetry(ctx, record, retry.Startup()); err != nil {
//	    logger.Warn("continuing without registry", "error", err)
//	}
//	go rc.RunHeartbeat(ctx, record.ServiceID, client.DefaultHeartbeatInterval)
//	defer rc.Unregister(context.Background(), record.ServiceID)
//
// Registry failures never stop the calling service. Non-2xx responses are
// *StatusError values that classify through the errors package: 404 and
// 422 are invalid, 5xx and network failures are transient.
package client
