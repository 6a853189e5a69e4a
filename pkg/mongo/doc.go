// Package mongo provides MongoDB connection management with retrying
// connect, a supervised health monitor with bounded backoff, and a
// healthcheck helper for readiness endpoints.
//
// Usage:
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	client, db, err := mongo.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect(context.Background())
//
//	mon := mongo.NewMonitor(client, cfg, logger)
//	go mon.Run(ctx)
package mongo
