// Package httpserver runs an http.Handler with timeouts from Config and
// shuts it down gracefully when the run context ends.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// HealthCheckHandler builds liveness (no checks) and readiness (with checks)
// probe endpoints.
package httpserver
