// Package httpserver runs the service's HTTP handler with context-driven
// graceful shutdown and exposes liveness/readiness handlers.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
//
// Handlers in this service do not enforce timeouts themselves; the server's
// write timeout is the effective invocation deadline.
package httpserver
