// Package server runs an HTTP handler until its context is done, then
// drains in-flight requests and runs registered cleanup funcs.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	srv := server.New(app, server.WithHost(":8080"))
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
