// Package app wires seriesdash together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from the environment and the YAML file
//  2. Initialize logging and OpenTelemetry
//  3. Build one source per configured dataset
//  4. Create the series, health and websocket services
//  5. Set up the chi router, middleware and routes
//
// # Usage
//
//	a, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return a.Run()
//
// # Graceful Shutdown
//
// Run serves until SIGINT or SIGTERM. Shutdown closes websocket sessions,
// drains in-flight requests within Server.ShutdownTimeout, closes database
// handles and flushes telemetry. Errors are returned to the caller; the
// package never calls os.Exit.
package app
