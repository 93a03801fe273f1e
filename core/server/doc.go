// Package server holds the HTTP server configuration and its supervised runner.
//
// # Configuration
//
// The Config struct defines the bind address, timeouts and the request body limit.
//
// # Usage
//
// NewApp builds the Fiber application (goccy/go-json for encoding); NewService wraps it so the
// supervisor tree can start it and shut it down with the rest of the background services.
package server
