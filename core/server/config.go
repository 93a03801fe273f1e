package server

import "time"

// Config holds configuration for the HTTP server.
type Config struct {
	// Host is the interface the server binds to. Empty means all interfaces.
	Host string `mapstructure:"host" default:""`
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ReadTimeout bounds reading a full request.
	ReadTimeout time.Duration `mapstructure:"read_timeout" default:"10s"`
	// ShutdownTimeout bounds the graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"10s"`
	// BodyLimit is the maximum request body size in bytes.
	BodyLimit int `mapstructure:"body_limit" default:"1048576"`
}

// Address returns the listen address.
func (c Config) Address() string {
	return c.Host + ":" + c.Port
}
