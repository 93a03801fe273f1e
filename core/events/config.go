package events

// Config holds configuration for async event dispatch.
type Config struct {
	// Workers bounds concurrently running async handlers.
	Workers int `mapstructure:"workers" default:"4"`
	// Buffer is the per-topic channel buffer of the in-process pub/sub.
	Buffer int64 `mapstructure:"buffer" default:"256"`
}
