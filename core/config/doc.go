// Package config loads the service configuration.
//
// Values come from a .env file (joho/godotenv) and the environment, bound through Viper.
// Every field declares its key with a mapstructure tag and its default with a default tag;
// nested sections map to prefixed environment variables (CACHE_ADDR -> cache.addr).
//
// # Configuration Structure
//
//   - Server: HTTP listener
//   - Log: level and encoding
//   - Database: MySQL or SQLite connection
//   - Cache: Redis or in-memory backend, TTL and circuit breaker
//   - Storage: MinIO session archive
//   - Flush, Session, Workflow, Mail: background jobs
//   - Events, Supervisor: in-process plumbing
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Workflow.CheckpointInterval)
package config
