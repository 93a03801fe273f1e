package config

import (
	"fmt"
	"reflect"
	"strings"

	"lsadf-backend/core/cache"
	"lsadf-backend/core/database"
	"lsadf-backend/core/events"
	"lsadf-backend/core/logger"
	"lsadf-backend/core/server"
	"lsadf-backend/core/storage"
	"lsadf-backend/core/supervisor"
	"lsadf-backend/core/workflow"
	"lsadf-backend/feature/flush"
	"lsadf-backend/feature/mail"
	"lsadf-backend/feature/session"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Cache holds configuration for the cache backend.
	Cache cache.Config `mapstructure:"cache"`
	// Storage holds configuration for the session archive.
	Storage storage.Config `mapstructure:"storage"`
	// Flush holds configuration for the periodic cache flush.
	Flush flush.Config `mapstructure:"flush"`
	// Session holds configuration for game sessions.
	Session session.Config `mapstructure:"session"`
	// Workflow holds configuration for the session workflow engine.
	Workflow workflow.Config `mapstructure:"workflow"`
	// Mail holds configuration for in-game mail.
	Mail mail.Config `mapstructure:"mail"`
	// Events holds configuration for async event dispatch.
	Events events.Config `mapstructure:"events"`
	// Supervisor holds configuration for the background service tree.
	Supervisor supervisor.TreeConfig `mapstructure:"supervisor"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Missing .env is fine outside development.
	_ = godotenv.Overload(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")

	// SESSION_REAP_AFTER -> session.reap_after
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Workflow.Validate(); err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}

	return &config, nil
}

// bindValues walks the struct and registers every mapstructure key in Viper with the value
// of its 'default' tag. time.Duration fields are scalars and not recursed into.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Registered even when empty so AutomaticEnv picks the key up.
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
