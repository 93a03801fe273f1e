package cmd

import (
	"fmt"
	"strings"

	"lsadf-backend/core/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var checkOnly bool

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Runs gorm AutoMigrate for every persisted model.
With --check the schema is only verified and missing columns are reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logg.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		if !checkOnly {
			if err := database.Migrate(db, schema()...); err != nil {
				return err
			}
			logg.Info("Schema migrated", zap.Int("models", len(schema())))
		}
		return checkSchema(db, logg)
	},
}

// checkSchema verifies that every model column exists in its table.
func checkSchema(db *gorm.DB, logg *zap.Logger) error {
	var broken []string
	for _, model := range schema() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model %T: %w", model, err)
		}

		missing, err := database.VerifyColumns(db, stmt.Schema.Table, stmt.Schema.DBNames)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", stmt.Schema.Table, err)
		}
		if len(missing) > 0 {
			logg.Error("Table is missing columns",
				zap.String("table", stmt.Schema.Table),
				zap.Strings("columns", missing),
			)
			broken = append(broken, stmt.Schema.Table)
		}
	}
	if len(broken) > 0 {
		return fmt.Errorf("schema check failed for %s", strings.Join(broken, ", "))
	}
	logg.Info("Schema check passed")
	return nil
}

func init() {
	migrateCmd.Flags().BoolVar(&checkOnly, "check", false, "only verify the schema")
	RootCmd.AddCommand(migrateCmd)
}
