package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"llmquery/models"
	"llmquery/service"
)

var (
	schemaOut     string
	schemaSamples bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Work with the reporting database schema",
}

var schemaDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the database DDL to a schema file",
	Long: `The dump command introspects the configured database and writes one CREATE TABLE
statement per table to the schema file the server reads at start. With --samples, up to
three rows per table are appended as JSON comments to give the model concrete values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.DatabaseConfigured() {
			pterm.Error.Println("No database configured. Set DB_HOST and DB_NAME (or DB_PATH for sqlite).")
			return fmt.Errorf("database not configured")
		}

		out := schemaOut
		if out == "" {
			out = cfg.SchemaFile
		}

		conn, err := service.Open(cfg.Database)
		if err != nil {
			pterm.Error.Printfln("Failed to connect: %v", err)
			return err
		}
		defer conn.Close()

		dbName := cfg.Database.Name
		if cfg.Database.Driver == "sqlite" {
			dbName = filepath.Base(cfg.Database.Path)
		}

		spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Introspecting %s database %s", cfg.Database.Driver, dbName))
		dump, stats, err := service.DumpSchema(cmd.Context(), conn, cfg.Database.Driver, dbName, schemaSamples)
		if err != nil {
			spinner.Fail(err.Error())
			return err
		}

		if dir := filepath.Dir(out); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				spinner.Fail(err.Error())
				return err
			}
		}
		if err := os.WriteFile(out, []byte(dump), 0644); err != nil {
			spinner.Fail(err.Error())
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		spinner.Success(fmt.Sprintf("Wrote %d tables to %s", len(stats), out))

		if len(stats) > 0 {
			if err := pterm.DefaultTable.WithHasHeader().WithData(statsTable(stats)).Render(); err != nil {
				return err
			}
		}
		pterm.Info.Println("Restart the server to pick up the new schema.")
		return nil
	},
}

func init() {
	schemaDumpCmd.Flags().StringVar(&schemaOut, "out", "", "Output file (defaults to schema_file from config)")
	schemaDumpCmd.Flags().BoolVar(&schemaSamples, "samples", false, "Append up to three sample rows per table")
	schemaCmd.AddCommand(schemaDumpCmd)
	rootCmd.AddCommand(schemaCmd)
}

func statsTable(stats []models.TableStats) pterm.TableData {
	data := pterm.TableData{{"Table", "Rows"}}
	var total int64
	for _, s := range stats {
		data = append(data, []string{s.Table, strconv.FormatInt(s.RowCount, 10)})
		total += s.RowCount
	}
	return append(data, []string{"total", strconv.FormatInt(total, 10)})
}
