// cmd/server/main.go
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/database"
)

var envFile string

// rootCmd serves the API when no subcommand is given
var rootCmd = &cobra.Command{
	Use:   "marketflow",
	Short: "MarketFlow marketplace API",
	Long: `MarketFlow serves the marketplace API: the sign-up/log-in wizard,
sessions, the product listing and the seller's product form.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the SQL that creates the products relation",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), database.SetupSQL)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the products relation over a direct Postgres connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := database.Initialize(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		return database.RunMigrations(db)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file before reading configuration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
