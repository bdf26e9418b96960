package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"plantops-backend/config"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var logger = log.New(os.Stdout, "plantops ", log.LstdFlags)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("could not read .env: %v", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		logger.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "plantopsd",
		Short:         "Rubber intake bookings and approval workflow service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the YAML configuration file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Printf("configuration loaded successfully from %s", configPath)
		return cfg, nil
	}

	root.AddCommand(newServerCmd(load))
	root.AddCommand(newMigrateCmd(load))
	root.AddCommand(newSweepCmd(load))
	root.AddCommand(newTokenCmd(load))
	root.AddCommand(newVAPIDKeysCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config/config.yaml"
}
