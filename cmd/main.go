package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// @title Map Medical Dispatch API
// @version 1.0
// @description Emergency request dispatch: patients submit requests, responders accept or reject them.
// @host localhost:3000
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
var rootCmd = &cobra.Command{
	Use:   "map-medical",
	Short: "Emergency request dispatch service",
	// Без подкоманды запускаем сервер
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
