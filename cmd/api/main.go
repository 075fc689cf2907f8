package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskboard/api/cmd/api/commands"
)

// @title Taskboard API
// @version 1.0
// @description Personal task tracking: tasks, soft delete, status statistics

// @host localhost:5001
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskboard",
		Short:         "Taskboard API Server",
		Long:          `Taskboard tracks personal tasks with priorities, owners, soft deletion and per-status statistics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
