// @title           Task Board API
// @version         1.0
// @description     Task board with live columns, comments and attachments.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apikey  CookieAuth
// @in                          cookie
// @name                        session_id
package main

import (
	"fmt"
	"os"

	_ "github.com/dordunu1/taskboard/docs"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "taskboard",
		Short:   "Task board API server",
		Version: Version,
		// Bare invocation serves, as the container entrypoint expects.
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
