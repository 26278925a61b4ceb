package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/carelink-health/medkb/internal/cli"
	"github.com/carelink-health/medkb/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medkbd",
		Short: "Medical knowledge retrieval daemon and CLI",
		Long:  "Medkb daemon for running the retrieval API server and managing the corpus and term index",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IndexCmd())
	rootCmd.AddCommand(admin.IngestCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
