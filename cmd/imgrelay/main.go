package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imgrelay/imgrelay/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:          "imgrelay",
		Short:        "Telegram webhook relay for the image bed upload API",
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetInfo())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
