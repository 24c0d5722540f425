package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the skipper version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("skipper %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
