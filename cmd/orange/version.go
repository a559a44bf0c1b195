package main

import (
	"fmt"
	"runtime"

	"github.com/fentz26/orange/internal/controlplane"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of orange",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("orange version %s\n", controlplane.Version)
		fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Go version: %s\n", runtime.Version())
	},
}
