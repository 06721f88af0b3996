package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is set via ldflags at build time:
//
//	go build -ldflags "-X main.version=1.2.3" ./cmd/archivesync
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("archivesync %s %s/%s (%s)\n", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}
