package main

import (
	"os"

	appLog "roomstatus/internal/log"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		appLog.Error("roomstatus failed", err)
	}
	appLog.Sync()
	if err != nil {
		os.Exit(1)
	}
}
