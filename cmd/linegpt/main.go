package main

import (
	"os"

	"github.com/tillberg/autorestart"

	"github.com/soyeahso/linegpt/internal/cli"
)

func main() {
	// Development loop: re-exec when the binary is rebuilt.
	if os.Getenv("LINEGPT_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
