package main

import (
	"fmt"
	"os"

	"github.com/yungbote/autopilot-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "autopilot: %v\n", err)
		os.Exit(1)
	}
}
