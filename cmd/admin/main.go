package main

import (
	"fmt"
	"os"

	"classattend/internal/app"
	"classattend/internal/config"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	comps, err := app.Build(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wiring failed: %v\n", err)
		os.Exit(1)
	}

	cli := &commandLine{comps: comps, out: os.Stdout}
	err = cli.rootCmd().Execute()
	comps.Close()
	if err != nil {
		os.Exit(1)
	}
}
