package main

import (
	"fmt"
	"os"

	"github.com/dukerupert/eventpilot/internal/cli"
)

func main() {
	app := cli.NewApp()
	err := app.Execute()
	app.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
