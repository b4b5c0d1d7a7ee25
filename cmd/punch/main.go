package main

import (
	"os"

	"github.com/pterm/pterm"

	punch "github.com/punchclock/punch"
)

func run(args []string) error {
	return punch.GetApp().Run(args)
}

func main() {
	err := run(os.Args)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
