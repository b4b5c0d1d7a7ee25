// Package punch wires the timer engine, store, and gateway into the
// command-line application.
package punch

import (
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/punchclock/punch/internal/config"
)

// disableStyling disables all styling provided by pterm.
func disableStyling() {
	pterm.DisableColor()
	pterm.DisableStyling()
	pterm.Debug.Prefix.Text = ""
	pterm.Info.Prefix.Text = ""
	pterm.Success.Prefix.Text = ""
	pterm.Warning.Prefix.Text = ""
	pterm.Error.Prefix.Text = ""
	pterm.Fatal.Prefix.Text = ""
}

// GetApp retrieves the punch app instance.
func GetApp() *cli.App {
	punchApp := &cli.App{
		Name: "punch",
		Usage: `
		Punch tracks work time against tickets in your issue tracker and
		posts the accumulated time back as work logs.`,
		UsageText:            "[COMMAND] [OPTIONS]",
		Version:              config.Version,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate against the issue tracker and store the credential",
				Action: loginAction,
				Flags:  []cli.Flag{hostFlag},
			},
			{
				Name:      "add",
				Usage:     "Start a new timer for a ticket",
				ArgsUsage: "<TICKET-KEY>",
				Action:    addAction,
				Flags:     []cli.Flag{summaryFlag},
			},
			{
				Name:   "list",
				Usage:  "List all timers with their elapsed time",
				Action: listAction,
			},
			{
				Name:      "start",
				Usage:     "Resume a paused timer",
				ArgsUsage: "<TIMER-ID>",
				Action:    startAction,
			},
			{
				Name:      "pause",
				Usage:     "Pause a running timer",
				ArgsUsage: "<TIMER-ID>",
				Action:    pauseAction,
			},
			{
				Name:      "edit",
				Usage:     "Replace a timer's elapsed time, e.g. punch edit 3 25m",
				ArgsUsage: "<TIMER-ID> <DURATION>",
				Action:    editAction,
			},
			{
				Name:      "post",
				Usage:     "Post a timer's elapsed time to the issue tracker as a work log",
				ArgsUsage: "<TIMER-ID>",
				Action:    postAction,
				Flags:     []cli.Flag{commentFlag, noCommentFlag},
			},
			{
				Name:      "delete",
				Usage:     "Delete a timer without posting it",
				ArgsUsage: "<TIMER-ID>",
				Action:    deleteAction,
			},
			{
				Name:      "transition",
				Usage:     "Move a timer's ticket to a new status, or list the available transitions",
				ArgsUsage: "<TIMER-ID> [TRANSITION-ID]",
				Action:    transitionAction,
			},
			{
				Name:      "menu",
				Usage:     "Print the action menu for a timer, including available status transitions",
				ArgsUsage: "<TIMER-ID>",
				Action:    menuAction,
			},
			{
				Name:   "run",
				Usage:  "Run the tracker in the foreground, printing the menubar summary",
				Action: runAction,
			},
			{
				Name:   "whoami",
				Usage:  "Show the account the stored session authenticates as",
				Action: whoamiAction,
			},
			{
				Name:   "edit-config",
				Usage:  "Edit the configuration file",
				Action: editConfigAction,
			},
		},
		Flags: []cli.Flag{
			noColorFlag,
		},
		Before: beforeAction,
	}

	return punchApp
}
