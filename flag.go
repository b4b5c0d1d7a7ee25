package punch

import "github.com/urfave/cli/v2"

var (
	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable coloured output",
	}

	hostFlag = &cli.StringFlag{
		Name:  "host",
		Usage: "The issue tracker host, e.g. mycompany.atlassian.net. Overrides jira.host from the config file",
	}

	summaryFlag = &cli.StringFlag{
		Name:    "summary",
		Aliases: []string{"s"},
		Usage:   "Ticket summary to display. Fetched from the issue tracker when omitted",
	}

	commentFlag = &cli.StringFlag{
		Name:    "comment",
		Aliases: []string{"m"},
		Usage:   "Work log comment. Skips the interactive comment prompt",
	}

	noCommentFlag = &cli.BoolFlag{
		Name:  "no-comment",
		Usage: "Post without a comment even when the comment workflow is enabled",
	}
)
