package punch

import "errors"

var (
	errTicketKeyRequired = errors.New("a ticket key is required")

	errTimerIDRequired = errors.New("a timer id is required")

	errDurationRequired = errors.New(
		"a duration value is required, e.g. 25m or 1h30m",
	)

	errHostRequired = errors.New(
		"no issue tracker host configured: pass --host or set jira.host in the config file",
	)
)
