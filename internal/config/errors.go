package config

import "errors"

var errInvalidTimeout = errors.New(
	"settings.request_timeout must be a positive duration",
)
