// Package keyring stores the single service credential used to authenticate
// against the remote issue tracker.
package keyring

import (
	"errors"

	"github.com/punchclock/punch/internal/models"
)

// ErrNotFound is returned by Find when no credential has been saved for the
// given service identity. This is the expected state for a new user.
var ErrNotFound = errors.New("no stored credential found")

// Store is the credential store adapter. Implementations hold the only
// persistent copy of the credential; the gateway keeps the live copy.
type Store interface {
	// Find returns the credential saved for the service identity, or
	// ErrNotFound.
	Find(service string) (*models.Credential, error)
	// Save persists the credential for the service identity, replacing
	// any previous one.
	Save(service, account, secret string) error
}
