package keyring

import (
	"encoding/json"
	"errors"
	"io/fs"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/punchclock/punch/internal/models"
)

const credentialsBucket = "credentials"

var errKeyringLocked = errors.New(
	"credential store is locked by another punch instance",
)

var _ Store = (*FileStore)(nil)

// FileStore is a Store backed by a BoltDB file. It stands in for a platform
// keychain so the helper works out of the box on any system.
type FileStore struct {
	db *bolt.DB
}

// NewFileStore creates or opens the credential database at the given path.
func NewFileStore(path string) (*FileStore, error) {
	var fileMode fs.FileMode = 0o600

	db, err := bolt.Open(path, fileMode, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		if errors.Is(err, bolt.ErrDatabaseNotOpen) ||
			errors.Is(err, bolt.ErrTimeout) {
			return nil, errKeyringLocked
		}

		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err = tx.CreateBucketIfNotExists([]byte(credentialsBucket))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &FileStore{db: db}, nil
}

func (f *FileStore) Find(service string) (*models.Credential, error) {
	var cred models.Credential

	err := f.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(credentialsBucket)).Get([]byte(service))
		if len(b) == 0 {
			return ErrNotFound
		}

		return json.Unmarshal(b, &cred)
	})
	if err != nil {
		return nil, err
	}

	return &cred, nil
}

func (f *FileStore) Save(service, account, secret string) error {
	cred := models.Credential{
		Service: service,
		Account: account,
		Secret:  secret,
	}

	value, err := json.Marshal(&cred)
	if err != nil {
		return err
	}

	return f.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(credentialsBucket)).Put([]byte(service), value)
	})
}

// Close ends the database connection.
func (f *FileStore) Close() error {
	return f.db.Close()
}
