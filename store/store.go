// Package store connects to the data store and manages the authoritative
// timer list.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/punchclock/punch/internal/models"
	"github.com/punchclock/punch/internal/timeutil"
)

const timersBucket = "timers"

var (
	errPunchRunning = errors.New(
		"is punch already running? Only one instance can be active at a time",
	)

	// ErrTimerNotFound is returned when no timer exists with the given id.
	ErrTimerNotFound = errors.New("timer not found")
)

var _ DB = (*Client)(nil)

// Client is a BoltDB-backed timer store. Timers are keyed by a monotonic
// sequence number so iteration order is insertion order.
type Client struct {
	db *bolt.DB

	mu   sync.Mutex
	subs []chan struct{}

	// now is swappable for tests.
	now func() time.Time
}

// NewClient returns a wrapper to a BoltDB connection.
func NewClient(dbPath string) (*Client, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err = tx.CreateBucketIfNotExists([]byte(timersBucket))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		db:  db,
		now: time.Now,
	}, nil
}

// openDB creates or opens a database and locks it.
func openDB(dbPath string) (*bolt.DB, error) {
	var fileMode fs.FileMode = 0o600

	db, err := bolt.Open(
		dbPath,
		fileMode,
		&bolt.Options{Timeout: 1 * time.Second},
	)
	if err != nil {
		if errors.Is(err, bolt.ErrDatabaseNotOpen) ||
			errors.Is(err, bolt.ErrTimeout) {
			return nil, errPunchRunning
		}

		return nil, err
	}

	return db, nil
}

func (c *Client) Timers() ([]*models.Timer, error) {
	var timers []*models.Timer

	err := c.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket([]byte(timersBucket)).Cursor()

		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			var t models.Timer

			err := json.Unmarshal(v, &t)
			if err != nil {
				return err
			}

			timers = append(timers, &t)
		}

		return nil
	})

	return timers, err
}

func (c *Client) Add(key, summary string) (*models.Timer, error) {
	timer := &models.Timer{
		Key:       key,
		Summary:   summary,
		StartTime: c.now(),
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(timersBucket))

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		timer.ID = strconv.FormatUint(seq, 10)

		value, err := json.Marshal(timer)
		if err != nil {
			return err
		}

		return b.Put(seqKey(seq), value)
	})
	if err != nil {
		return nil, err
	}

	c.notify()

	return timer, nil
}

func (c *Client) SetPaused(id string, paused bool) error {
	err := c.update(id, func(t *models.Timer) {
		if t.Paused == paused {
			return
		}

		if paused {
			t.PreviouslyElapsed = timeutil.Elapsed(
				t.StartTime,
				t.PreviouslyElapsed,
				t.Paused,
				c.now(),
			)
		} else {
			t.StartTime = c.now()
		}

		t.Paused = paused
	})
	if err != nil {
		return err
	}

	c.notify()

	return nil
}

func (c *Client) SetDuration(id string, d time.Duration) error {
	err := c.update(id, func(t *models.Timer) {
		t.PreviouslyElapsed = d
		t.StartTime = c.now()
	})
	if err != nil {
		return err
	}

	c.notify()

	return nil
}

func (c *Client) SetComment(id, comment string) error {
	err := c.update(id, func(t *models.Timer) {
		t.Comment = comment
	})
	if err != nil {
		return err
	}

	c.notify()

	return nil
}

func (c *Client) Remove(id string) error {
	seq, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTimerNotFound, id)
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(timersBucket))

		if b.Get(seqKey(seq)) == nil {
			return fmt.Errorf("%w: %s", ErrTimerNotFound, id)
		}

		return b.Delete(seqKey(seq))
	})
	if err != nil {
		return err
	}

	c.notify()

	return nil
}

func (c *Client) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	return ch
}

func (c *Client) Close() error {
	c.mu.Lock()
	for _, ch := range c.subs {
		close(ch)
	}

	c.subs = nil
	c.mu.Unlock()

	return c.db.Close()
}

// update applies fn to the stored timer with the given id and writes the
// result back in the same transaction.
func (c *Client) update(id string, fn func(*models.Timer)) error {
	seq, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTimerNotFound, id)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(timersBucket))

		value := b.Get(seqKey(seq))
		if value == nil {
			return fmt.Errorf("%w: %s", ErrTimerNotFound, id)
		}

		var t models.Timer

		err := json.Unmarshal(value, &t)
		if err != nil {
			return err
		}

		fn(&t)

		updated, err := json.Marshal(&t)
		if err != nil {
			return err
		}

		return b.Put(seqKey(seq), updated)
	})
}

// notify signals all subscribers without blocking. A subscriber that has
// not drained its channel already has a pending signal.
func (c *Client) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)

	return key
}
