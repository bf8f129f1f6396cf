/*
 * Metabox - Size-bounded Asset Metadata Registry
 *
 * Copyright Flow Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package boltledger stores registry cells in a bbolt database.
package boltledger

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/onflow/metabox"
)

var cellsBucketName = []byte("cells")

// ErrReadOnly is returned on writes to a ledger opened read-only.
var ErrReadOnly = errors.New("ledger is read-only")

type cfg struct {
	log        *zap.Logger
	permission os.FileMode
	readOnly   bool
	noSync     bool
	timeout    time.Duration
}

// Option configures a Ledger.
type Option func(*cfg)

func defaultCfg() *cfg {
	return &cfg{
		log:        zap.NewNop(),
		permission: 0o600,
		timeout:    time.Second,
	}
}

// WithLogger returns option to set the ledger logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithPermission returns option to set the database file permission.
func WithPermission(perm os.FileMode) Option {
	return func(c *cfg) {
		c.permission = perm
	}
}

// WithReadOnly returns option to open the database read-only.
func WithReadOnly(readOnly bool) Option {
	return func(c *cfg) {
		c.readOnly = readOnly
	}
}

// WithNoSync returns option to skip fsync after every update.
// Close syncs the database once.
func WithNoSync(noSync bool) Option {
	return func(c *cfg) {
		c.noSync = noSync
	}
}

// Ledger is a metabox.BatchLedger backed by a single bbolt bucket.
type Ledger struct {
	*cfg

	db *bbolt.DB
}

var _ metabox.BatchLedger = &Ledger{}

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*Ledger, error) {
	c := defaultCfg()
	for _, opt := range opts {
		opt(c)
	}

	err := os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return nil, fmt.Errorf("can't create dir for ledger %s: %w", path, err)
	}

	db, err := bbolt.Open(path, c.permission, &bbolt.Options{
		Timeout:  c.timeout,
		ReadOnly: c.readOnly,
		NoSync:   c.noSync,
	})
	if err != nil {
		return nil, fmt.Errorf("can't open bolt ledger %s: %w", path, err)
	}

	if !c.readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(cellsBucketName)
			return err
		})
		if err != nil {
			return nil, multierr.Append(
				fmt.Errorf("can't create cells bucket: %w", err),
				db.Close(),
			)
		}
	}

	c.log.Debug("opened bolt ledger", zap.String("path", path), zap.Bool("read_only", c.readOnly))

	return &Ledger{cfg: c, db: db}, nil
}

func (l *Ledger) GetCell(key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(cellsBucketName)
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v == nil {
			return nil
		}
		found = true
		value = bytes.Clone(v)
		return nil
	})

	return value, found, err
}

func (l *Ledger) PutCell(key, value []byte) error {
	return l.Update(func(w metabox.LedgerWriter) error {
		return w.PutCell(key, value)
	})
}

func (l *Ledger) DeleteCell(key []byte) error {
	return l.Update(func(w metabox.LedgerWriter) error {
		return w.DeleteCell(key)
	})
}

type bucketWriter struct {
	b *bbolt.Bucket
}

func (w bucketWriter) PutCell(key, value []byte) error {
	// bbolt requires non-nil values.
	if value == nil {
		value = []byte{}
	}
	return w.b.Put(key, value)
}

func (w bucketWriter) DeleteCell(key []byte) error {
	return w.b.Delete(key)
}

// Update applies writes of fn in a single bbolt transaction.
func (l *Ledger) Update(fn func(metabox.LedgerWriter) error) error {
	if l.readOnly {
		return ErrReadOnly
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		return fn(bucketWriter{b: tx.Bucket(cellsBucketName)})
	})
}

// ForEach calls fn for every cell in key order. Key and value are only
// valid during the call.
func (l *Ledger) ForEach(fn func(key, value []byte) error) error {
	return l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(cellsBucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(fn)
	})
}

// Len returns the number of cells.
func (l *Ledger) Len() (int, error) {
	var n int
	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(cellsBucketName)
		if b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Close syncs and closes the database.
func (l *Ledger) Close() error {
	var err error
	if l.noSync && !l.readOnly {
		err = l.db.Sync()
	}
	err = multierr.Append(err, l.db.Close())
	l.log.Debug("closed bolt ledger", zap.Error(err))
	return err
}
