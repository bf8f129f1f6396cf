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

// Package levelledger stores registry cells in a LevelDB database.
package levelledger

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/onflow/metabox"
)

// Cell keys are prefixed so that other data can share the database.
const cellPrefix = 'C'

// ErrReadOnly is returned on writes to a ledger opened read-only.
var ErrReadOnly = errors.New("ledger is read-only")

type cfg struct {
	log      *zap.Logger
	readOnly bool
	sync     bool
}

// Option configures a Ledger.
type Option func(*cfg)

// WithLogger returns option to set the ledger logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithReadOnly returns option to open the database read-only.
func WithReadOnly(readOnly bool) Option {
	return func(c *cfg) {
		c.readOnly = readOnly
	}
}

// WithSync returns option to fsync every update.
func WithSync(sync bool) Option {
	return func(c *cfg) {
		c.sync = sync
	}
}

// Ledger is a metabox.BatchLedger backed by LevelDB.
type Ledger struct {
	*cfg

	db *leveldb.DB
}

var _ metabox.BatchLedger = &Ledger{}

// Open opens or creates the database in directory path.
func Open(path string, opts ...Option) (*Ledger, error) {
	c := &cfg{
		log:  zap.NewNop(),
		sync: true,
	}
	for _, o := range opts {
		o(c)
	}

	db, err := leveldb.OpenFile(path, &opt.Options{
		ErrorIfMissing: c.readOnly,
		ReadOnly:       c.readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("can't open level ledger %s: %w", path, err)
	}

	c.log.Debug("opened level ledger", zap.String("path", path), zap.Bool("read_only", c.readOnly))

	return &Ledger{cfg: c, db: db}, nil
}

func cellKey(key []byte) []byte {
	k := make([]byte, 1+len(key))
	k[0] = cellPrefix
	copy(k[1:], key)
	return k
}

func (l *Ledger) GetCell(key []byte) ([]byte, bool, error) {
	v, err := l.db.Get(cellKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (l *Ledger) writeOptions() *opt.WriteOptions {
	return &opt.WriteOptions{Sync: l.sync}
}

func (l *Ledger) PutCell(key, value []byte) error {
	if l.readOnly {
		return ErrReadOnly
	}
	return l.db.Put(cellKey(key), value, l.writeOptions())
}

func (l *Ledger) DeleteCell(key []byte) error {
	if l.readOnly {
		return ErrReadOnly
	}
	return l.db.Delete(cellKey(key), l.writeOptions())
}

type batchWriter struct {
	batch *leveldb.Batch
}

func (w batchWriter) PutCell(key, value []byte) error {
	w.batch.Put(cellKey(key), value)
	return nil
}

func (w batchWriter) DeleteCell(key []byte) error {
	w.batch.Delete(cellKey(key))
	return nil
}

// Update collects writes of fn in a leveldb.Batch and writes it atomically.
func (l *Ledger) Update(fn func(metabox.LedgerWriter) error) error {
	if l.readOnly {
		return ErrReadOnly
	}

	batch := new(leveldb.Batch)
	err := fn(batchWriter{batch: batch})
	if err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	return l.db.Write(batch, l.writeOptions())
}

// ForEach calls fn for every cell in key order. Key and value are only
// valid during the call.
func (l *Ledger) ForEach(fn func(key, value []byte) error) (err error) {
	iter := l.db.NewIterator(util.BytesPrefix([]byte{cellPrefix}), nil)
	defer func() {
		iter.Release()
		err = multierr.Append(err, iter.Error())
	}()

	for iter.Next() {
		err = fn(iter.Key()[1:], iter.Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of cells.
func (l *Ledger) Len() (int, error) {
	n := 0
	err := l.ForEach(func([]byte, []byte) error {
		n++
		return nil
	})
	return n, err
}

// Close closes the database.
func (l *Ledger) Close() error {
	err := l.db.Close()
	l.log.Debug("closed level ledger", zap.Error(err))
	return err
}
