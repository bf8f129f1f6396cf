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

package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/onflow/metabox"
	"github.com/onflow/metabox/ledger/boltledger"
	"github.com/onflow/metabox/ledger/levelledger"
)

type ledger interface {
	metabox.BatchLedger
	Close() error
}

// env is what commands operate on.
type env struct {
	log      *zap.Logger
	ledger   ledger
	assets   *fileAssetRegistry
	registry *metabox.Registry
	reader   *metabox.Reader
}

func openLedger(v *viper.Viper, log *zap.Logger) (ledger, error) {
	path := v.GetString(cfgDBPath)

	switch engine := v.GetString(cfgDBEngine); engine {
	case engineBolt:
		return boltledger.Open(path, boltledger.WithLogger(log))
	case engineLevelDB:
		return levelledger.Open(path, levelledger.WithLogger(log))
	default:
		return nil, fmt.Errorf("unknown %s %q", cfgDBEngine, engine)
	}
}

func openEnv(v *viper.Viper) (_ *env, err error) {
	log, err := newLogger(v.GetString(cfgLogLevel))
	if err != nil {
		return nil, err
	}

	hasher, err := metabox.NewHasher(v.GetString(cfgHashAlgorithm))
	if err != nil {
		return nil, err
	}

	var address metabox.Address
	if s := v.GetString(cfgRegistryAddress); s != "" {
		address, err = metabox.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", cfgRegistryAddress, err)
		}
	}

	assets, err := loadFileAssetRegistry(v.GetString(cfgAssetsPath))
	if err != nil {
		return nil, err
	}

	l, err := openLedger(v, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, l.Close())
		}
	}()

	registry, err := metabox.NewRegistry(
		v.GetUint64(cfgRegistryID),
		address,
		metabox.NewLedgerBaseStorage(l),
		// Each command runs in its own process, so cached managers can't go stale.
		metabox.NewCachedAssetRegistry(assets, metabox.DefaultAssetCacheExpiration),
		metabox.WithHasher(hasher),
		metabox.WithNetAuth(v.GetString(cfgRegistryNetAuth)),
		metabox.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	reader, err := metabox.NewReader(
		metabox.NewSourceMap(registry),
		metabox.WithReaderHasher(hasher),
		metabox.WithReaderLogger(log),
	)
	if err != nil {
		return nil, err
	}

	return &env{
		log:      log,
		ledger:   l,
		assets:   assets,
		registry: registry,
		reader:   reader,
	}, nil
}

// writer returns a writer for sender, or for the manager of asset id
// when sender is empty.
func (e *env) writer(ctx context.Context, sender string, id metabox.AssetID) (*metabox.Writer, error) {
	var address metabox.Address
	if sender != "" {
		var err error
		address, err = metabox.ParseAddress(sender)
		if err != nil {
			return nil, fmt.Errorf("invalid sender: %w", err)
		}
	} else {
		info, err := e.assets.LookupAsset(ctx, id)
		if err != nil {
			return nil, err
		}
		address = info.Manager
	}
	return metabox.NewWriter(e.registry.Parameters(), e.registry.Address(), address, e.registry, metabox.WithWriterLogger(e.log)), nil
}

func (e *env) close() error {
	// Sync errors of console loggers are expected.
	_ = e.log.Sync()
	return e.ledger.Close()
}
