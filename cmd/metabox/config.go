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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config keys. Every key can be set in the config file, as a flag of
// the same name or as METABOX_<KEY> with dots replaced by underscores.
const (
	cfgDBPath          = "db.path"
	cfgDBEngine        = "db.engine"
	cfgAssetsPath      = "assets.path"
	cfgRegistryID      = "registry.id"
	cfgRegistryAddress = "registry.address"
	cfgRegistryNetAuth = "registry.netauth"
	cfgLogLevel        = "log.level"
	cfgHashAlgorithm   = "hash.algorithm"

	envPrefix = "METABOX"
)

const (
	engineBolt    = "bolt"
	engineLevelDB = "leveldb"
)

func bindPersistentFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.PersistentFlags()

	flags.String(cfgDBPath, "metabox.db", "ledger database path")
	flags.String(cfgDBEngine, engineBolt, "ledger database engine (bolt|leveldb)")
	flags.String(cfgAssetsPath, "assets.json", "development asset registry file")
	flags.Uint64(cfgRegistryID, 1, "registry id")
	flags.String(cfgRegistryAddress, "", "registry account address receiving rent")
	flags.String(cfgRegistryNetAuth, "", "network authority of registry URIs, e.g. net:testnet")
	flags.String(cfgLogLevel, "warn", "log level")
	flags.String(cfgHashAlgorithm, "sha512_256", "metadata hash algorithm")

	for _, key := range []string{
		cfgDBPath,
		cfgDBEngine,
		cfgAssetsPath,
		cfgRegistryID,
		cfgRegistryAddress,
		cfgRegistryNetAuth,
		cfgLogLevel,
		cfgHashAlgorithm,
	} {
		err := v.BindPFlag(key, flags.Lookup(key))
		if err != nil {
			return fmt.Errorf("can't bind flag %s: %w", key, err)
		}
	}
	return nil
}

// loadConfig reads the config file, if any, and environment variables.
func loadConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return nil
	}

	v.SetConfigFile(cfgFile)
	err := v.ReadInConfig()
	if err != nil {
		return fmt.Errorf("can't read config file %s: %w", cfgFile, err)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", cfgLogLevel, err)
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl == zapcore.DebugLevel {
		c.Development = true
	}

	return c.Build()
}
