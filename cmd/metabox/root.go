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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "metabox",
		Short: "Development tool for a size-bounded asset metadata registry",
		Long: `metabox operates a metadata registry on a local bolt or leveldb ledger.

Assets are looked up in a JSON file (see "metabox asset add"), so records
can be created, read, migrated and deleted without a network.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadConfig(v, cfgFile)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file")
	cobra.CheckErr(bindPersistentFlags(root, v))

	root.AddCommand(
		newParamsCommand(),
		newRentCommand(),
		newAssetCommand(v),
		newCreateCommand(v),
		newReplaceCommand(v),
		newGetCommand(v),
		newHeaderCommand(v),
		newHashCommand(v),
		newPageCommand(v),
		newDeleteCommand(v),
		newMigrateCommand(v),
		newURICommand(v),
	)

	return root
}

// runInEnv returns a cobra run function executing fn in an opened env.
func runInEnv(v *viper.Viper, fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		e, err := openEnv(v)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, e.close())
		}()
		return fn(cmd, e, args)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readBody reads the body from path, or stdin if path is "-".
func readBody(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read body: %w", err)
	}
	return body, nil
}
