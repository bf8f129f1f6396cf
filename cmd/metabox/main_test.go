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
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/metabox"
)

type cliFixture struct {
	dir     string
	engine  string
	manager metabox.Address
}

func (f *cliFixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	cmd := newRootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args,
		"--"+cfgDBPath, filepath.Join(f.dir, "ledger"),
		"--"+cfgDBEngine, f.engine,
		"--"+cfgAssetsPath, filepath.Join(f.dir, "assets.json"),
		"--"+cfgRegistryID, "752790676",
		"--"+cfgRegistryNetAuth, "net:testnet",
	))

	err := cmd.Execute()
	return out.String(), err
}

func TestCLI(t *testing.T) {
	for _, engine := range []string{engineBolt, engineLevelDB} {
		t.Run(engine, func(t *testing.T) {
			f := &cliFixture{
				dir:     t.TempDir(),
				engine:  engine,
				manager: metabox.Address{0xbb, 0x02},
			}

			_, err := f.run(t, "", "asset", "add", "--asset", "1001", "--manager", f.manager.String(), "--name", "token@arc3")
			require.NoError(t, err)

			body := `{"name":"cli","decimals":2}`
			out, err := f.run(t, body, "create", "--asset", "1001", "--arc3")
			require.NoError(t, err)

			var created batchView
			require.NoError(t, json.Unmarshal([]byte(out), &created))
			require.Equal(t, 1, len(created.Results))
			require.Equal(t, "create_metadata", created.Results[0].Method)
			require.Equal(t, metabox.DefaultParameters().CreateDelta(len(body)).Amount, created.Results[0].Rent.Amount)

			out, err = f.run(t, "", "get", "--asset", "1001")
			require.NoError(t, err)
			require.Equal(t, body, out)

			out, err = f.run(t, "", "get", "--asset", "1001", "--key", "name")
			require.NoError(t, err)
			require.Equal(t, "cli\n", out)

			out, err = f.run(t, "", "header", "--asset", "1001")
			require.NoError(t, err)
			var header headerView
			require.NoError(t, json.Unmarshal([]byte(out), &header))
			require.True(t, header.Short)
			require.Equal(t, uint8(0x01), header.IrreversibleFlags)

			out, err = f.run(t, "", "hash", "--asset", "1001")
			require.NoError(t, err)
			require.Contains(t, out, header.MetadataHash)

			out, err = f.run(t, "", "uri", "--asset", "1001")
			require.NoError(t, err)
			require.Equal(t, "algorand://net:testnet/app/752790676?box=AAAAAAAAA-k%3D\n", out)

			out, err = f.run(t, "", "uri", strings.TrimSpace(out))
			require.NoError(t, err)
			require.Equal(t, body, out)

			_, err = f.run(t, "", "create", "--asset", "1001")
			var existsErr *metabox.AlreadyExistsError
			require.ErrorAs(t, err, &existsErr)

			_, err = f.run(t, "", "delete", "--asset", "1001", "--sender", metabox.Address{0xcc}.String())
			var unauthorizedErr *metabox.UnauthorizedError
			require.ErrorAs(t, err, &unauthorizedErr)

			_, err = f.run(t, "", "delete", "--asset", "1001")
			require.NoError(t, err)

			_, err = f.run(t, "", "header", "--asset", "1001")
			var notFoundErr *metabox.NotFoundError
			require.ErrorAs(t, err, &notFoundErr)
		})
	}
}

func TestCLIRent(t *testing.T) {
	f := &cliFixture{dir: t.TempDir(), engine: engineBolt}

	out, err := f.run(t, "", "rent", "--size", "300", "--old-size", "100")
	require.NoError(t, err)

	var view map[string]rentView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Equal(t, uint64(80000), view["resize"].Amount)
	require.Equal(t, view["create"].Amount, view["delete"].Amount)

	_, err = f.run(t, "", "rent", "--size", "40000")
	require.True(t, metabox.IsSizeExceededError(err, metabox.SizeLimitMaxMetadata))
}

func TestCLIUnknownEngine(t *testing.T) {
	f := &cliFixture{dir: t.TempDir(), engine: "sqlite"}

	_, err := f.run(t, "", "header", "--asset", "1")
	require.ErrorContains(t, err, "unknown db.engine")
}
