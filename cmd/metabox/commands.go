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
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/onflow/metabox"
)

const (
	flagAsset  = "asset"
	flagSender = "sender"
	flagFile   = "file"
)

type rentView struct {
	Sign   string `json:"sign"`
	Amount uint64 `json:"amount"`
}

func newRentView(d metabox.RentDelta) *rentView {
	return &rentView{Sign: d.Sign.String(), Amount: d.Amount}
}

type resultView struct {
	Method  string    `json:"method"`
	AssetID uint64    `json:"asset_id,omitempty"`
	Rent    *rentView `json:"rent,omitempty"`
}

type batchView struct {
	BatchID string       `json:"batch_id"`
	Results []resultView `json:"results"`
}

func newBatchView(res metabox.BatchResult) batchView {
	view := batchView{BatchID: res.BatchID.String()}
	for _, r := range res.Results {
		rv := resultView{Method: r.Method.String(), AssetID: uint64(r.AssetID)}
		if r.RentDelta != nil {
			rv.Rent = newRentView(*r.RentDelta)
		}
		view.Results = append(view.Results, rv)
	}
	return view
}

type headerView struct {
	Short             bool   `json:"short"`
	ReversibleFlags   uint8  `json:"reversible_flags"`
	IrreversibleFlags uint8  `json:"irreversible_flags"`
	Immutable         bool   `json:"immutable"`
	MetadataHash      string `json:"metadata_hash"`
	LastModifiedRound uint64 `json:"last_modified_round"`
	DeprecatedBy      uint64 `json:"deprecated_by,omitempty"`
}

func newHeaderView(h metabox.Header) headerView {
	return headerView{
		Short:             h.IsShort(),
		ReversibleFlags:   h.ReversibleFlags.ToByte(),
		IrreversibleFlags: h.IrreversibleFlags.ToByte(),
		Immutable:         h.IsImmutable(),
		MetadataHash:      hex.EncodeToString(h.MetadataHash[:]),
		LastModifiedRound: h.LastModifiedRound,
		DeprecatedBy:      h.DeprecatedBy,
	}
}

func assetFlag(cmd *cobra.Command) metabox.AssetID {
	id, _ := cmd.Flags().GetUint64(flagAsset)
	return metabox.AssetID(id)
}

func addAssetFlag(cmd *cobra.Command) {
	cmd.Flags().Uint64(flagAsset, 0, "asset id")
	_ = cmd.MarkFlagRequired(flagAsset)
}

func addSenderFlag(cmd *cobra.Command) {
	cmd.Flags().String(flagSender, "", "sender address (default is the asset manager)")
}

// submit builds a batch with the writer of the command's sender and
// executes it.
func submit(cmd *cobra.Command, e *env, build func(w *metabox.Writer) (*metabox.Batch, error)) error {
	sender, _ := cmd.Flags().GetString(flagSender)

	w, err := e.writer(cmd.Context(), sender, assetFlag(cmd))
	if err != nil {
		return err
	}

	b, err := build(w)
	if err != nil {
		return err
	}

	res, err := w.Submit(cmd.Context(), e.registry, b)
	if err != nil {
		return err
	}

	e.log.Info("batch executed", zap.String("batch_id", res.BatchID.String()), zap.Int("operations", len(b.Operations)))
	return printJSON(cmd.OutOrStdout(), newBatchView(res))
}

func newParamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "Print registry parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), metabox.DefaultParameters())
		},
	}
}

func newRentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rent",
		Short: "Print rent deltas for a body size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size, _ := cmd.Flags().GetInt("size")
			oldSize, _ := cmd.Flags().GetInt("old-size")

			params := metabox.DefaultParameters()
			if size < 0 || size > params.MaxMetadataSize {
				return metabox.NewSizeExceededError(metabox.SizeLimitMaxMetadata, uint64(max(size, 0)), uint64(params.MaxMetadataSize))
			}

			view := map[string]*rentView{
				"create": newRentView(params.CreateDelta(size)),
				"delete": newRentView(params.DeleteDelta(size)),
			}
			if oldSize >= 0 {
				view["resize"] = newRentView(params.ResizeDelta(oldSize, size))
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().Int("size", 0, "body size")
	cmd.Flags().Int("old-size", -1, "current body size for a resize")
	return cmd
}

func newAssetCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage the development asset registry",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Add or overwrite an asset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			assets, err := loadFileAssetRegistry(v.GetString(cfgAssetsPath))
			if err != nil {
				return err
			}

			s, _ := cmd.Flags().GetString("manager")
			manager, err := metabox.ParseAddress(s)
			if err != nil {
				return fmt.Errorf("invalid manager: %w", err)
			}
			name, _ := cmd.Flags().GetString("name")
			url, _ := cmd.Flags().GetString("url")

			assets.put(metabox.AssetInfo{
				ID:      assetFlag(cmd),
				Manager: manager,
				Name:    name,
				URL:     url,
			})
			return assets.save()
		},
	}
	addAssetFlag(add)
	add.Flags().String("manager", "", "manager address")
	add.Flags().String("name", "", "asset name")
	add.Flags().String("url", "", "asset URL")
	_ = add.MarkFlagRequired("manager")

	destroy := &cobra.Command{
		Use:   "destroy",
		Short: "Remove an asset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			assets, err := loadFileAssetRegistry(v.GetString(cfgAssetsPath))
			if err != nil {
				return err
			}
			assets.destroy(assetFlag(cmd))
			return assets.save()
		},
	}
	addAssetFlag(destroy)

	cmd.AddCommand(add, destroy)
	return cmd
}

func newCreateCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the metadata record of an asset",
		Args:  cobra.NoArgs,
		RunE: runInEnv(v, func(cmd *cobra.Command, e *env, _ []string) error {
			path, _ := cmd.Flags().GetString(flagFile)
			body, err := readBody(cmd, path)
			if err != nil {
				return err
			}

			var rev metabox.ReversibleFlags
			rev.ARC20, _ = cmd.Flags().GetBool("arc20")
			rev.ARC62, _ = cmd.Flags().GetBool("arc62")

			var irr metabox.IrreversibleFlags
			irr.ARC3, _ = cmd.Flags().GetBool("arc3")
			irr.ARC89Native, _ = cmd.Flags().GetBool("arc89")
			irr.Immutable, _ = cmd.Flags().GetBool("immutable")

			return submit(cmd, e, func(w *metabox.Writer) (*metabox.Batch, error) {
				return w.BuildCreate(assetFlag(cmd), rev, irr, body)
			})
		}),
	}
	addAssetFlag(cmd)
	addSenderFlag(cmd)
	cmd.Flags().String(flagFile, "-", "metadata file, - for stdin")
	cmd.Flags().Bool("arc20", false, "set ARC-20 flag")
	cmd.Flags().Bool("arc62", false, "set ARC-62 flag")
	cmd.Flags().Bool("arc3", false, "set ARC-3 flag")
	cmd.Flags().Bool("arc89", false, "set ARC-89 native flag")
	cmd.Flags().Bool("immutable", false, "create the record immutable")
	return cmd
}

func newReplaceCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace the metadata body of an asset",
		Args:  cobra.NoArgs,
		RunE: runInEnv(v, func(cmd *cobra.Command, e *env, _ []string) error {
			path, _ := cmd.Flags().GetString(flagFile)
			body, err := readBody(cmd, path)
			if err != nil {
				return err
			}

			return submit(cmd, e, func(w *metabox.Writer) (*metabox.Batch, error) {
				return w.BuildReplace(cmd.Context(), assetFlag(cmd), body)
			})
		}),
	}
	addAssetFlag(cmd)
	addSenderFlag(cmd)
	cmd.Flags().String(flagFile, "-", "metadata file, - for stdin")
	return cmd
}

func newDeleteCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the metadata record of an asset",
		Args:  cobra.NoArgs,
		RunE: runInEnv(v, func(cmd *cobra.Command, e *env, _ []string) error {
			return submit(cmd, e, func(w *metabox.Writer) (*metabox.Batch, error) {
				return w.BuildDelete(assetFlag(cmd))
			})
		}),
	}
	addAssetFlag(cmd)
	addSenderFlag(cmd)
	return cmd
}

func newMigrateCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Mark the record of an asset as served by another registry",
		Args:  cobra.NoArgs,
		RunE: runInEnv(v, func(cmd *cobra.Command, e *env, _ []string) error {
			to, _ := cmd.Flags().GetUint64("to")
			return submit(cmd, e, func(w *metabox.Writer) (*metabox.Batch, error) {
				return w.BuildMigrate(assetFlag(cmd), to)
			})
		}),
	}
	addAssetFlag(cmd)
	addSenderFlag(cmd)
	cmd.Flags().Uint64("to", 0, "successor registry id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newGetCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read and verify the metadata of an asset",
		Args:  cobra.NoArgs,
		RunE: runInEnv(v, func(cmd *cobra.Command, e *env, _ []string) error {
			id := assetFlag(cmd)

			if key, _ := cmd.Flags().GetString("key"); key != "" {
				value, err := e.registry.GetStringByKey(cmd.Context(), id, key)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
				return err
			}

			resolved, err := e.reader.ReadRecord(cmd.Context(), e.registry.ID(), id)
			if err != nil {
				return err
			}
			if resolved.RegistryID != e.registry.ID() {
				e.log.Warn("record is served by another registry", zap.Uint64("registry_id", resolved.RegistryID))
			}

			_, err = cmd.OutOrStdout().Write(resolved.Record.Body)
			return err
		}),
	}
	addAssetFlag(cmd)
	cmd.Flags().String("key", "", "print the string value of a top-level JSON key")
	return cmd
}

func newHeaderCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "header",
		Short: "Print the record header of an asset",
		Args:  cobra.NoArgs,
		RunE: runInEnv(v, func(cmd *cobra.Command, e *env, _ []string) error {
			h, err := e.registry.GetHeader(cmd.Context(), assetFlag(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), newHeaderView(h))
		}),
	}
	addAssetFlag(cmd)
	return cmd
}

func newHashCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the metadata hash of an asset and its page hashes",
		Args:  cobra.NoArgs,
		RunE: runInEnv(v, func(cmd *cobra.Command, e *env, _ []string) error {
			ctx := cmd.Context()
			id := assetFlag(cmd)

			metadataHash, err := e.registry.GetMetadataHash(ctx, id)
			if err != nil {
				return err
			}
			headerHash, err := e.registry.GetHeaderHash(ctx, id)
			if err != nil {
				return err
			}
			pagination, err := e.registry.GetPagination(ctx, id)
			if err != nil {
				return err
			}

			pageHashes := make([]string, 0, pagination.TotalPages)
			for i := 0; i < pagination.TotalPages; i++ {
				h, err := e.registry.GetPageHash(ctx, id, i)
				if err != nil {
					return err
				}
				pageHashes = append(pageHashes, h.String())
			}

			return printJSON(cmd.OutOrStdout(), struct {
				MetadataHash string   `json:"metadata_hash"`
				HeaderHash   string   `json:"header_hash"`
				PageHashes   []string `json:"page_hashes"`
			}{
				MetadataHash: metadataHash.String(),
				HeaderHash:   headerHash.String(),
				PageHashes:   pageHashes,
			})
		}),
	}
	addAssetFlag(cmd)
	return cmd
}

func newPageCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Print one metadata page of an asset",
		Args:  cobra.NoArgs,
		RunE: runInEnv(v, func(cmd *cobra.Command, e *env, _ []string) error {
			index, _ := cmd.Flags().GetInt("index")

			page, err := e.registry.GetMetadata(cmd.Context(), assetFlag(cmd), index)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), struct {
				HasNextPage       bool   `json:"has_next_page"`
				LastModifiedRound uint64 `json:"last_modified_round"`
				Content           []byte `json:"content"`
			}{
				HasNextPage:       page.HasNextPage,
				LastModifiedRound: page.LastModifiedRound,
				Content:           page.Content,
			})
		}),
	}
	addAssetFlag(cmd)
	cmd.Flags().Int("index", 0, "page index")
	return cmd
}

func newURICommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uri [uri]",
		Short: "Print the URI of an asset record, or resolve a URI",
		Args:  cobra.MaximumNArgs(1),
		RunE: runInEnv(v, func(cmd *cobra.Command, e *env, args []string) error {
			if len(args) == 1 {
				resolved, err := e.reader.ResolveURI(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(resolved.Record.Body)
				return err
			}

			uri := e.registry.PartialURI()
			if cmd.Flags().Changed(flagAsset) {
				uri = uri.WithAssetID(assetFlag(cmd))
			}
			if arcs, _ := cmd.Flags().GetUintSlice("compliance"); len(arcs) > 0 {
				c := make(metabox.Compliance, len(arcs))
				for i, arc := range arcs {
					c[i] = uint64(arc)
				}
				uri = uri.WithCompliance(c)
			}

			s, err := uri.Render()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		}),
	}
	cmd.Flags().Uint64(flagAsset, 0, "asset id (default prints the partial URI)")
	cmd.Flags().UintSlice("compliance", nil, "ARC numbers of the URI fragment")
	return cmd
}
