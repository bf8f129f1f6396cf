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
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/onflow/metabox"
	"github.com/onflow/metabox/test_utils"
)

const maxStatusLength = 128

type Status interface {
	Write()
}

func writeStatus(status string) {
	// Clear old status
	s := fmt.Sprintf("\r%s\r", strings.Repeat(" ", maxStatusLength))
	_, _ = io.WriteString(os.Stdout, s)

	// Write new status
	_, _ = io.WriteString(os.Stdout, status)
}

func updateStatus(ctx context.Context, status Status) {

	status.Write()

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status.Write()

		case <-ctx.Done():
			status.Write()
			fmt.Fprintf(os.Stdout, "\n")
			return
		}
	}
}

var (
	flagAssets        uint64
	flagMaxSize       int
	flagCommitWorkers int
	flagDuration      time.Duration
	flagHash          string
)

func main() {

	var seedHex string
	var verbose bool

	flag.Uint64Var(&flagAssets, "assets", 100, "number of assets")
	flag.IntVar(&flagMaxSize, "maxsize", metabox.DefaultMaxMetadataSize, "max metadata size")
	flag.IntVar(&flagCommitWorkers, "workers", 1, "number of commit encoders")
	flag.DurationVar(&flagDuration, "duration", 0, "stop after duration (default runs until interrupted)")
	flag.StringVar(&flagHash, "hash", metabox.HashAlgorithmSHA512_256, "metadata hash algorithm")
	flag.StringVar(&seedHex, "seed", "", "seed for prng in hex (default is Unix time)")
	flag.BoolVar(&verbose, "v", false, "log batches")

	flag.Parse()

	var seed int64
	if len(seedHex) != 0 {
		var err error
		seed, err = strconv.ParseInt(strings.ReplaceAll(seedHex, "0x", ""), 16, 64)
		if err != nil {
			panic("Failed to parse seed flag (hex string)")
		}
	}

	r = newRand(seed)

	if flagAssets == 0 || flagMaxSize < 0 || flagMaxSize > metabox.DefaultMaxMetadataSize {
		fmt.Fprintf(os.Stderr, "Please specify at least one asset and a max size in [0, %d]\n", metabox.DefaultMaxMetadataSize)
		os.Exit(2)
	}

	log := zap.NewNop()
	if verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %s\n", err)
			os.Exit(1)
		}
	}

	hasher, err := metabox.NewHasher(flagHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create hasher: %s\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if flagDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, flagDuration)
		defer cancel()
	}

	ledger := test_utils.NewInMemLedger()
	clock := test_utils.NewManualClock(1)

	env, err := newStressEnv(ledger, clock, hasher, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create registry: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting registry stress test, %d assets, max size %d, %d commit workers\n", flagAssets, flagMaxSize, flagCommitWorkers)

	status := newRegistryStatus(ledger)

	done := make(chan struct{})
	go func() {
		updateStatus(ctx, status)
		close(done)
	}()

	err = testRegistry(ctx, env, status)
	// Batches canceled by interrupt or timeout fail with the context error.
	stopped := ctx.Err() != nil
	cancel()
	<-done

	if err != nil && !stopped {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
