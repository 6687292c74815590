// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// moecachedump inspects a MoE router's persisted Classification Cache and
// bias-vector snapshot.
//
// The snapshot store persists the Classification Cache's LRU entries and the
// per-expert adaptive bias vector in BadgerDB between process restarts, so a
// restarted router can warm-start instead of running cold (see
// internal/moe/snapshot_store.go). This tool opens the snapshot database
// read-only and prints a human-readable summary: cached routing
// fingerprints, the experts each activated, TTL remaining, and the current
// bias vector.
//
// Usage:
//
//	moecachedump [--path /path/to/moe/snapshot/db]
//
// If --path is not given, reads MOE_SNAPSHOT_DIR from the environment,
// falling back to ~/.aleutian/cache/moe/.
package main

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/aleutian/moerouter/internal/moe"
)

// snapshotKey must match internal/moe/snapshot_store.go's snapshotKey exactly.
const snapshotKey = "moe/snapshot/v1"

func main() {
	var dbPath string

	root := &cobra.Command{
		Use:   "moecachedump",
		Short: "Inspect a persisted MoE router classification cache / bias snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(dbPath)
		},
	}
	root.Flags().StringVar(&dbPath, "path", "", "Path to MoE snapshot BadgerDB directory (overrides MOE_SNAPSHOT_DIR env var)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "moecachedump: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath string) error {
	if dbPath == "" {
		dbPath = os.Getenv("MOE_SNAPSHOT_DIR")
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".aleutian", "cache", "moe")
	}

	fmt.Printf("MoE snapshot path: %s\n", dbPath)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Snapshot directory does not exist. No router has persisted a snapshot yet.")
		return nil
	}

	opts := dgbadger.DefaultOptions(dbPath).WithLogger(nil).WithReadOnly(true)
	db, err := dgbadger.Open(opts)
	if err != nil {
		return fmt.Errorf("open BadgerDB at %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	var raw []byte
	var expiresAt time.Time
	var hasExpiry bool

	err = db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errSnapshotMiss
		}
		if err != nil {
			return fmt.Errorf("get snapshot key: %w", err)
		}
		if exp := item.ExpiresAt(); exp > 0 {
			hasExpiry = true
			expiresAt = time.Unix(int64(exp), 0)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, errSnapshotMiss) {
		fmt.Println("\nNo snapshot found at this key. The router has not yet persisted a snapshot,")
		fmt.Println("or it expired.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read BadgerDB: %w", err)
	}

	var snap moe.RouterSnapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	fmt.Println(strings.Repeat("─", 72))
	if hasExpiry {
		remaining := time.Until(expiresAt)
		if remaining < 0 {
			fmt.Printf("TTL: EXPIRED (%s ago)\n", (-remaining).Round(time.Second))
		} else {
			fmt.Printf("TTL: %s remaining (expires %s)\n", remaining.Round(time.Second), expiresAt.Format(time.RFC3339))
		}
	} else {
		fmt.Println("TTL: no expiry set")
	}
	fmt.Printf("Raw size: %d bytes\n", len(raw))

	fmt.Printf("\nCached routings (%d):\n", len(snap.Routings))
	for i, r := range snap.Routings {
		experts := make([]string, len(r.Experts))
		for j, e := range r.Experts {
			experts[j] = string(e)
		}
		fmt.Printf("  [%d] fingerprint=%s experts=%s tool_tokens=%d truncated=%v\n",
			i+1, r.Fingerprint, strings.Join(experts, ","), r.Result.TotalToolTokens, r.Result.Truncated)
	}

	type biasRow struct {
		expert moe.ExpertID
		bias   float64
	}
	rows := make([]biasRow, 0, len(snap.Bias))
	for id, b := range snap.Bias {
		rows = append(rows, biasRow{expert: id, bias: b})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].expert < rows[j].expert })

	fmt.Printf("\nBias vector (%d experts):\n", len(rows))
	for _, row := range rows {
		fmt.Printf("  %-16s % .3f\n", row.expert, row.bias)
	}

	return nil
}

var errSnapshotMiss = errors.New("snapshot miss")
