// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Command stackmap inspects and deduplicates CodeInfo blobs: the per-method
// stack map metadata emitted by the code generator. It is a development
// harness around the stackmap package, not part of the runtime path.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stackmap [command] (flags)",
	Short: "stack map metadata introspection tool",
	Long:  ``,
}

func main() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		dumpCmd,
		dedupeCmd,
	)
	dumpCmd.Flags().IntVar(
		&dumpOffset, "offset", 0, "byte offset of the CodeInfo within the file")
	dedupeCmd.Flags().StringVarP(
		&dedupeOutput, "out", "o", "", "path to write the deduplicated session buffer to")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runDecoding invokes fn, converting decode panics on malformed input into
// errors. The library treats malformed metadata as a programming error
// because its inputs come from the paired encoder; files read from disk get
// no such guarantee.
func runDecoding(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("malformed input: %v", r)
		}
	}()
	return fn()
}
