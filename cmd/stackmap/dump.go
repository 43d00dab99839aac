// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/aotkit/stackmap"
	"github.com/spf13/cobra"
)

var dumpOffset int

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "print the annotated bit layout of one CodeInfo",
	Long: `
Decodes the CodeInfo at --offset within the file and prints its header
fields, table shapes and row contents. The file may be a standalone blob or
a dedupe session buffer; back-references are resolved either way.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return runDecoding(func() error {
			fmt.Fprint(cmd.OutOrStdout(), stackmap.Dump(data, dumpOffset))
			return nil
		})
	},
}
