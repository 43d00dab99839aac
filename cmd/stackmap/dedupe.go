// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/aotkit/stackmap"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var dedupeOutput string

var dedupeCmd = &cobra.Command{
	Use:   "dedupe <file>...",
	Short: "run a dedupe session over standalone CodeInfo blobs",
	Long: `
Reads each file as one standalone CodeInfo blob, dedupes them all into a
single session buffer in argument order, and prints the offset and size of
every method's encoding along with session statistics. With --out, the
session buffer is written to the given path; the printed offsets address
into it.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deduper := stackmap.NewTableDeduper()
		deduper.ReserveDedupeBuffer(len(args))

		offsets := make([]int, len(args))
		err := runDecoding(func() error {
			for i, path := range args {
				blob, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				offsets[i] = deduper.Dedupe(blob)
			}
			return nil
		})
		if err != nil {
			return err
		}

		out := deduper.Bytes()
		tbl := tablewriter.NewWriter(cmd.OutOrStdout())
		tbl.SetHeader([]string{"File", "Offset", "Size"})
		for i, path := range args {
			end := len(out)
			if i+1 < len(args) {
				end = offsets[i+1]
			}
			tbl.Append([]string{path, fmt.Sprintf("%d", offsets[i]), fmt.Sprintf("%d", end-offsets[i])})
		}
		tbl.Render()
		fmt.Fprintln(cmd.OutOrStdout(), deduper.Stats())

		if dedupeOutput != "" {
			return os.WriteFile(dedupeOutput, out, 0o644)
		}
		return nil
	},
}
