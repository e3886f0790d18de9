// Copyright (c) 2024 The Corrosion Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	corrosion "github.com/y1yang0/corrosion"
	"github.com/y1yang0/corrosion/internal/jitmem"
)

// newTestCmd builds the `test [path…]` runner: it discovers every .c
// file beneath each path recursively, sorts them lexicographically,
// compiles and invokes main for each, and prints PASSED/FAILED per
// file. Exit code is zero iff every non-skipped test returned zero.
func newTestCmd() *cobra.Command {
	var skip []string
	var debug bool

	cmd := &cobra.Command{
		Use:   "test [path...]",
		Short: "discover and run .c test programs through the JIT back end",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			files, err := discover(args)
			if err != nil {
				return err
			}
			skipSet := make(map[string]bool, len(skip))
			for _, s := range skip {
				skipSet[s] = true
			}

			allOK := true
			for _, path := range files {
				if skipSet[path] || skipSet[filepath.Base(path)] {
					fmt.Printf("SKIP  %s\n", path)
					continue
				}
				if ok, reason := runTest(path, debug); ok {
					fmt.Printf("PASSED %s\n", path)
				} else {
					fmt.Printf("FAILED %s (%s)\n", path, reason)
					allOK = false
				}
			}
			if !allOK {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "path or basename to exclude from this run")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level compiler logging")
	return cmd
}

// discover recursively finds every .c file beneath roots and returns
// them in lexicographic order.
func discover(roots []string) ([]string, error) {
	var files []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".c") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// runTest compiles one .c file and invokes its zero-argument main,
// treating a nonzero or missing return as failure.
func runTest(path string, debug bool) (ok bool, reason string) {
	ctx := corrosion.CreateContext(corrosion.Options{Debug: debug})
	defer corrosion.DestroyContext(ctx)

	if err := corrosion.ParseFile(ctx, path); err != nil {
		return false, err.Error()
	}
	addr, found := corrosion.Get(ctx, "main")
	if !found {
		return false, "no main function"
	}
	ret := jitmem.Invoke0(addr)
	if ret != 0 {
		return false, fmt.Sprintf("main returned %d", ret)
	}
	return true, ""
}
