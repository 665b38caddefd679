package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/polyalloc/allocation"
)

// errCoverage makes polyctl exit non-zero when data is not fully placed.
var errCoverage = errors.New("coverage check failed")

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	var version uint64
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every column and partition has a full copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd, v, version)
			if err != nil {
				return err
			}
			st := newStyles(v.GetBool("output.no_color"))
			w := cmd.OutOrStdout()

			var rows [][]string
			entities := 0
			for _, ns := range snap.Namespaces() {
				for _, e := range snap.Entities(ns.ID) {
					entities++
					gaps, err := allocation.CheckCoverage(snap, e.ID)
					if err != nil {
						return err
					}
					for _, g := range gaps {
						column := "*"
						if c, err := snap.Column(g.Column); err == nil {
							column = c.Name
						}
						partition := strconv.FormatInt(int64(g.Partition), 10)
						if p, err := snap.Partition(g.Partition); err == nil {
							partition = p.Name
						}
						rows = append(rows, []string{ns.Name + "." + e.Name, column, partition})
					}
				}
			}

			if len(rows) == 0 {
				fmt.Fprintln(w, st.ok.Render(fmt.Sprintf("ok: %d entities fully placed", entities)))
				return nil
			}
			fmt.Fprintln(w, st.failed.Render(fmt.Sprintf("%d uncovered column partitions", len(rows))))
			fmt.Fprintln(w, st.table([]string{"ENTITY", "COLUMN", "PARTITION"}, rows))
			return fmt.Errorf("%w: %d gaps", errCoverage, len(rows))
		},
	}
	cmd.Flags().Uint64Var(&version, "version", 0, "catalog image to read (0 is the current image)")
	return cmd
}
