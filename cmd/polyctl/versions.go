package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/polyalloc/catalog"
)

func newVersionsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List the catalog images in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, v)
			if err != nil {
				return err
			}
			images, err := catalog.ListImages(ctx, store)
			if err != nil {
				return err
			}
			st := newStyles(v.GetBool("output.no_color"))
			w := cmd.OutOrStdout()
			if len(images) == 0 {
				fmt.Fprintln(w, st.muted.Render("no catalog images"))
				return nil
			}

			var current uint64
			snap, err := catalog.LoadVersion(ctx, store, 0)
			switch {
			case err == nil:
				current = snap.Version()
			case !errors.Is(err, catalog.ErrNoImage):
				return err
			}

			rows := make([][]string, 0, len(images))
			for _, img := range images {
				mark := ""
				if img.ID == current {
					mark = "*"
				}
				rows = append(rows, []string{
					mark,
					strconv.FormatUint(img.ID, 10),
					img.CreatedAt.UTC().Format(time.RFC3339),
					img.Codec,
					img.Compression.String(),
					strconv.Itoa(img.Size),
				})
			}
			fmt.Fprintln(w, st.table([]string{"", "IMAGE", "CREATED", "CODEC", "COMPRESSION", "BYTES"}, rows))
			return nil
		},
	}
}

func newPruneCmd(v *viper.Viper) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest catalog images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1, got %d", keep)
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, v)
			if err != nil {
				return err
			}
			deleted, err := catalog.PruneImages(ctx, store, keep)
			if err != nil {
				return err
			}
			st := newStyles(v.GetBool("output.no_color"))
			w := cmd.OutOrStdout()
			if len(deleted) == 0 {
				fmt.Fprintln(w, st.muted.Render("nothing to prune"))
				return nil
			}
			fmt.Fprintln(w, st.ok.Render(fmt.Sprintf("pruned %d images: %v", len(deleted), deleted)))
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 5, "number of newest images to keep")
	return cmd
}
