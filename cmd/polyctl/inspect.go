package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	var version uint64
	cmd := &cobra.Command{
		Use:   "inspect [namespace.entity]",
		Short: "List entities or show the placements of one entity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd, v, version)
			if err != nil {
				return err
			}
			st := newStyles(v.GetBool("output.no_color"))
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				return listEntities(w, st, snap)
			}
			return showEntity(w, st, snap, args[0])
		},
	}
	cmd.Flags().Uint64Var(&version, "version", 0, "catalog image to read (0 is the current image)")
	return cmd
}

func loadSnapshot(cmd *cobra.Command, v *viper.Viper, version uint64) (*catalog.Snapshot, error) {
	store, err := openStore(cmd.Context(), v)
	if err != nil {
		return nil, err
	}
	snap, err := catalog.LoadVersion(cmd.Context(), store, version)
	if errors.Is(err, catalog.ErrNoImage) {
		return nil, errors.New("no catalog image in store")
	}
	return snap, err
}

func listEntities(w io.Writer, st styles, snap *catalog.Snapshot) error {
	var rows [][]string
	for _, ns := range snap.Namespaces() {
		for _, e := range snap.Entities(ns.ID) {
			rows = append(rows, []string{
				ns.Name,
				e.Name,
				e.Model.String(),
				e.Type.String(),
				adapterList(snap.Placements(e.ID)),
				strconv.Itoa(len(snap.Partitions(e.ID))),
			})
		}
	}
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("catalog image %d", snap.Version())))
	if len(rows) == 0 {
		fmt.Fprintln(w, st.muted.Render("no entities"))
		return nil
	}
	fmt.Fprintln(w, st.table([]string{"NAMESPACE", "ENTITY", "MODEL", "TYPE", "ADAPTERS", "PARTITIONS"}, rows))
	return nil
}

func showEntity(w io.Writer, st styles, snap *catalog.Snapshot, qualified string) error {
	nsName, name, ok := strings.Cut(qualified, ".")
	if !ok {
		return fmt.Errorf("entity must be given as namespace.entity, got %q", qualified)
	}
	ns, err := snap.NamespaceByName(nsName)
	if err != nil {
		return err
	}
	e, err := snap.EntityByName(ns.ID, name)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("%s.%s (%s %s, id %d)", ns.Name, e.Name, e.Model, e.Type, e.ID)))

	if cols := snap.Columns(e.ID); len(cols) > 0 {
		pk, _ := snap.PrimaryKey(e.ID)
		rows := make([][]string, 0, len(cols))
		for _, c := range cols {
			var placed []string
			for _, ac := range snap.ColumnPlacements(c.ID) {
				placed = append(placed, fmt.Sprintf("%d:%s", ac.AdapterID, ac.Type))
			}
			rows = append(rows, []string{
				strconv.Itoa(c.Position),
				c.Name,
				c.Type.String(),
				strconv.FormatBool(c.Nullable),
				strconv.FormatBool(pk.HasColumn(c.ID)),
				strings.Join(placed, " "),
			})
		}
		fmt.Fprintln(w, st.table([]string{"POS", "COLUMN", "TYPE", "NULLABLE", "PK", "PLACED ON"}, rows))
	}

	var rows [][]string
	for _, p := range snap.Placements(e.ID) {
		var parts []string
		allocs := snap.AllocationsOfPlacement(p.ID)
		for _, a := range allocs {
			if part, err := snap.Partition(a.PartitionID); err == nil {
				parts = append(parts, part.Name)
			}
		}
		rows = append(rows, []string{
			strconv.FormatInt(int64(p.AdapterID), 10),
			strconv.Itoa(len(snap.AllocColumns(p.ID))),
			strings.Join(parts, " "),
			strconv.Itoa(len(allocs)),
		})
	}
	fmt.Fprintln(w, st.table([]string{"ADAPTER", "COLUMNS", "PARTITIONS", "ALLOCATIONS"}, rows))

	if prop, err := snap.Property(e.ID); err == nil && prop.IsPartitioned() {
		line := fmt.Sprintf("partitioned by %s into %d partitions", prop.Type, len(prop.PartitionIDs))
		if t := prop.Temperature; t != nil {
			hot := len(snap.PartitionsInGroup(t.HotGroupID))
			cold := len(snap.PartitionsInGroup(t.ColdGroupID))
			line += fmt.Sprintf(" (hot %d, cold %d, interval %ds)", hot, cold, t.FrequencyInterval)
		}
		fmt.Fprintln(w, st.muted.Render(line))
	}
	return nil
}

func adapterList(placements []catalog.AllocationPlacement) string {
	ids := make([]model.AdapterID, 0, len(placements))
	for _, p := range placements {
		ids = append(ids, p.AdapterID)
	}
	slices.Sort(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, ",")
}
