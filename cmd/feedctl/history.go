package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abelbrown/minifeed/internal/store"
)

func newHistoryCmd(o *rootOptions) *cobra.Command {
	var limit int
	var itemID int64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Items, stays and relations recorded by minifeed",
		Long: `Show the local history database: recently seen items, stay statistics
and the last confirmed like/favorite status. With --item, list the stays
recorded for one item.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := filepath.Join(o.cfg.DataDir, store.FileName)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no history at %s; run minifeed first", path)
			}
			st, err := o.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			w := cmd.OutOrStdout()
			if itemID != 0 {
				return printStays(w, st, itemID, o.jsonOut)
			}
			return printHistory(w, st, limit, o.jsonOut)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Rows per section")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Show the stays of one item")
	return cmd
}

func printHistory(w io.Writer, st *store.Store, limit int, jsonOut bool) error {
	items, err := st.RecentItems(limit)
	if err != nil {
		return fmt.Errorf("recent items: %w", err)
	}
	stats, err := st.StayStats()
	if err != nil {
		return err
	}
	rels, err := st.Relations(limit)
	if err != nil {
		return fmt.Errorf("relations: %w", err)
	}

	if jsonOut {
		return printJSON(w, map[string]any{
			"items":     items,
			"stays":     stats,
			"relations": rels,
		})
	}

	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{
			strconv.FormatInt(it.ID, 10),
			string(it.Type),
			truncate(it.Title, 40),
			strconv.Itoa(it.SeenCount),
			humanize.Time(it.LastSeen),
		}
	}
	printTable(w, "Recently seen", []string{"ID", "TYPE", "TITLE", "SEEN", "LAST"}, rows)
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("Stays"))
	fmt.Fprintf(w, "  %s recorded, total %s, avg %s, longest %s\n",
		humanize.Comma(int64(stats.Count)), stats.Total, stats.Avg, stats.Max)
	fmt.Fprintln(w)

	rows = make([][]string, len(rels))
	for i, r := range rels {
		status := "inactive"
		if r.Active {
			status = "active"
		}
		rows[i] = []string{
			r.EntityType + " " + strconv.FormatInt(r.EntityID, 10),
			string(r.Type),
			status,
			humanize.Time(r.UpdatedAt),
		}
	}
	printTable(w, "Confirmed relations", []string{"ENTITY", "RELATION", "STATUS", "UPDATED"}, rows)
	return nil
}

func printStays(w io.Writer, st *store.Store, itemID int64, jsonOut bool) error {
	stays, err := st.Stays(itemID)
	if err != nil {
		return fmt.Errorf("stays: %w", err)
	}
	if jsonOut {
		return printJSON(w, stays)
	}
	rows := make([][]string, len(stays))
	for i, s := range stays {
		rows[i] = []string{s.ID[:8], s.Duration.String(), humanize.Time(s.EndedAt)}
	}
	printTable(w, fmt.Sprintf("Stays of item %d", itemID), []string{"ID", "STAY", "ENDED"}, rows)
	return nil
}
