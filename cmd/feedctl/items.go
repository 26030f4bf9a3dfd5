package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abelbrown/minifeed/internal/api"
)

func newItemCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "item <id>",
		Short: "Fetch one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			ctx, cancel := o.context(cmd)
			defer cancel()

			item, err := o.client().GetItem(ctx, id)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.jsonOut {
				return printJSON(w, item)
			}
			printItem(w, *item)
			return nil
		},
	}
}

func newItemsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "items <id,id,...>",
		Short: "Fetch several items in one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx, cancel := o.context(cmd)
			defer cancel()

			items, err := o.client().GetItems(ctx, ids)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.jsonOut {
				return printJSON(w, items)
			}
			rows := make([][]string, 0, len(items))
			for _, it := range items {
				rows = append(rows, []string{
					strconv.FormatInt(it.ID, 10),
					string(it.Kind),
					truncate(it.Title, 48),
					strings.Join(it.Tags.Flat(), " "),
				})
			}
			printTable(w, fmt.Sprintf("%d items", len(items)), []string{"ID", "KIND", "TITLE", "TAGS"}, rows)
			return nil
		},
	}
}

func newSearchCmd(o *rootOptions) *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()

			res, err := o.client().Search(ctx, api.SearchParams{
				Query:    strings.Join(args, " "),
				Page:     page,
				PageSize: pageSize,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.jsonOut {
				return printJSON(w, res)
			}
			rows := make([][]string, 0, len(res.Items))
			for _, it := range res.Items {
				rows = append(rows, []string{
					strconv.FormatInt(it.ID, 10),
					string(it.Type),
					truncate(it.Title(), 48),
					truncate(it.Meta(), 24),
				})
			}
			title := fmt.Sprintf("%d hits (page %d, size %d)", res.Total, res.Page, res.PageSize)
			printTable(w, title, []string{"ID", "TYPE", "TITLE", "META"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Results per page")
	return cmd
}

func printItem(w io.Writer, it api.Item) {
	fmt.Fprintln(w, titleStyle.Render(it.Title))
	fmt.Fprintf(w, "  id:       %d\n", it.ID)
	fmt.Fprintf(w, "  kind:     %s\n", it.Kind)
	if it.Author != nil && it.Author.Username != "" {
		fmt.Fprintf(w, "  author:   %s (%d)\n", it.Author.Username, it.AuthorID)
	} else if it.AuthorID != 0 {
		fmt.Fprintf(w, "  author:   %d\n", it.AuthorID)
	}
	if it.CreatedAt != "" {
		fmt.Fprintf(w, "  created:  %s\n", it.CreatedAt)
	}
	if tags := it.Tags.Flat(); len(tags) > 0 {
		fmt.Fprintf(w, "  tags:     %s\n", strings.Join(tags, ", "))
	}
	if it.Media != nil {
		fmt.Fprintf(w, "  media:    %s %s\n", it.Media.Type, it.Media.URL)
	}
	if it.Content != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, it.Content)
	}
}
