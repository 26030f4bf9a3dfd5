package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/minifeed/internal/api"
)

// metricRunner fetches one report and prints it (or its JSON).
type metricRunner func(ctx context.Context, c *api.Client, r api.DateRange, w io.Writer, jsonOut bool) error

func newMetricsCmd(o *rootOptions) *cobra.Command {
	var r api.DateRange
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Dashboard metrics",
		Long: `Query the /metrics endpoints. Date ranges are YYYY-MM-DD and optional;
the backend defaults apply when they are omitted.`,
	}
	cmd.PersistentFlags().StringVar(&r.Start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.PersistentFlags().StringVar(&r.End, "end", "", "End date (YYYY-MM-DD)")

	sub := func(use, short string, run metricRunner) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, cancel := o.context(cmd)
				defer cancel()
				return run(ctx, o.client(), r, cmd.OutOrStdout(), o.jsonOut)
			},
		}
	}

	var kind string
	ctr := sub("ctr", "Click-through rate per content type", func(ctx context.Context, c *api.Client, r api.DateRange, w io.Writer, jsonOut bool) error {
		rows, err := c.MetricsCTR(ctx, r, kind)
		if err != nil {
			return err
		}
		return printCTR(w, rows, jsonOut)
	})
	ctr.Flags().StringVar(&kind, "kind", "", "Only this content type (content, ad, product)")

	var daysSince, limit int
	retention := sub("retention", "Cohort retention", func(ctx context.Context, c *api.Client, _ api.DateRange, w io.Writer, jsonOut bool) error {
		rows, err := c.MetricsRetention(ctx, daysSince, limit)
		if err != nil {
			return err
		}
		return printRetention(w, rows, jsonOut)
	})
	retention.Flags().IntVar(&daysSince, "days-since", 1, "Days after the cohort day")
	retention.Flags().IntVar(&limit, "limit", 30, "Maximum cohorts")

	var period string
	active := sub("active-users", "Active users per day, week or month", func(ctx context.Context, c *api.Client, r api.DateRange, w io.Writer, jsonOut bool) error {
		p := api.ActivePeriod(period)
		switch p {
		case api.PeriodDay, api.PeriodWeek, api.PeriodMonth:
		default:
			return fmt.Errorf("invalid period %q (want day, week or month)", period)
		}
		rows, err := c.MetricsActiveUsers(ctx, p, r)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(w, rows)
		}
		out := make([][]string, len(rows))
		for i, row := range rows {
			out[i] = []string{row.Date, count(row.ActiveUsers)}
		}
		printTable(w, "Active users per "+period, []string{"DATE", "ACTIVE"}, out)
		return nil
	})
	active.Flags().StringVar(&period, "period", string(api.PeriodDay), "Bucket: day, week or month")

	cmd.AddCommand(
		sub("overview", "Headline numbers", func(ctx context.Context, c *api.Client, _ api.DateRange, w io.Writer, jsonOut bool) error {
			ov, err := c.MetricsOverview(ctx)
			if err != nil {
				return err
			}
			return printOverview(w, ov, jsonOut)
		}),
		ctr,
		sub("dau", "Daily active users", func(ctx context.Context, c *api.Client, r api.DateRange, w io.Writer, jsonOut bool) error {
			rows, err := c.MetricsDAU(ctx, r)
			if err != nil {
				return err
			}
			return printDAU(w, rows, jsonOut)
		}),
		sub("ad-revenue", "Ad impressions, clicks and revenue", func(ctx context.Context, c *api.Client, r api.DateRange, w io.Writer, jsonOut bool) error {
			rows, err := c.MetricsAdRevenue(ctx, r)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(w, rows)
			}
			out := make([][]string, len(rows))
			for i, row := range rows {
				out[i] = []string{row.Day, count(row.AdImpressions), count(row.AdClicks), pct(row.AdCTR), money(row.AdRevenue)}
			}
			printTable(w, "Ad revenue", []string{"DAY", "IMPRESSIONS", "CLICKS", "CTR", "REVENUE"}, out)
			return nil
		}),
		sub("product-revenue", "Product clicks, GMV and conversions", func(ctx context.Context, c *api.Client, r api.DateRange, w io.Writer, jsonOut bool) error {
			rows, err := c.MetricsProductRevenue(ctx, r)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(w, rows)
			}
			out := make([][]string, len(rows))
			for i, row := range rows {
				out[i] = []string{row.Day, count(row.ProductImpressions), count(row.ProductClicks), money(row.GMV), count(row.Conversions), pct(row.ConversionRate)}
			}
			printTable(w, "Product revenue", []string{"DAY", "IMPRESSIONS", "CLICKS", "GMV", "CONVERSIONS", "RATE"}, out)
			return nil
		}),
		retention,
		active,
		sub("staytime", "Average, max and min stay per day", func(ctx context.Context, c *api.Client, r api.DateRange, w io.Writer, jsonOut bool) error {
			rows, err := c.MetricsStaytime(ctx, r)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(w, rows)
			}
			out := make([][]string, len(rows))
			for i, row := range rows {
				out[i] = []string{row.Day, ms(row.AvgStaytimeMs), ms(float64(row.MaxStaytimeMs)), ms(float64(row.MinStaytimeMs))}
			}
			printTable(w, "Stay time", []string{"DAY", "AVG", "MAX", "MIN"}, out)
			return nil
		}),
		sub("interaction", "Interaction rate per day", func(ctx context.Context, c *api.Client, r api.DateRange, w io.Writer, jsonOut bool) error {
			rows, err := c.MetricsInteraction(ctx, r)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(w, rows)
			}
			out := make([][]string, len(rows))
			for i, row := range rows {
				out[i] = []string{row.Day, count(row.Impressions), count(row.Interactions), pct(row.InteractionRate)}
			}
			printTable(w, "Interaction", []string{"DAY", "IMPRESSIONS", "INTERACTIONS", "RATE"}, out)
			return nil
		}),
		sub("distribution", "Content type distribution", func(ctx context.Context, c *api.Client, _ api.DateRange, w io.Writer, jsonOut bool) error {
			rows, err := c.MetricsDistribution(ctx)
			if err != nil {
				return err
			}
			return printDistribution(w, rows, jsonOut)
		}),
		sub("refresh", "Ask the backend to recompute its metric views", func(ctx context.Context, c *api.Client, _ api.DateRange, w io.Writer, jsonOut bool) error {
			ok, err := c.RefreshMetrics(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(w, map[string]bool{"success": ok})
			}
			if !ok {
				return fmt.Errorf("metrics refresh was not accepted")
			}
			fmt.Fprintln(w, "metrics refreshed")
			return nil
		}),
		sub("dashboard", "Overview, DAU, CTR and distribution in one view", runDashboard),
	)
	return cmd
}

// dashboard is the combined result of runDashboard.
type dashboard struct {
	Overview     *api.MetricsOverview      `json:"overview"`
	DAU          []api.DailyActiveUsers    `json:"dau"`
	CTR          []api.ContentTypeCTR      `json:"ctr"`
	Distribution []api.ContentDistribution `json:"distribution"`
}

// runDashboard fetches four reports concurrently. The first failure cancels
// the rest.
func runDashboard(ctx context.Context, c *api.Client, r api.DateRange, w io.Writer, jsonOut bool) error {
	var d dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Overview, err = c.MetricsOverview(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.DAU, err = c.MetricsDAU(ctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		d.CTR, err = c.MetricsCTR(ctx, r, "")
		return err
	})
	g.Go(func() error {
		var err error
		d.Distribution, err = c.MetricsDistribution(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	if jsonOut {
		return printJSON(w, d)
	}
	if err := printOverview(w, d.Overview, false); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := printDAU(w, d.DAU, false); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := printCTR(w, d.CTR, false); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return printDistribution(w, d.Distribution, false)
}

func growth(g api.GrowthValue) string {
	s := strconv.FormatFloat(g.Growth, 'f', 1, 64) + "%"
	if g.Trend == api.TrendDown {
		return downStyle.Render("▼ " + s)
	}
	return upStyle.Render("▲ " + s)
}

func printOverview(w io.Writer, ov *api.MetricsOverview, jsonOut bool) error {
	if jsonOut {
		return printJSON(w, ov)
	}
	rows := [][]string{
		{"DAU", count(int64(ov.DAU.Value)), growth(ov.DAU)},
		{"WAU", count(int64(ov.WAU.Value)), ""},
		{"MAU", count(int64(ov.MAU.Value)), ""},
		{"Ad revenue", money(ov.AdRevenue.Value), growth(ov.AdRevenue)},
		{"GMV", money(ov.GMV.Value), growth(ov.GMV)},
		{"Overall CTR", pct(ov.OverallCTR.Value), ""},
	}
	printTable(w, "Overview", []string{"METRIC", "VALUE", "CHANGE"}, rows)
	return nil
}

func printDAU(w io.Writer, rows []api.DailyActiveUsers, jsonOut bool) error {
	if jsonOut {
		return printJSON(w, rows)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = []string{row.Day, count(row.DAU)}
	}
	printTable(w, "Daily active users", []string{"DAY", "DAU"}, out)
	return nil
}

func printCTR(w io.Writer, rows []api.ContentTypeCTR, jsonOut bool) error {
	if jsonOut {
		return printJSON(w, rows)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = []string{row.Day, row.Kind, count(row.Impressions), count(row.Clicks), pct(row.CTR)}
	}
	printTable(w, "Click-through rate", []string{"DAY", "KIND", "IMPRESSIONS", "CLICKS", "CTR"}, out)
	return nil
}

func printRetention(w io.Writer, rows []api.UserRetention, jsonOut bool) error {
	if jsonOut {
		return printJSON(w, rows)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = []string{row.CohortDay, count(row.CohortSize), count(row.ActiveUsers), pct(row.RetentionRate * 100)}
	}
	printTable(w, "Retention", []string{"COHORT", "SIZE", "ACTIVE", "RETAINED"}, out)
	return nil
}

func printDistribution(w io.Writer, rows []api.ContentDistribution, jsonOut bool) error {
	if jsonOut {
		return printJSON(w, rows)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = []string{row.Kind, count(row.Count), pct(row.Percentage)}
	}
	printTable(w, "Content distribution", []string{"KIND", "COUNT", "SHARE"}, out)
	return nil
}
