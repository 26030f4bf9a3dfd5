package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abelbrown/minifeed/internal/logging"
	"github.com/abelbrown/minifeed/internal/mockapi"
)

func newServeMockCmd() *cobra.Command {
	var (
		addr    string
		items   int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Run the in-memory fake backend",
		Long: `Serve every API route from memory with deterministic sample data, for
running minifeed without a backend:

  feedctl serve-mock --addr :8000 &
  minifeed --api http://localhost:8000/api/v1`,
		Args: cobra.NoArgs,
		// No config needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := "info"
			if verbose {
				level = "debug"
			}
			if err := logging.InitWriter(os.Stderr, level); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mockapi.New(mockapi.WithFeed(mockapi.SampleFeed(items)))
			fmt.Fprintf(cmd.ErrOrStderr(), "serving %d items on http://%s%s (ctrl+c to stop)\n", items, displayAddr(addr), mockapi.Prefix)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8000", "Listen address")
	cmd.Flags().IntVar(&items, "items", 40, "Number of sample feed items")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every request")
	return cmd
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
