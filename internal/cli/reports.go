package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/pricewatch/internal/control"
)

var reportsLimit int

var reportsCmd = &cobra.Command{
	Use:   "reports <feed>",
	Short: "List recent error reports stored for a feed",
	Args:  cobra.ExactArgs(1),
	Run:   runReports,
}

func init() {
	reportsCmd.Flags().IntVar(&reportsLimit, "limit", 20, "number of reports to show")
	rootCmd.AddCommand(reportsCmd)
}

func runReports(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := signalContext()
	defer cancel()

	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize pricewatch", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	feed := args[0]
	total, err := app.Reports().Count(ctx, feed)
	if err != nil {
		slog.Error("Failed to count reports", "error", err)
		os.Exit(1)
	}
	recs, err := app.Reports().Recent(ctx, feed, reportsLimit)
	if err != nil {
		slog.Error("Failed to load reports", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REPORTED\tSERVICE\tCODE\tENDPOINT\tREASON\tSTREAK\tCATEGORY")
	fmt.Fprintln(w, "--------\t-------\t----\t--------\t------\t------\t--------")

	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.Report.Timestamp.Format(time.RFC3339),
			rec.Report.Service,
			rec.Report.ErrorCode,
			rec.Report.Context.Endpoint,
			rec.Report.Context.Reason,
			rec.Report.ConsecutiveFailures,
			rec.Classification.Category,
		)
	}
	_ = w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d reports for %s\n", len(recs), total, feed)
}
