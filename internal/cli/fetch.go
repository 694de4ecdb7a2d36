package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/pricewatch/internal/control"
	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/pricing/health"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <feed>",
	Short: "Run one fetch cycle for a feed and print its state",
	Args:  cobra.ExactArgs(1),
	Run:   runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := signalContext()
	defer cancel()

	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize pricewatch", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	orch, ok := app.Feed(args[0])
	if !ok {
		slog.Error("Unknown feed", "feed", args[0])
		os.Exit(1)
	}

	st := orch.FetchPrice(ctx)
	app.Dispatcher().Drain(ctx)

	out := struct {
		State  domain.OracleState `json:"state"`
		Health health.Status      `json:"health"`
	}{State: st, Health: orch.Health()}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
