package command

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/gobuffalo/flect"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dsblv/parcel/cmd/bundle/internal/view"
	"github.com/dsblv/parcel/internal/bundlegraph"
	"github.com/dsblv/parcel/internal/bundler"
	"github.com/dsblv/parcel/internal/config"
	"github.com/dsblv/parcel/internal/loader"
	"github.com/dsblv/parcel/internal/metrics"
	"github.com/dsblv/parcel/internal/optimizer"
)

// BuildOptions holds the options for the build command.
type BuildOptions struct {
	Path         string
	ConfigPath   string
	ServeMetrics bool
	MetricsAddr  string
}

// NewBuildCommand builds the build subcommand.
func NewBuildCommand(cli *CLI) *cobra.Command {
	var opts BuildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the bundler and optimizer over an asset graph document",
		Long: Highlight("bundle build -f <path>") + "\n\n" +
			"Run pass 1 (bundler) and passes 2-5 (optimizer) over an asset\n" +
			"graph document and print the resulting bundle graph.\n",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunBuild(cmd.Context(), cli, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "file", "f", "", "Path to an asset graph document")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "Path to a tunables config file (defaults to built-in defaults)")
	cmd.Flags().BoolVar(&opts.ServeMetrics, "serve-metrics", false, "Serve Prometheus metrics for this run over /metrics after it completes")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", ":9090", "Address to serve /metrics on, when --serve-metrics is set")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// RunBuild loads opts.Path, runs the bundler and optimizer, and renders
// the resulting bundle graph.
func RunBuild(ctx context.Context, cli *CLI, opts BuildOptions) error {
	log := cli.Logger()

	assets, err := loader.LoadGraph(opts.Path)
	if err != nil {
		return fmt.Errorf("failed to load %q: %w", opts.Path, err)
	}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config %q: %w", opts.ConfigPath, err)
		}
	}

	corelog := logr.FromSlogHandler(newCoreSlogHandler())
	m := metrics.New()

	log.Info("running bundler pass 1", "path", opts.Path)
	start := time.Now()
	bg, bundlerStats, err := bundler.RunWithStats(ctx, assets, bundler.WithLogger(corelog))
	m.ObservePass("bundler", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("bundler pass 1 failed: %w", err)
	}
	m.BundlesCreatedTotal.Add(float64(bundlerStats.BundlesCreated))
	m.GroupsCreatedTotal.Add(float64(bundlerStats.GroupsCreated))

	log.Info("running optimizer passes 2-5")
	start = time.Now()
	optStats, err := optimizer.RunWithStats(ctx, bg, cfg, optimizer.WithLogger(corelog))
	m.ObservePass("optimizer", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("optimizer passes failed: %w", err)
	}
	m.SharedBundlesExtracted.Add(float64(optStats.SharedBundlesExtracted))
	m.AncestorDeduped.Add(float64(optStats.AncestorDeduped))
	m.AsyncInternalized.Add(float64(optStats.AsyncInternalized))
	m.GroupsRemovedTotal.Add(float64(optStats.GroupsRemoved))
	for _, d := range optStats.Declined {
		m.RecordDecline(d.Stage)
	}

	result := view.BuildResult{
		GroupsCreated:          bundlerStats.GroupsCreated,
		BundlesCreated:         bundlerStats.BundlesCreated,
		Reparented:             optStats.Reparented,
		AncestorDeduped:        optStats.AncestorDeduped,
		SharedBundlesExtracted: optStats.SharedBundlesExtracted,
		AsyncInternalized:      optStats.AsyncInternalized,
		GroupsRemoved:          optStats.GroupsRemoved,
		Declined:               len(optStats.Declined),
	}

	for _, b := range bg.Bundles() {
		result.Bundles = append(result.Bundles, bundleRow(bg, b))
	}
	sort.Slice(result.Bundles, func(i, j int) bool {
		return result.Bundles[i].ID < result.Bundles[j].ID
	})

	view.NewBuildView(cli.Viewer).Render(result)

	if opts.ServeMetrics {
		return serveMetrics(ctx, log, m, opts.MetricsAddr)
	}
	return nil
}

// serveMetrics blocks serving m's registry over /metrics until ctx is
// canceled (§10.4) — run after the report so a scrape sees a completed
// run's final counters, not a partial one.
func serveMetrics(ctx context.Context, log view.Logger, m *metrics.Metrics, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("serving metrics", "addr", addr)

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	}
}

// newCoreSlogHandler builds the slog handler the bundler/optimizer core
// logs through, bridged into a logr.Logger via logr.FromSlogHandler —
// the core packages speak logr (§10.1), the CLI's own stderr stream
// speaks slog, same as cli's progress logger.
func newCoreSlogHandler() slog.Handler {
	level := slog.LevelWarn
	if debugFlag {
		level = slog.LevelDebug
	}
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
}

// bundleRow summarizes a bundle for the report. Shared bundles (those
// with no single entry asset) get a flect-humanized display name built
// from their UniqueKey, since they have no natural filename of their
// own to show.
func bundleRow(bg *bundlegraph.Graph, b *bundlegraph.Bundle) view.BundleRow {
	// b.Assets is already the bundle's complete flattened membership, so
	// the whole-bundle total is a plain sum over it — GetTotalSize's
	// subgraph walk is for pass 4's per-candidate accounting, not this.
	var size int64
	for asset := range b.Assets {
		if a, ok := bg.Assets.Asset(asset); ok {
			size += a.Size
		}
	}

	displayName := string(b.ID)
	shared := b.UniqueKey != ""
	if shared {
		displayName = "shared-" + flect.Dasherize(b.Type) + "-" + flect.Dasherize(b.UniqueKey)
	} else if entry, ok := b.MainEntry(); ok {
		displayName = string(entry)
	}

	return view.BundleRow{
		ID:          string(b.ID),
		DisplayName: displayName,
		Type:        b.Type,
		Size:        size,
		Groups:      len(bg.GetBundleGroupsContainingBundle(b.ID)),
		Shared:      shared,
	}
}
