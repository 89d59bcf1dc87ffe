//go:build linux

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/ja7ad/proctop/pkg/config"
	"github.com/ja7ad/proctop/pkg/exporter"
	"github.com/ja7ad/proctop/pkg/snapshot"
)

var cfgPath string

func main() {
	cfg := config.Default()
	var diskIO *bool

	root := &cobra.Command{
		Use:   "proctop",
		Short: "Top-N process snapshot exporter",
		Long: `proctop periodically snapshots running processes on a Linux host and
exposes a ranked, labeled view of their resource usage (CPU, memory,
disk I/O, listening ports, container provenance) for scraping.

CPU% comes from a two-phase tick sample around a short sleep, so
long-lived processes report their current usage, not a lifetime
average.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			mergeFlags(cmd, &loaded, cfg, diskIO)
			cfg = loaded
			return cfg.Validate()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to YAML config file")
	pf.StringVar(&cfg.ProcRoot, "proc-root", cfg.ProcRoot, "process filesystem root")
	pf.StringVar(&cfg.CgroupMount, "cgroup-mount", cfg.CgroupMount, "cgroup mount point for version detection")
	pf.StringVar(&cfg.HostRoot, "host-root", cfg.HostRoot, "host filesystem root for hostname resolution")
	pf.DurationVarP((*time.Duration)(&cfg.Interval), "interval", "i", cfg.Interval.Std(), "CPU sampling interval between the two tick snapshots")
	pf.DurationVar((*time.Duration)(&cfg.Timeout), "timeout", cfg.Timeout.Std(), "per-scrape deadline (0 = none)")
	pf.IntVar(&cfg.MaxProcs, "max-procs", cfg.MaxProcs, "maximum PIDs scanned per scrape")
	pf.IntVarP(&cfg.TopN, "top", "n", cfg.TopN, "rows returned per ranking")
	diskIO = pf.Bool("disk-io", true, "collect per-process disk I/O counters")
	pf.IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel per-process readers")
	pf.StringVar(&cfg.CacheFile, "cache-file", cfg.CacheFile, "persist last good snapshot to this file")
	pf.StringSliceVar(&cfg.Labels, "labels", nil, "subset of labels to expose (default all)")

	root.AddCommand(serveCmd(&cfg), snapshotCmd(&cfg))

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// mergeFlags overlays flags the user actually set onto the file-loaded
// config, so precedence is flags > file > defaults.
func mergeFlags(cmd *cobra.Command, dst *config.Config, flagCfg config.Config, diskIO *bool) {
	f := cmd.Flags()
	if f.Changed("disk-io") {
		dst.DiskIO = diskIO
	}
	if f.Changed("proc-root") {
		dst.ProcRoot = flagCfg.ProcRoot
	}
	if f.Changed("cgroup-mount") {
		dst.CgroupMount = flagCfg.CgroupMount
	}
	if f.Changed("host-root") {
		dst.HostRoot = flagCfg.HostRoot
	}
	if f.Changed("interval") {
		dst.Interval = flagCfg.Interval
	}
	if f.Changed("timeout") {
		dst.Timeout = flagCfg.Timeout
	}
	if f.Changed("max-procs") {
		dst.MaxProcs = flagCfg.MaxProcs
	}
	if f.Changed("top") {
		dst.TopN = flagCfg.TopN
	}
	if f.Changed("workers") {
		dst.Workers = flagCfg.Workers
	}
	if f.Changed("cache-file") {
		dst.CacheFile = flagCfg.CacheFile
	}
	if f.Changed("labels") {
		dst.Labels = flagCfg.Labels
	}
}

func newScanner(cfg config.Config) *snapshot.Scanner {
	return snapshot.New(snapshot.Options{
		ProcRoot:    cfg.ProcRoot,
		CgroupMount: cfg.CgroupMount,
		Interval:    cfg.Interval.Std(),
		MaxProcs:    cfg.MaxProcs,
		TopN:        cfg.TopN,
		DiskIO:      cfg.DiskIOEnabled(),
		Workers:     cfg.Workers,
		CacheFile:   cfg.CacheFile,
		Node:        hostname(cfg.HostRoot),
	}, nil)
}

func serveCmd(cfg *config.Config) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve process rankings on a metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = cfg.Listen
			}

			scanner := newScanner(*cfg)
			if cfg.CacheFile != "" {
				if cached, err := snapshot.LoadCache(cfg.CacheFile); err == nil {
					scanner.Restore(cached)
					slog.Info("restored cached snapshot", "rows", len(cached.Rows), "taken_at", cached.TakenAt)
				}
			}

			labels := snapshot.NormalizeLabels(cfg.Labels)
			reg := prometheus.NewRegistry()
			reg.MustRegister(exporter.New(scanner, cfg.TopN, cfg.Timeout.Std(), labels))

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			srv := &http.Server{Addr: listen, Handler: mux}

			slog.Info("proctop serving",
				"listen", listen,
				"node", hostname(cfg.HostRoot),
				"kernel", kernelRelease(),
				"interval", cfg.Interval,
				"top_n", cfg.TopN,
				"labels", strings.Join(labels, ","),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				slog.Info("shutting down")
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutCtx)
			}
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "address to serve metrics on (default from config, :9105)")
	return cmd
}

func snapshotCmd(cfg *config.Config) *cobra.Command {
	var (
		by     string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Take one snapshot and print the ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			dim := snapshot.Dimension(by)
			switch dim {
			case snapshot.ByCPU, snapshot.ByMemory, snapshot.ByDiskRead, snapshot.ByDiskWrite:
			default:
				return fmt.Errorf("unknown ranking %q (cpu, memory, disk_read, disk_write)", by)
			}

			scanner := newScanner(*cfg)

			ctx := cmd.Context()
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Timeout.Std())
				defer cancel()
			}

			res, err := scanner.Scan(ctx)
			if err != nil && (res == nil || len(res.Rows) == 0) {
				return err
			}
			ranked := snapshot.Rank(res.Rows, dim, cfg.TopN)

			if asJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ranked)
			}
			printTable(ranked)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", string(snapshot.ByCPU), "ranking dimension: cpu, memory, disk_read, disk_write")
	cmd.Flags().BoolVar(&asJSON, "json", false, "force JSON output even on a terminal")
	return cmd
}

func printTable(rows []snapshot.Row) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPID\tUSER\tCPU%\tMEM%\tRSS(KB)\tREAD\tWRITE\tPORTS\tRUNTIME\tCOMMAND")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.2f\t%.2f\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Rank, r.PID, r.User, r.CPUPct, r.MemPct, r.RSSKB,
			r.DiskReadBytes.Humanized(), r.DiskWriteBytes.Humanized(),
			r.PortsString(), r.Runtime, r.Command,
		)
	}
	tw.Flush()
}

// hostname resolves the node name, preferring the host's /etc/hostname
// when running containerized with the host root mounted.
func hostname(hostRoot string) string {
	if hostRoot != "" {
		if b, err := os.ReadFile(filepath.Join(hostRoot, "etc/hostname")); err == nil {
			if name := strings.TrimSpace(string(b)); name != "" {
				return name
			}
		}
	}
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "unknown"
	}
	return unix.ByteSliceToString(uts.Release[:])
}
