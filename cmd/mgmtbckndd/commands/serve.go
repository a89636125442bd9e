package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ujwal-p/mgmtbcknd"
	"github.com/ujwal-p/mgmtbcknd/internal/bckndtest"
	"github.com/ujwal-p/mgmtbcknd/metricsprom"
)

var (
	serveAddr        string
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the management-plane backend adapter daemon",
	Long: `Accept connections from backend client processes, run the
single-threaded reactor, and serve Prometheus metrics until interrupted.

With no real transaction module or configuration database wired in, serve
runs against in-memory demo collaborators (see internal/bckndtest) so the
reactor and protocol codec can be exercised end to end without a live
mgmtd.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen", ":4242", "address to accept backend connections on")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-listen", ":9242", "address to serve /metrics on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := GetConfigFile()
	var cfg *bcknd.Config
	var err error
	if cfgPath != "" {
		cfg, err = bcknd.LoadConfig(cfgPath)
	} else {
		cfg = bcknd.NewConfig()
	}
	if err != nil {
		return fmt.Errorf("mgmtbckndd: loading config: %w", err)
	}

	promReg := prometheus.NewRegistry()
	cfg.Metrics = metricsprom.New(promReg)

	subs := bcknd.NewSubscriptionRegistry([]bcknd.PatternTableEntry{
		{Pattern: "/", Clients: []bcknd.ClientID{bcknd.ClientStatic, bcknd.ClientBGP}},
	})

	cfgDB := bckndtest.NewFakeConfigDB()
	trxn := bckndtest.NewFakeTransactionModule()

	re, err := bcknd.NewReactor()
	if err != nil {
		return fmt.Errorf("mgmtbckndd: starting reactor: %w", err)
	}
	defer re.Close()

	registry := bcknd.NewRegistry(cfg, subs, cfgDB, trxn, re)

	ln, err := net.Listen("tcp", serveAddr)
	if err != nil {
		return fmt.Errorf("mgmtbckndd: listening on %s: %w", serveAddr, err)
	}
	defer ln.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: serveMetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("mgmtbckndd: metrics server stopped", slog.Any("err", err))
		}
	}()

	stop := make(chan struct{})
	reactorDone := make(chan error, 1)
	go func() { reactorDone <- re.Run(stop) }()

	go acceptLoop(ln, registry, re, cfg)

	slog.Info("mgmtbckndd: serving", slog.String("listen", serveAddr), slog.String("metrics", serveMetricsAddr))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	slog.Info("mgmtbckndd: shutting down")
	close(stop)
	ln.Close()
	registry.Shutdown()
	_ = metricsSrv.Close()
	<-reactorDone
	return nil
}
