package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/spf13/pflag"

	"github.com/joshuamhtsang/sine/cmd/internal/optional"
	"github.com/joshuamhtsang/sine/internal/controller"
	"github.com/joshuamhtsang/sine/internal/logx"
	"github.com/joshuamhtsang/sine/internal/netprog"
	"github.com/joshuamhtsang/sine/internal/topology"
)

func runDeploy(args []string) error {
	fs := pflag.NewFlagSet("deploy", pflag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "resolve and compute every link without touching netem or the container runtime")
	forceAnalytic := fs.Bool("force-analytic", false, "always use the analytic FSPL engine")
	remote := fs.String("remote", "", "address of a standalone channel-server to drive instead of an in-process Channel Service")
	statusAddr := fs.String("status-addr", "", "if set, serve GET /api/topology/summary on this address and block until interrupted")
	txAutodetect := fs.Bool("tx-autodetect", false, "poll per-interface TX counters and flip transmission state automatically (requires --status-addr)")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("wnetctl deploy: expected exactly one topology path, got %d", fs.NArg())
	}
	setLogLevel(*verbose)

	doc, err := topology.Load(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("wnetctl deploy: %w", err)
	}

	// Serving status is opt-in: a one-shot deploy (and any --dry-run)
	// should not start a server at all.
	serveAddr := optional.None[string]()
	if !*dryRun && *statusAddr != "" {
		serveAddr = optional.Some(*statusAddr)
	}

	w := wire(doc, *remote, *forceAnalytic, *dryRun)
	ctx := context.Background()
	report, err := w.ctrl.Deploy(ctx, *dryRun)
	if err != nil {
		return fmt.Errorf("wnetctl deploy: %w", err)
	}
	printDeployReport(report)

	if serveAddr.Empty() {
		if report.Status != controller.StatusHealthy {
			return fmt.Errorf("wnetctl deploy: topology %s is degraded", report.DeploymentID)
		}
		return nil
	}

	if *txAutodetect {
		detector := controller.NewTxActivityDetector(w.ctrl, netprog.NewNetlinkBackend(), controller.TxDetectorConfig{})
		detectCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := detector.Run(detectCtx); err != nil && detectCtx.Err() == nil {
				log.WithError(err).Warn("wnetctl: tx autodetect")
			}
		}()
	}

	return serveAndWaitForTeardown(ctx, w.ctrl, serveAddr.Unwrap())
}

func wire(doc *topology.Document, remote string, forceAnalytic, dryRun bool) *wiring {
	if remote != "" {
		return remoteController(doc, remote, dryRun, &logx.Apex{})
	}
	return buildController(doc, forceAnalytic, dryRun, &logx.Apex{})
}

func printDeployReport(r controller.DeployReport) {
	fmt.Printf("deployment %s: %s\n", r.DeploymentID, r.Status)
	for _, l := range r.Links {
		switch l.Status {
		case controller.LinkOK:
			fmt.Printf("  %-12s -> %-12s  ok       snr=%.1fdB sinr=%.1fdB rate=%.1fMbps delay=%.2fms\n",
				l.Link.TxNode, l.Link.RxNode, l.SNRDB, l.SINRDB, l.RateMbps, l.DelayMs)
		case controller.LinkDegraded:
			fmt.Printf("  %-12s -> %-12s  degraded (%s)\n", l.Link.TxNode, l.Link.RxNode, l.Cause)
		case controller.LinkUnmanaged:
			fmt.Printf("  %-12s -> %-12s  unmanaged (%s)\n", l.Link.TxNode, l.Link.RxNode, l.Cause)
		}
	}
}

// serveAndWaitForTeardown mounts the status mux, blocks until SIGINT/SIGTERM,
// then tears down every netem structure Deploy installed before returning —
// the long-running shape a real deployment uses, where status stays pollable
// for as long as the link is live.
func serveAndWaitForTeardown(ctx context.Context, ctrl *controller.Controller, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      controller.NewStatusMux(ctrl),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("wnetctl: status server")
		}
	}()
	log.Infof("wnetctl: status endpoint on %s, deployment running (ctrl-c to tear down)", addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	log.Infof("wnetctl: tearing down")
	return ctrl.Teardown(ctx)
}
