package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"

	"github.com/joshuamhtsang/sine/internal/controller"
	"github.com/joshuamhtsang/sine/internal/topology"
)

// runWatch deploys a topology once, then hot-reloads mobility: every time
// the topology file changes on disk, the positions that moved are pushed
// through [controller.Controller.ApplyMobilityTick] instead of a full
// redeploy, so operators can script node movement by rewriting the YAML
// file in place (e.g. from a trace replayer) rather than calling a
// dedicated mobility API.
func runWatch(args []string) error {
	fs := pflag.NewFlagSet("watch", pflag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "resolve and compute every link without touching netem or the container runtime")
	forceAnalytic := fs.Bool("force-analytic", false, "always use the analytic FSPL engine")
	remote := fs.String("remote", "", "address of a standalone channel-server to drive instead of an in-process Channel Service")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("wnetctl watch: expected exactly one topology path, got %d", fs.NArg())
	}
	setLogLevel(*verbose)
	path := fs.Arg(0)

	doc, err := topology.Load(path)
	if err != nil {
		return fmt.Errorf("wnetctl watch: %w", err)
	}
	w := wire(doc, *remote, *forceAnalytic, *dryRun)

	ctx := context.Background()
	report, err := w.ctrl.Deploy(ctx, *dryRun)
	if err != nil {
		return fmt.Errorf("wnetctl watch: %w", err)
	}
	printDeployReport(report)
	positions := snapshotPositions(doc)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("wnetctl watch: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("wnetctl watch: watching %s: %w", path, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	log.Infof("wnetctl: watching %s for mobility updates (ctrl-c to tear down)", path)
	for {
		select {
		case <-sig:
			if *dryRun {
				return nil
			}
			return w.ctrl.Teardown(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("wnetctl: watch")
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := applyMobilityReload(ctx, w.ctrl, path, positions); err != nil {
				log.WithError(err).Warn("wnetctl: mobility reload")
				continue
			}
		}
	}
}

func snapshotPositions(doc *topology.Document) map[controller.NodeInterface]topology.Position {
	out := make(map[controller.NodeInterface]topology.Position)
	for nodeName, node := range doc.Nodes {
		for ifaceName, iface := range node.Interfaces {
			out[controller.NodeInterface{Node: nodeName, Interface: ifaceName}] = iface.Position
		}
	}
	return out
}

// applyMobilityReload reloads path, diffs it against positions, and pushes
// any changed {node, interface} position through a mobility tick. positions
// is updated in place to reflect the reload.
func applyMobilityReload(ctx context.Context, ctrl *controller.Controller, path string, positions map[controller.NodeInterface]topology.Position) error {
	doc, err := topology.Load(path)
	if err != nil {
		return err
	}

	updates := make(map[controller.NodeInterface]topology.Position)
	for nodeName, node := range doc.Nodes {
		for ifaceName, iface := range node.Interfaces {
			key := controller.NodeInterface{Node: nodeName, Interface: ifaceName}
			if prev, ok := positions[key]; !ok || prev != iface.Position {
				updates[key] = iface.Position
			}
		}
	}
	if len(updates) == 0 {
		return nil
	}

	report, err := ctrl.ApplyMobilityTick(ctx, updates)
	if err != nil {
		return err
	}
	for k, v := range updates {
		positions[k] = v
	}

	log.Infof("wnetctl: mobility tick touched %d link(s), delay spread mean=%.1fns max=%.1fns",
		len(report.AffectedLinks), report.DelaySpread.MeanNs, report.DelaySpread.MaxNs)
	return nil
}
