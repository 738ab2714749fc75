package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/joshuamhtsang/sine/internal/logx"
	"github.com/joshuamhtsang/sine/internal/metrics"
	"github.com/joshuamhtsang/sine/internal/netprog"
	"github.com/joshuamhtsang/sine/internal/topology"
)

// runDestroy tears down every netem structure a topology's interfaces
// could carry, best-effort and idempotent. It rebuilds the same
// deterministic pid/veth mapping [controller.NoopRuntime] uses rather than
// depending on a live Deploy's in-memory state, so destroy works as a
// standalone command against a topology deployed by an earlier process.
func runDestroy(args []string) error {
	fs := pflag.NewFlagSet("destroy", pflag.ExitOnError)
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("wnetctl destroy: expected exactly one topology path, got %d", fs.NArg())
	}
	setLogLevel(*verbose)

	doc, err := topology.Load(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("wnetctl destroy: %w", err)
	}

	m := metrics.NewRegistry(prometheus.NewRegistry())
	programmer := netprog.NewProgrammer(netprog.NewNetlinkBackend(), netprog.Config{}, m, &logx.Apex{})

	var lastErr error
	for nodeName, node := range doc.Nodes {
		for ifaceName := range node.Interfaces {
			vethName := fmt.Sprintf("veth-%s-%s", nodeName, ifaceName)
			if err := programmer.Teardown(0, vethName); err != nil {
				lastErr = fmt.Errorf("wnetctl destroy: %s/%s: %w", nodeName, ifaceName, err)
			}
		}
	}
	return lastErr
}
