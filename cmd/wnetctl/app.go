package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuamhtsang/sine/internal/channelsvc"
	"github.com/joshuamhtsang/sine/internal/controller"
	"github.com/joshuamhtsang/sine/internal/logx"
	"github.com/joshuamhtsang/sine/internal/metrics"
	"github.com/joshuamhtsang/sine/internal/netprog"
	"github.com/joshuamhtsang/sine/internal/propagation"
	"github.com/joshuamhtsang/sine/internal/scene"
	"github.com/joshuamhtsang/sine/internal/topology"
)

// wiring bundles the per-invocation object graph a CLI verb needs, built
// fresh for every command (there is no long-lived wnetctl daemon; the
// controller itself is what stays resident once deploy has run).
type wiring struct {
	ctrl    *controller.Controller
	metrics *metrics.Registry
}

// buildController assembles a Controller around doc the way cmd/channel-server
// assembles a Service: an analytic engine always wired, a geometric one
// unless forceAnalytic, and a Netem Programmer over the platform's
// [netprog.NetlinkBackend] (no Programmer is built when dryRun, so
// Deploy never reaches the kernel-facing code at all).
func buildController(doc *topology.Document, forceAnalytic, dryRun bool, log logx.Logger) *wiring {
	var geometric propagation.Engine
	if !forceAnalytic {
		geometric = propagation.NewGeometric(propagation.NewIndoorExponentBackend())
	}
	reg := scene.NewRegistry(geometric, propagation.NewAnalyticFSPL())

	promReg := prometheus.NewRegistry()
	m := metrics.NewRegistry(promReg)

	svc := channelsvc.NewService(reg, m, log)
	client := controller.InProcessClient{Service: svc}

	var programmer *netprog.Programmer
	if !dryRun {
		programmer = netprog.NewProgrammer(netprog.NewNetlinkBackend(), netprog.Config{}, m, log)
	}

	ctrl := controller.New(doc, client, programmer, controller.NoopRuntime{}, m, log)
	return &wiring{ctrl: ctrl, metrics: m}
}

// remoteController is the same wiring but against a standalone
// cmd/channel-server instance, for deployments that split the Channel
// Computation Service out of the Emulation Controller process.
func remoteController(doc *topology.Document, remoteAddr string, dryRun bool, log logx.Logger) *wiring {
	promReg := prometheus.NewRegistry()
	m := metrics.NewRegistry(promReg)

	client := &controller.HTTPClient{BaseURL: remoteAddr}

	var programmer *netprog.Programmer
	if !dryRun {
		programmer = netprog.NewProgrammer(netprog.NewNetlinkBackend(), netprog.Config{}, m, log)
	}

	ctrl := controller.New(doc, client, programmer, controller.NoopRuntime{}, m, log)
	return &wiring{ctrl: ctrl, metrics: m}
}
