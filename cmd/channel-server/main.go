// Command channel-server runs the channel computation service as a
// standalone HTTP process, for deployments that run the emulation
// controller against a remote channel-server instance rather than
// in-process.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/joshuamhtsang/sine/internal/channelsvc"
	"github.com/joshuamhtsang/sine/internal/logx"
	"github.com/joshuamhtsang/sine/internal/metrics"
	"github.com/joshuamhtsang/sine/internal/propagation"
	"github.com/joshuamhtsang/sine/internal/scene"
)

func main() {
	addr := pflag.StringP("addr", "a", ":8090", "address to listen on")
	forceAnalytic := pflag.Bool("force-analytic", false, "always use the analytic FSPL engine, even if a geometric backend is wired")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	var geometric propagation.Engine
	if !*forceAnalytic {
		geometric = propagation.NewGeometric(propagation.NewIndoorExponentBackend())
	}
	reg := scene.NewRegistry(geometric, propagation.NewAnalyticFSPL())
	reg.ForceAnalytic = *forceAnalytic

	promReg := prometheus.NewRegistry()
	m := metrics.NewRegistry(promReg)

	svc := channelsvc.NewService(reg, m, &logx.Apex{})

	mux := http.NewServeMux()
	mux.Handle("/", channelsvc.NewMux(svc))
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Infof("channel-server: listening on %s (force_analytic=%v)", *addr, *forceAnalytic)
	if err := server.ListenAndServe(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
