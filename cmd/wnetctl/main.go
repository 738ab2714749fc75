// Command wnetctl drives the emulation controller's lifecycle from the
// command line: deploy, destroy, status and validate a topology
// declaration, plus a watch verb that hot-reloads node positions from
// the topology file as they change.
package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "deploy":
		err = runDeploy(os.Args[2:])
	case "destroy":
		err = runDestroy(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "wnetctl: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.WithError(err).Error("wnetctl")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `wnetctl deploys and manages a wireless-network-emulator topology.

Usage:
  wnetctl deploy <topology.yaml> [flags]
  wnetctl destroy <topology.yaml> [flags]
  wnetctl status [flags]
  wnetctl validate <topology.yaml>
  wnetctl watch <topology.yaml> [flags]

Run "wnetctl <command> -h" for flags specific to that command.`)
}
