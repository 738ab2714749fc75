package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/joshuamhtsang/sine/internal/topology"
)

// runValidate loads and validates a topology declaration without deploying
// it. [topology.Load] already runs [topology.Validate] as its last step, so
// a non-error return is a pass.
func runValidate(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("wnetctl validate: expected exactly one topology path, got %d", fs.NArg())
	}

	doc, err := topology.Load(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("wnetctl validate: %w", err)
	}

	linkCount := 2 * len(doc.Links)
	if doc.SharedBridge != nil && doc.SharedBridge.Enabled {
		n := len(doc.SharedBridge.Nodes)
		linkCount = n * (n - 1)
	}
	fmt.Printf("%s: ok (%d nodes, %d directional links)\n", fs.Arg(0), len(doc.Nodes), linkCount)
	return nil
}
