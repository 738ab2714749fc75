package controller

import "context"

// Teardown removes every netem structure this controller's Deploy
// installed, best-effort and idempotent: missing qdiscs, interfaces or
// containers do not fail it. It is a no-op if Deploy ran in dry-run mode or never ran at
// all, since c.pids/c.veth stay empty in that case.
func (c *Controller) Teardown(ctx context.Context) error {
	if c.Programmer == nil {
		return nil
	}

	c.mu.Lock()
	type target struct {
		pid   int
		iface string
	}
	seen := make(map[target]bool)
	var targets []target
	for _, link := range c.links {
		pid, ok := c.pids[link.TxNode]
		if !ok {
			continue
		}
		iface, ok := c.vethNameLocked(link.TxNode, link.TxIface)
		if !ok {
			continue
		}
		t := target{pid: pid, iface: iface}
		if !seen[t] {
			seen[t] = true
			targets = append(targets, t)
		}
	}
	c.mu.Unlock()

	var lastErr error
	for _, t := range targets {
		if err := c.Programmer.Teardown(t.pid, t.iface); err != nil {
			c.Log.Warnf("controller: teardown failed for pid=%d iface=%s: %v", t.pid, t.iface, err)
			lastErr = err
		}
	}
	return lastErr
}

// vethNameLocked is vethName's body without taking c.mu, for callers that
// already hold it.
func (c *Controller) vethNameLocked(node, iface string) (string, bool) {
	ifaces, ok := c.veth[node]
	if !ok {
		return "", false
	}
	name, ok := ifaces[iface]
	return name, ok
}
