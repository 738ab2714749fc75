// Package sine is a wireless network emulator that projects the output of
// a radio-propagation model onto a set of Linux containers connected by
// virtual Ethernet links.
//
// Given a declarative topology ([topology.Document]: nodes, radios,
// links), the emulator computes per-direction channel quality metrics
// (SNR/SINR, BER, PER, effective rate, delay) and installs matching
// netem disciplines on each container's interfaces, so that application
// traffic experiences the loss, delay and rate budget the modelled RF
// channel would impose.
//
// Three groups of packages carry the physics and the actuation:
//
//   - [internal/propagation], [internal/linkbudget], [internal/modulation]
//     and [internal/interference] implement the channel model: path loss,
//     link budget, BER/BLER/PER and adaptive MCS selection, and
//     multi-transmitter SINR aggregation with ACLR filtering.
//
//   - [internal/channelsvc] exposes that model as an HTTP service: load a
//     scene, compute a directional link or a receiver's SINR, and read or
//     update the process-wide transmission state.
//
//   - [internal/netprog] turns a computed link characterisation into
//     concrete netem qdiscs, classes and filters inside a container's
//     network namespace, in either point-to-point or shared-bridge mode.
//
// [internal/controller] is the orchestrator: it resolves a
// [topology.Document] into directional links, drives the channel service
// for each of them, and hands the results to the netem programmer. The
// two binaries in cmd/ wrap these packages: cmd/channel-server runs the
// HTTP service standalone, and cmd/wnetctl drives the controller lifecycle
// (deploy/destroy/status/validate) from the command line.
package sine
