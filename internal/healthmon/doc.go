// Package healthmon implements the coordinator's background liveness
// sweep: nodes push heartbeats (via registration traffic and periodic
// MsgRegisterNode-adjacent pings), and this package periodically checks
// whether each connected node's last heartbeat has lapsed past a
// threshold, marking it unhealthy if so.
//
// This is a deliberate inversion of an active-polling health monitor: the
// coordinator never dials out to a node to ask "are you alive" — a
// NodeRecord's last-heartbeat timestamp is only ever updated by the node
// itself contacting the coordinator. The sweep is a passive comparison
// against the clock, run on a fixed cadence (~10s) against a liveness
// threshold (~30s), matching the data model's NodeRecord.
package healthmon
