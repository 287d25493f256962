// Package main implements the FRITZ!Box Prometheus exporter.
//
// The exporter polls a FRITZ!Box router's TR-064 management interface on a
// fixed schedule for connectivity and traffic statistics and exposes the
// collected measurements on a /metrics endpoint, port 9714 by default. The
// collection logic lives in a collectd-style plugin driven through config,
// init, read and shutdown callbacks.
package main
