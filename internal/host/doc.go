// Package host drives the plugin lifecycle the way a collection daemon does.
//
// The plugin registers four callbacks (config, init, read, shutdown). Run
// delivers configuration once, initializes once, then invokes the read
// callback serially on every tick until the context is cancelled, at which
// point the shutdown callback releases the plugin's resources. Records
// dispatched during a read cycle land in the Bridge, which re-exports the
// most recent value of each measurement as Prometheus gauges.
package host
