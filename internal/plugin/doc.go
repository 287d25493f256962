// Package plugin implements the FRITZ!Box collection plugin.
//
// The plugin resolves raw configuration entries into a router connection,
// polls a fixed catalog of TR-064 queries each cycle, and dispatches the
// extracted values as measurement records through an injected sink. A failed
// query drops only its own records; the rest of the cycle continues. Both the
// sink and the router connection are injected, so tests substitute recording
// doubles without touching global state.
package plugin
