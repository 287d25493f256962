// Package tr064 provides a client for the TR-064 (SOAP/UPnP) management
// interface of FRITZ!Box routers.
//
// The client fetches the device description document once at connect time to
// discover the advertised services and the device model name, then issues
// SOAP actions against the service control URLs. Responses come back as flat
// maps of argument name to value. Authentication uses HTTP digest, answered
// on demand when the router challenges a request.
package tr064
