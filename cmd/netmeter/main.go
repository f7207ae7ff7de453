// Package main provides the entry point for the netmeter CLI.
//
// netmeter runs distributed network-measurement experiments: it hosts a
// key/value data exchange service for remote measurement workers and
// probes batches of HTTP resources for existence and latency.
//
// Usage:
//
//	netmeter probe <page-url>
//	netmeter serve
//
// See --help for all available options.
package main

// main is the entry point for netmeter.
func main() {
	Execute()
}
