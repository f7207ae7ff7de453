// Package runner executes measurement tooling on local and remote
// hosts.
//
// The Runner interface abstracts where a shell command runs: Local
// executes through sh on this machine, SSH opens a session per command
// on a remote one, and NewHost picks between them by hostname. On top
// of that sit thin wrappers for the tools an experiment drives, iperf
// traffic generation and tcpdump packet capture, which assemble the
// command line, start it, and collect output on stop.
package runner
