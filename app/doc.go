// Package app assembles a runtime: configuration, the class registry,
// the dispatch loop, the session manager and the transport listeners.
// A server runtime calls Run to serve incoming sessions; a client
// runtime calls Connect to open a session to a peer. Both sides use the
// same App type, differing only in which classes they register as local
// and which as proxy.
package app
