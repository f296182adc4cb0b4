// Package component implements the dual-sided component synchronization
// core for Flexx.
//
// A LocalComponent holds canonical state and replicates relevant changes
// to every attached session; a ProxyComponent stands in for a peer-owned
// component, forwarding action calls outward and accepting mutation and
// event commands inward. Class pairing derives the two sides from one
// declaration.
package component
