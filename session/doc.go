// Package session binds the synchronization core to a transport
// channel. A Session owns one channel, a registry of the components
// bound to it, and the inbound command dispatch: INSTANTIATE commands
// adopt a counterpart instance through the class registry, INVOKE
// commands are forwarded to the target component.
//
// The Manager tracks every open session in the process and resolves
// component references for the wire codec.
package session
