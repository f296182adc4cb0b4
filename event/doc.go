// Package event implements the observable property and reaction
// primitive for Flexx components.
//
// This package provides the basic building blocks including Component,
// Event, Reaction, and the cooperative runtime Loop that the
// synchronization layer is built on.
package event
