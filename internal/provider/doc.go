// Package provider defines the contract workflow step providers implement
// and a registry the scheduler resolves them from.
//
// Providers are opaque processing units: they receive the parent snapshot's
// data directory plus step parameters and must populate the given output
// directory. The scheduler moves that directory into the tree only after
// the provider reports success, so a provider never observes or mutates
// tree state.
package provider
