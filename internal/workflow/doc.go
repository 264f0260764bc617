// Package workflow models the workflow definitions jobs execute: an ordered
// list of steps, each naming a provider and carrying a closed step kind.
//
// Step kinds are a fixed enumeration with an explicit capability flag: only
// import-capable kinds produce page-addressable output that the collection
// bridge may export. The check happens once at that boundary; everything
// else treats steps as opaque.
package workflow
