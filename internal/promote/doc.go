// Package promote exposes the run, unwind and show commands that drive a branch
// promotion pipeline from configuration.
package promote
