// Package cli constructs the glisse command-line interface. It wires the Cobra
// command hierarchy to the configuration loader, the structured logger, and the
// promote commands.
package cli
