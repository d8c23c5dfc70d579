// Package pipeline promotes code through an ordered chain of branches.
//
// A Pipeline is an ordered list of Stages. Engine.Run merges every stage into
// its successor, runs the hooks registered for the successor, and records each
// step in a StateStore before and after every repository mutation. Engine.Unwind
// reverses the recorded steps last-in first-out, deleting the tags each step
// created and resetting its target branch to the commit it had before the run.
package pipeline
