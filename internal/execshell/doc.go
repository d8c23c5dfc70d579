// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec behind the CommandRunner abstraction, exposes ShellExecutor
// for running git and shell hook commands with lifecycle logging, and reports
// non-zero exits as CommandFailedError values carrying the captured output.
package execshell
