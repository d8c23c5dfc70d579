package pipeline

import (
	"context"

	"github.com/temirov/glisse/internal/execshell"
)

const (
	shellCommandFlagConstant           = "-c"
	sourceBranchEnvironmentKeyConstant = "GLISSE_SOURCE_BRANCH"
	targetBranchEnvironmentKeyConstant = "GLISSE_TARGET_BRANCH"
	originalSHAEnvironmentKeyConstant  = "GLISSE_ORIGINAL_SHA"
)

// HookInvocation describes one post-merge hook run. OriginalSHA is the commit the
// target branch pointed at before the merge.
type HookInvocation struct {
	Command      string
	SourceBranch string
	TargetBranch string
	OriginalSHA  string
}

// HookRunner executes hook commands. A returned error fails the step.
type HookRunner interface {
	RunHook(executionContext context.Context, invocation HookInvocation) error
}

// ShellExecutor runs commands through the POSIX shell.
type ShellExecutor interface {
	ExecuteShell(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ShellHookRunner runs hooks with sh -c in the repository directory and exposes the
// transition through GLISSE_* environment variables.
type ShellHookRunner struct {
	executor         ShellExecutor
	workingDirectory string
}

// NewShellHookRunner constructs a ShellHookRunner.
func NewShellHookRunner(executor ShellExecutor, workingDirectory string) (*ShellHookRunner, error) {
	if executor == nil {
		return nil, ErrShellExecutorNotConfigured
	}
	return &ShellHookRunner{executor: executor, workingDirectory: workingDirectory}, nil
}

// RunHook executes the hook command and reports non-zero exits as errors.
func (runner *ShellHookRunner) RunHook(executionContext context.Context, invocation HookInvocation) error {
	_, executionError := runner.executor.ExecuteShell(executionContext, execshell.CommandDetails{
		Arguments:        []string{shellCommandFlagConstant, invocation.Command},
		WorkingDirectory: runner.workingDirectory,
		EnvironmentVariables: map[string]string{
			sourceBranchEnvironmentKeyConstant: invocation.SourceBranch,
			targetBranchEnvironmentKeyConstant: invocation.TargetBranch,
			originalSHAEnvironmentKeyConstant:  invocation.OriginalSHA,
		},
	})
	return executionError
}
