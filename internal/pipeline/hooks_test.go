package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/glisse/internal/execshell"
	"github.com/temirov/glisse/internal/pipeline"
)

type recordingShellExecutor struct {
	recordedDetails []execshell.CommandDetails
	executionError  error
}

func (executor *recordingShellExecutor) ExecuteShell(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	if executor.executionError != nil {
		return execshell.ExecutionResult{}, executor.executionError
	}
	return execshell.ExecutionResult{ExitCode: 0}, nil
}

func TestNewShellHookRunnerRequiresExecutor(testInstance *testing.T) {
	_, runnerError := pipeline.NewShellHookRunner(nil, "/srv/project")
	require.ErrorIs(testInstance, runnerError, pipeline.ErrShellExecutorNotConfigured)
}

func TestShellHookRunnerRunsCommandThroughShell(testInstance *testing.T) {
	executor := &recordingShellExecutor{}
	runner, runnerError := pipeline.NewShellHookRunner(executor, "/srv/project")
	require.NoError(testInstance, runnerError)

	hookError := runner.RunHook(context.Background(), pipeline.HookInvocation{
		Command:      "bumpversion --tag patch",
		SourceBranch: "staging",
		TargetBranch: "main",
		OriginalSHA:  testOriginalSHAConstant,
	})
	require.NoError(testInstance, hookError)

	require.Len(testInstance, executor.recordedDetails, 1)
	details := executor.recordedDetails[0]
	require.Equal(testInstance, []string{"-c", "bumpversion --tag patch"}, details.Arguments)
	require.Equal(testInstance, "/srv/project", details.WorkingDirectory)
	require.Equal(testInstance, map[string]string{
		"GLISSE_SOURCE_BRANCH": "staging",
		"GLISSE_TARGET_BRANCH": "main",
		"GLISSE_ORIGINAL_SHA":  testOriginalSHAConstant,
	}, details.EnvironmentVariables)
}

func TestShellHookRunnerPropagatesFailure(testInstance *testing.T) {
	commandFailure := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandShell, Details: execshell.CommandDetails{Arguments: []string{"-c", "exit 3"}}},
		Result:  execshell.ExecutionResult{ExitCode: 3},
	}
	runner, runnerError := pipeline.NewShellHookRunner(&recordingShellExecutor{executionError: commandFailure}, "/srv/project")
	require.NoError(testInstance, runnerError)

	hookError := runner.RunHook(context.Background(), pipeline.HookInvocation{Command: "exit 3", TargetBranch: "main"})

	var failedError execshell.CommandFailedError
	require.True(testInstance, errors.As(hookError, &failedError))
	require.Equal(testInstance, 3, failedError.Result.ExitCode)
}
