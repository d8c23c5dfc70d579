package gitrepo_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/glisse/internal/execshell"
	"github.com/temirov/glisse/internal/gitrepo"
)

const (
	testRepositoryPathConstant = "/srv/project"
	testCommitHashConstant     = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
)

type stubGitExecutor struct {
	responses        map[string]execshell.ExecutionResult
	executionErrors  map[string]error
	recordedCommands []execshell.CommandDetails
}

func newStubGitExecutor() *stubGitExecutor {
	return &stubGitExecutor{
		responses:       map[string]execshell.ExecutionResult{},
		executionErrors: map[string]error{},
	}
}

func (executor *stubGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedCommands = append(executor.recordedCommands, details)
	commandKey := strings.Join(details.Arguments, " ")
	if executionError, exists := executor.executionErrors[commandKey]; exists {
		return execshell.ExecutionResult{}, executionError
	}
	return executor.responses[commandKey], nil
}

func (executor *stubGitExecutor) failWithExitCode(commandKey string, exitCode int, standardError string) {
	executor.executionErrors[commandKey] = execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{Arguments: strings.Fields(commandKey)}},
		Result:  execshell.ExecutionResult{ExitCode: exitCode, StandardError: standardError},
	}
}

func (executor *stubGitExecutor) recordedCommandKeys() []string {
	commandKeys := make([]string, 0, len(executor.recordedCommands))
	for _, details := range executor.recordedCommands {
		commandKeys = append(commandKeys, strings.Join(details.Arguments, " "))
	}
	return commandKeys
}

func TestNewRepositoryManagerValidation(testInstance *testing.T) {
	_, missingExecutorError := gitrepo.NewRepositoryManager(nil, testRepositoryPathConstant)
	require.ErrorIs(testInstance, missingExecutorError, gitrepo.ErrGitExecutorNotConfigured)

	_, missingPathError := gitrepo.NewRepositoryManager(newStubGitExecutor(), "  ")
	require.ErrorIs(testInstance, missingPathError, gitrepo.ErrRepositoryPathNotProvided)
}

func TestRepositoryManagerQueries(testInstance *testing.T) {
	executor := newStubGitExecutor()
	executor.responses["rev-parse --verify refs/heads/main^{commit}"] = execshell.ExecutionResult{StandardOutput: testCommitHashConstant + "\n"}
	executor.responses["tag --list"] = execshell.ExecutionResult{StandardOutput: "v1.0.0\n\nv1.1.0\n"}
	executor.responses["status --porcelain --untracked-files=no"] = execshell.ExecutionResult{StandardOutput: " M pyproject.toml\n"}

	manager, creationError := gitrepo.NewRepositoryManager(executor, testRepositoryPathConstant)
	require.NoError(testInstance, creationError)

	sha, shaError := manager.CurrentSHA(context.Background(), "main")
	require.NoError(testInstance, shaError)
	require.Equal(testInstance, testCommitHashConstant, sha)

	tags, tagsError := manager.ListTags(context.Background())
	require.NoError(testInstance, tagsError)
	require.Equal(testInstance, []string{"v1.0.0", "v1.1.0"}, tags)

	clean, statusError := manager.IsWorkingTreeClean(context.Background())
	require.NoError(testInstance, statusError)
	require.False(testInstance, clean)

	for _, details := range executor.recordedCommands {
		require.Equal(testInstance, testRepositoryPathConstant, details.WorkingDirectory)
	}
}

func TestRepositoryManagerListTagsEmptyRepository(testInstance *testing.T) {
	manager, creationError := gitrepo.NewRepositoryManager(newStubGitExecutor(), testRepositoryPathConstant)
	require.NoError(testInstance, creationError)

	tags, tagsError := manager.ListTags(context.Background())
	require.NoError(testInstance, tagsError)
	require.NotNil(testInstance, tags)
	require.Empty(testInstance, tags)
}

func TestRepositoryManagerMergeAbortsOnFailure(testInstance *testing.T) {
	testCases := []struct {
		name             string
		mergeFails       bool
		abortFails       bool
		expectedCommands []string
	}{
		{
			name:             "successful_merge",
			expectedCommands: []string{"merge --no-ff -m Automated merge from dev refs/heads/dev"},
		},
		{
			name:       "conflicting_merge",
			mergeFails: true,
			expectedCommands: []string{
				"merge --no-ff -m Automated merge from dev refs/heads/dev",
				"merge --abort",
			},
		},
		{
			name:       "failed_abort",
			mergeFails: true,
			abortFails: true,
			expectedCommands: []string{
				"merge --no-ff -m Automated merge from dev refs/heads/dev",
				"merge --abort",
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := newStubGitExecutor()
			if testCase.mergeFails {
				executor.failWithExitCode("merge --no-ff -m Automated merge from dev refs/heads/dev", 1, "CONFLICT (content): Merge conflict in app.py")
			}
			if testCase.abortFails {
				executor.failWithExitCode("merge --abort", 128, "fatal: There is no merge to abort (MERGE_HEAD missing).")
			}

			manager, creationError := gitrepo.NewRepositoryManager(executor, testRepositoryPathConstant)
			require.NoError(testInstance, creationError)

			mergeError := manager.Merge(context.Background(), "dev", "Automated merge from dev")
			require.Equal(testInstance, testCase.expectedCommands, executor.recordedCommandKeys())

			if !testCase.mergeFails {
				require.NoError(testInstance, mergeError)
				return
			}

			var commandError gitrepo.RepositoryCommandError
			require.ErrorAs(testInstance, mergeError, &commandError)
			require.Equal(testInstance, 1, commandError.ExitCode)
			require.Contains(testInstance, commandError.StandardError, "Merge conflict")
			require.Contains(testInstance, mergeError.Error(), "git merge --no-ff")
			if testCase.abortFails {
				require.Contains(testInstance, mergeError.Error(), "git merge --abort failed with exit code 128")
			} else {
				require.NotContains(testInstance, mergeError.Error(), "merge --abort")
			}
		})
	}
}

func TestRepositoryManagerResetHardRequiresCheckedOutBranch(testInstance *testing.T) {
	testCases := []struct {
		name             string
		headReference    string
		expectMismatch   bool
		expectedActual   string
		expectedCommands []string
	}{
		{
			name:          "matching_branch",
			headReference: "refs/heads/staging",
			expectedCommands: []string{
				"rev-parse --symbolic-full-name HEAD",
				"reset --hard " + testCommitHashConstant,
			},
		},
		{
			name:             "other_branch",
			headReference:    "refs/heads/main",
			expectMismatch:   true,
			expectedActual:   "main",
			expectedCommands: []string{"rev-parse --symbolic-full-name HEAD"},
		},
		{
			name:             "detached_head",
			headReference:    "HEAD",
			expectMismatch:   true,
			expectedActual:   "HEAD",
			expectedCommands: []string{"rev-parse --symbolic-full-name HEAD"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := newStubGitExecutor()
			executor.responses["rev-parse --symbolic-full-name HEAD"] = execshell.ExecutionResult{StandardOutput: testCase.headReference + "\n"}

			manager, creationError := gitrepo.NewRepositoryManager(executor, testRepositoryPathConstant)
			require.NoError(testInstance, creationError)

			resetError := manager.ResetHard(context.Background(), "staging", testCommitHashConstant)
			require.Equal(testInstance, testCase.expectedCommands, executor.recordedCommandKeys())
			if testCase.expectMismatch {
				var branchError gitrepo.UnexpectedBranchError
				require.ErrorAs(testInstance, resetError, &branchError)
				require.Equal(testInstance, "staging", branchError.Expected)
				require.Equal(testInstance, testCase.expectedActual, branchError.Actual)
				return
			}
			require.NoError(testInstance, resetError)
		})
	}
}

func TestRepositoryManagerCurrentBranch(testInstance *testing.T) {
	testCases := []struct {
		name           string
		headReference  string
		expectedBranch string
	}{
		{name: "attached", headReference: "refs/heads/release/1.2", expectedBranch: "release/1.2"},
		{name: "detached", headReference: "HEAD", expectedBranch: "HEAD"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := newStubGitExecutor()
			executor.responses["rev-parse --symbolic-full-name HEAD"] = execshell.ExecutionResult{StandardOutput: testCase.headReference + "\n"}

			manager, creationError := gitrepo.NewRepositoryManager(executor, testRepositoryPathConstant)
			require.NoError(testInstance, creationError)

			branch, branchError := manager.CurrentBranch(context.Background())
			require.NoError(testInstance, branchError)
			require.Equal(testInstance, testCase.expectedBranch, branch)
		})
	}
}

func TestRepositoryManagerWrapsExecutionFailures(testInstance *testing.T) {
	executor := newStubGitExecutor()
	executor.executionErrors["checkout main --"] = execshell.CommandExecutionError{Cause: errors.New("executable file not found")}

	manager, creationError := gitrepo.NewRepositoryManager(executor, testRepositoryPathConstant)
	require.NoError(testInstance, creationError)

	checkoutError := manager.Checkout(context.Background(), "main")

	var commandError gitrepo.RepositoryCommandError
	require.ErrorAs(testInstance, checkoutError, &commandError)
	require.Equal(testInstance, -1, commandError.ExitCode)
	require.Equal(testInstance, []string{"checkout", "main", "--"}, commandError.Command)

	var executionError execshell.CommandExecutionError
	require.ErrorAs(testInstance, checkoutError, &executionError)
}

func TestRepositoryManagerDeleteTag(testInstance *testing.T) {
	executor := newStubGitExecutor()
	executor.failWithExitCode("tag --delete v9.9.9", 1, "error: tag 'v9.9.9' not found.")

	manager, creationError := gitrepo.NewRepositoryManager(executor, testRepositoryPathConstant)
	require.NoError(testInstance, creationError)

	require.NoError(testInstance, manager.DeleteTag(context.Background(), "v1.0.0"))

	deleteError := manager.DeleteTag(context.Background(), "v9.9.9")
	require.Error(testInstance, deleteError)
	require.Equal(testInstance, "git tag --delete v9.9.9 failed with exit code 1: error: tag 'v9.9.9' not found.", deleteError.Error())
}
