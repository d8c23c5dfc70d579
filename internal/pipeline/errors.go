package pipeline

import (
	"errors"
	"fmt"
)

const (
	emptyPipelineMessageConstant              = "pipeline requires at least one stage"
	invalidStageErrorTemplateConstant         = "invalid stage %q: %s"
	duplicateStageErrorTemplateConstant       = "stage %q appears at positions %d and %d"
	dirtyWorkingTreeMessageConstant           = "working tree has uncommitted changes; commit or stash them before promoting"
	pendingStateErrorTemplateConstant         = "unresolved pipeline state in %s (%d recorded steps); run unwind before starting a new run"
	corruptStateErrorTemplateConstant         = "state file %s is corrupt: %v"
	hookFailedErrorTemplateConstant           = "hook %q for %s failed: %v"
	repositoryNotConfiguredMessageConstant    = "pipeline engine requires a repository"
	stateStoreNotConfiguredMessageConstant    = "pipeline engine requires a state store"
	hookRunnerNotConfiguredMessageConstant    = "pipeline engine requires a hook runner"
	shellExecutorNotConfiguredMessageConstant = "shell hook runner requires a shell executor"
)

// ErrEmptyPipeline indicates a pipeline was built without stages.
var ErrEmptyPipeline = errors.New(emptyPipelineMessageConstant)

// ErrRepositoryNotConfigured indicates the engine was constructed without a repository adapter.
var ErrRepositoryNotConfigured = errors.New(repositoryNotConfiguredMessageConstant)

// ErrStateStoreNotConfigured indicates the engine was constructed without a state store.
var ErrStateStoreNotConfigured = errors.New(stateStoreNotConfiguredMessageConstant)

// ErrHookRunnerNotConfigured indicates the engine was constructed without a hook runner.
var ErrHookRunnerNotConfigured = errors.New(hookRunnerNotConfiguredMessageConstant)

// ErrShellExecutorNotConfigured indicates a ShellHookRunner without an executor.
var ErrShellExecutorNotConfigured = errors.New(shellExecutorNotConfiguredMessageConstant)

// InvalidStageError reports a stage that cannot name a branch or carries a blank hook.
type InvalidStageError struct {
	Name   string
	Reason string
}

// Error describes the invalid stage.
func (stageError InvalidStageError) Error() string {
	return fmt.Sprintf(invalidStageErrorTemplateConstant, stageError.Name, stageError.Reason)
}

// DuplicateStageError reports a branch listed more than once. Positions are zero based.
type DuplicateStageError struct {
	Name              string
	FirstPosition     int
	DuplicatePosition int
}

// Error describes the duplicate.
func (duplicateError DuplicateStageError) Error() string {
	return fmt.Sprintf(duplicateStageErrorTemplateConstant, duplicateError.Name, duplicateError.FirstPosition, duplicateError.DuplicatePosition)
}

// DirtyWorkingTreeError reports tracked changes that block a run.
type DirtyWorkingTreeError struct{}

// Error describes the dirty tree.
func (DirtyWorkingTreeError) Error() string {
	return dirtyWorkingTreeMessageConstant
}

// PendingStateExistsError reports history left behind by an earlier run.
type PendingStateExistsError struct {
	StateFile string
	Steps     int
}

// Error describes the pending state.
func (pendingError PendingStateExistsError) Error() string {
	return fmt.Sprintf(pendingStateErrorTemplateConstant, pendingError.StateFile, pendingError.Steps)
}

// CorruptStateError reports a state file that cannot be parsed.
type CorruptStateError struct {
	Path string
	Err  error
}

// Error describes the corrupt file.
func (corruptError CorruptStateError) Error() string {
	return fmt.Sprintf(corruptStateErrorTemplateConstant, corruptError.Path, corruptError.Err)
}

// Unwrap exposes the parse failure.
func (corruptError CorruptStateError) Unwrap() error {
	return corruptError.Err
}

// HookFailedError reports a post-merge hook that exited unsuccessfully.
type HookFailedError struct {
	TargetBranch string
	Command      string
	Err          error
}

// Error describes the failed hook.
func (hookError HookFailedError) Error() string {
	return fmt.Sprintf(hookFailedErrorTemplateConstant, hookError.Command, hookError.TargetBranch, hookError.Err)
}

// Unwrap exposes the hook runner failure.
func (hookError HookFailedError) Unwrap() error {
	return hookError.Err
}
