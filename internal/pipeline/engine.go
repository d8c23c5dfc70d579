package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

const (
	mergeMessageTemplateConstant          = "Automated merge from %s"
	mergingProgressTemplateConstant       = ">>> Merging %s -> %s"
	mergedProgressTemplateConstant        = "Merged %s -> %s"
	pipelineCompleteMessageConstant       = "Pipeline complete."
	rollingBackProgressTemplateConstant   = "Rolling back %s..."
	nothingToUndoMessageConstant          = "Nothing to undo."
	unwindCompleteMessageConstant         = "Unwind complete."
	transitionErrorTemplateConstant       = "promote %s -> %s: %w"
	snapshotTagsErrorTemplateConstant     = "list tags: %w"
	snapshotRevisionErrorTemplateConstant = "resolve %s: %w"
	checkoutErrorTemplateConstant         = "checkout %s: %w"
	mergeErrorTemplateConstant            = "merge %s into %s: %w"
	resetErrorTemplateConstant            = "reset %s to %s: %w"
	workingTreeErrorTemplateConstant      = "inspect working tree: %w"
	rollbackErrorTemplateConstant         = "roll back %s: %w"
	deleteTagErrorTemplateConstant        = "delete tag %s: %w"
	stepStartedLogMessageConstant         = "merge step started"
	stepCompletedLogMessageConstant       = "merge step completed"
	stepFailedLogMessageConstant          = "merge step failed"
	hookStartedLogMessageConstant         = "running hook"
	stepRevertedLogMessageConstant        = "merge step reverted"
	tagDeletionFailedLogMessageConstant   = "tag deletion failed"
	stateFailurePersistLogMessageConstant = "unable to persist failed step"
	logFieldSourceBranchConstant          = "source_branch"
	logFieldTargetBranchConstant          = "target_branch"
	logFieldOriginalSHAConstant           = "original_sha"
	logFieldTagsCreatedConstant           = "tags_created"
	logFieldStatusConstant                = "status"
	logFieldHookCommandConstant           = "hook_command"
	logFieldTagConstant                   = "tag"
	logFieldStateFileConstant             = "state_file"
)

// RepositoryAdapter is the version-control boundary the engine drives. Every
// method either succeeds or returns an error; none retries.
type RepositoryAdapter interface {
	CurrentSHA(executionContext context.Context, branch string) (string, error)
	ListTags(executionContext context.Context) ([]string, error)
	DeleteTag(executionContext context.Context, tag string) error
	Checkout(executionContext context.Context, branch string) error
	Merge(executionContext context.Context, sourceBranch string, message string) error
	ResetHard(executionContext context.Context, branch string, sha string) error
	IsWorkingTreeClean(executionContext context.Context) (bool, error)
}

// EngineDependencies enumerates the collaborators required by the engine.
type EngineDependencies struct {
	Repository RepositoryAdapter
	StateStore *StateStore
	HookRunner HookRunner
	Logger     *zap.Logger
	Output     io.Writer
	// RetainCompletedState keeps the state file after a successful run so the
	// whole run can still be unwound.
	RetainCompletedState bool
}

// RunResult reports a completed run.
type RunResult struct {
	History []MergeStep
}

// TagDeletionFailure records a tag that Unwind could not delete.
type TagDeletionFailure struct {
	TargetBranch string
	Tag          string
	Err          error
}

// UnwindResult reports what Unwind reversed.
type UnwindResult struct {
	NothingToUndo       bool
	RevertedSteps       []MergeStep
	TagDeletionFailures []TagDeletionFailure
}

// Engine executes pipelines and reverses them.
type Engine struct {
	repository           RepositoryAdapter
	stateStore           *StateStore
	hookRunner           HookRunner
	logger               *zap.Logger
	output               io.Writer
	retainCompletedState bool
}

// NewEngine validates dependencies and constructs an Engine. A nil logger or output
// is replaced with a no-op.
func NewEngine(dependencies EngineDependencies) (*Engine, error) {
	if dependencies.Repository == nil {
		return nil, ErrRepositoryNotConfigured
	}
	if dependencies.StateStore == nil {
		return nil, ErrStateStoreNotConfigured
	}
	if dependencies.HookRunner == nil {
		return nil, ErrHookRunnerNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	output := dependencies.Output
	if output == nil {
		output = io.Discard
	}

	return &Engine{
		repository:           dependencies.Repository,
		stateStore:           dependencies.StateStore,
		hookRunner:           dependencies.HookRunner,
		logger:               logger,
		output:               output,
		retainCompletedState: dependencies.RetainCompletedState,
	}, nil
}

// Run merges every stage of the pipeline into its successor. It refuses to start
// when unresolved history exists or the working tree is dirty. On failure the
// state file keeps every step recorded so far, the failing one marked FAILED.
func (engine *Engine) Run(executionContext context.Context, pipeline Pipeline) (RunResult, error) {
	existingState, loadError := engine.stateStore.Load()
	if loadError != nil {
		return RunResult{}, loadError
	}
	if !existingState.IsEmpty() {
		return RunResult{}, PendingStateExistsError{StateFile: engine.stateStore.Path(), Steps: len(existingState.History)}
	}

	clean, statusError := engine.repository.IsWorkingTreeClean(executionContext)
	if statusError != nil {
		return RunResult{}, fmt.Errorf(workingTreeErrorTemplateConstant, statusError)
	}
	if !clean {
		return RunResult{}, DirtyWorkingTreeError{}
	}

	state := PipelineState{History: []MergeStep{}}
	for _, transition := range pipeline.Transitions() {
		if stepError := engine.promote(executionContext, &state, transition); stepError != nil {
			return RunResult{History: state.clone().History}, fmt.Errorf(transitionErrorTemplateConstant, transition.Source.Name, transition.Target.Name, stepError)
		}
	}

	if !engine.retainCompletedState {
		if deleteError := engine.stateStore.Delete(); deleteError != nil {
			return RunResult{History: state.clone().History}, deleteError
		}
	}
	engine.printLine(pipelineCompleteMessageConstant)
	return RunResult{History: state.clone().History}, nil
}

func (engine *Engine) promote(executionContext context.Context, state *PipelineState, transition Transition) error {
	sourceBranch := transition.Source.Name
	targetBranch := transition.Target.Name
	engine.printLine(fmt.Sprintf(mergingProgressTemplateConstant, sourceBranch, targetBranch))

	preTags, tagsError := engine.repository.ListTags(executionContext)
	if tagsError != nil {
		return fmt.Errorf(snapshotTagsErrorTemplateConstant, tagsError)
	}
	originalSHA, revisionError := engine.repository.CurrentSHA(executionContext, targetBranch)
	if revisionError != nil {
		return fmt.Errorf(snapshotRevisionErrorTemplateConstant, targetBranch, revisionError)
	}

	state.History = append(state.History, MergeStep{
		TargetBranch: targetBranch,
		OriginalSHA:  originalSHA,
		TagsCreated:  []string{},
		Status:       StepStatusPending,
	})
	stepIndex := len(state.History) - 1
	if saveError := engine.stateStore.Save(*state); saveError != nil {
		return saveError
	}

	engine.logger.Info(
		stepStartedLogMessageConstant,
		zap.String(logFieldSourceBranchConstant, sourceBranch),
		zap.String(logFieldTargetBranchConstant, targetBranch),
		zap.String(logFieldOriginalSHAConstant, originalSHA),
	)

	if checkoutError := engine.repository.Checkout(executionContext, targetBranch); checkoutError != nil {
		return engine.failStep(state, stepIndex, sourceBranch, fmt.Errorf(checkoutErrorTemplateConstant, targetBranch, checkoutError))
	}
	mergeMessage := fmt.Sprintf(mergeMessageTemplateConstant, sourceBranch)
	if mergeError := engine.repository.Merge(executionContext, sourceBranch, mergeMessage); mergeError != nil {
		return engine.failStep(state, stepIndex, sourceBranch, fmt.Errorf(mergeErrorTemplateConstant, sourceBranch, targetBranch, mergeError))
	}

	if recordError := engine.recordCreatedTags(executionContext, state, stepIndex, preTags); recordError != nil {
		return engine.failStep(state, stepIndex, sourceBranch, recordError)
	}

	for _, hookCommand := range transition.Target.Hooks {
		engine.logger.Info(
			hookStartedLogMessageConstant,
			zap.String(logFieldTargetBranchConstant, targetBranch),
			zap.String(logFieldHookCommandConstant, hookCommand),
		)
		hookError := engine.hookRunner.RunHook(executionContext, HookInvocation{
			Command:      hookCommand,
			SourceBranch: sourceBranch,
			TargetBranch: targetBranch,
			OriginalSHA:  originalSHA,
		})
		if hookError != nil {
			var stepError error = HookFailedError{TargetBranch: targetBranch, Command: hookCommand, Err: hookError}
			if recordError := engine.recordCreatedTags(executionContext, state, stepIndex, preTags); recordError != nil {
				stepError = errors.Join(stepError, recordError)
			}
			return engine.failStep(state, stepIndex, sourceBranch, stepError)
		}
	}

	if len(transition.Target.Hooks) > 0 {
		if recordError := engine.recordCreatedTags(executionContext, state, stepIndex, preTags); recordError != nil {
			return engine.failStep(state, stepIndex, sourceBranch, recordError)
		}
	}

	state.History[stepIndex].Status = StepStatusCompleted
	if saveError := engine.stateStore.Save(*state); saveError != nil {
		return saveError
	}

	engine.logger.Info(
		stepCompletedLogMessageConstant,
		zap.String(logFieldSourceBranchConstant, sourceBranch),
		zap.String(logFieldTargetBranchConstant, targetBranch),
		zap.Strings(logFieldTagsCreatedConstant, state.History[stepIndex].TagsCreated),
		zap.String(logFieldStatusConstant, string(StepStatusCompleted)),
	)
	engine.printLine(fmt.Sprintf(mergedProgressTemplateConstant, sourceBranch, targetBranch))
	return nil
}

// recordCreatedTags attributes every tag that did not exist before the step to it
// and persists the result.
func (engine *Engine) recordCreatedTags(executionContext context.Context, state *PipelineState, stepIndex int, preTags []string) error {
	postTags, tagsError := engine.repository.ListTags(executionContext)
	if tagsError != nil {
		return fmt.Errorf(snapshotTagsErrorTemplateConstant, tagsError)
	}
	state.History[stepIndex].TagsCreated = tagDifference(postTags, preTags)
	return engine.stateStore.Save(*state)
}

func (engine *Engine) failStep(state *PipelineState, stepIndex int, sourceBranch string, stepError error) error {
	state.History[stepIndex].Status = StepStatusFailed
	failedStep := state.History[stepIndex]

	engine.logger.Error(
		stepFailedLogMessageConstant,
		zap.String(logFieldSourceBranchConstant, sourceBranch),
		zap.String(logFieldTargetBranchConstant, failedStep.TargetBranch),
		zap.String(logFieldOriginalSHAConstant, failedStep.OriginalSHA),
		zap.Strings(logFieldTagsCreatedConstant, failedStep.TagsCreated),
		zap.String(logFieldStatusConstant, string(StepStatusFailed)),
		zap.Error(stepError),
	)

	if saveError := engine.stateStore.Save(*state); saveError != nil {
		engine.logger.Error(stateFailurePersistLogMessageConstant, zap.String(logFieldStateFileConstant, engine.stateStore.Path()), zap.Error(saveError))
		return errors.Join(stepError, saveError)
	}
	return stepError
}

// Unwind reverses the recorded history last step first. For each step it deletes
// the step's tags, checks out the target branch and resets it to the original
// commit. Tag deletion failures are collected and do not stop the unwind; checkout
// and reset failures do. After each reversed step the shortened history is saved,
// so a later Unwind resumes with the remaining steps.
func (engine *Engine) Unwind(executionContext context.Context) (UnwindResult, error) {
	state, loadError := engine.stateStore.Load()
	if loadError != nil {
		return UnwindResult{}, loadError
	}
	if state.IsEmpty() {
		if deleteError := engine.stateStore.Delete(); deleteError != nil {
			return UnwindResult{}, deleteError
		}
		engine.printLine(nothingToUndoMessageConstant)
		return UnwindResult{NothingToUndo: true}, nil
	}

	result := UnwindResult{RevertedSteps: []MergeStep{}, TagDeletionFailures: []TagDeletionFailure{}}
	for len(state.History) > 0 {
		lastIndex := len(state.History) - 1
		step := state.History[lastIndex]
		engine.printLine(fmt.Sprintf(rollingBackProgressTemplateConstant, step.TargetBranch))

		for _, tag := range step.TagsCreated {
			if deleteError := engine.repository.DeleteTag(executionContext, tag); deleteError != nil {
				engine.logger.Warn(
					tagDeletionFailedLogMessageConstant,
					zap.String(logFieldTargetBranchConstant, step.TargetBranch),
					zap.String(logFieldTagConstant, tag),
					zap.Error(deleteError),
				)
				result.TagDeletionFailures = append(result.TagDeletionFailures, TagDeletionFailure{
					TargetBranch: step.TargetBranch,
					Tag:          tag,
					Err:          fmt.Errorf(deleteTagErrorTemplateConstant, tag, deleteError),
				})
			}
		}

		if checkoutError := engine.repository.Checkout(executionContext, step.TargetBranch); checkoutError != nil {
			return result, fmt.Errorf(rollbackErrorTemplateConstant, step.TargetBranch, fmt.Errorf(checkoutErrorTemplateConstant, step.TargetBranch, checkoutError))
		}
		if resetError := engine.repository.ResetHard(executionContext, step.TargetBranch, step.OriginalSHA); resetError != nil {
			return result, fmt.Errorf(rollbackErrorTemplateConstant, step.TargetBranch, fmt.Errorf(resetErrorTemplateConstant, step.TargetBranch, step.OriginalSHA, resetError))
		}

		state.History = state.History[:lastIndex]
		if saveError := engine.stateStore.Save(state); saveError != nil {
			return result, saveError
		}
		result.RevertedSteps = append(result.RevertedSteps, step.clone())

		engine.logger.Info(
			stepRevertedLogMessageConstant,
			zap.String(logFieldTargetBranchConstant, step.TargetBranch),
			zap.String(logFieldOriginalSHAConstant, step.OriginalSHA),
			zap.Strings(logFieldTagsCreatedConstant, step.TagsCreated),
			zap.String(logFieldStatusConstant, string(step.Status)),
		)
	}

	if deleteError := engine.stateStore.Delete(); deleteError != nil {
		return result, deleteError
	}
	engine.printLine(unwindCompleteMessageConstant)
	return result, nil
}

func (engine *Engine) printLine(message string) {
	fmt.Fprintln(engine.output, message)
}

// tagDifference returns the tags in postTags that are absent from preTags, in postTags order.
func tagDifference(postTags []string, preTags []string) []string {
	existingTags := make(map[string]struct{}, len(preTags))
	for _, tag := range preTags {
		existingTags[tag] = struct{}{}
	}
	createdTags := make([]string, 0)
	for _, tag := range postTags {
		if _, existed := existingTags[tag]; !existed {
			createdTags = append(createdTags, tag)
		}
	}
	return createdTags
}
