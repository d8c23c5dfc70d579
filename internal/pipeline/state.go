package pipeline

import "fmt"

const unknownStepStatusTemplateConstant = "unknown step status %q"

// StepStatus is the outcome of a recorded merge step.
type StepStatus string

// Step statuses as persisted in the state file.
const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusCompleted StepStatus = "COMPLETED"
	StepStatusFailed    StepStatus = "FAILED"
)

func parseStepStatus(rawStatus string) (StepStatus, error) {
	switch StepStatus(rawStatus) {
	case "":
		return StepStatusPending, nil
	case StepStatusPending, StepStatusCompleted, StepStatusFailed:
		return StepStatus(rawStatus), nil
	default:
		return "", fmt.Errorf(unknownStepStatusTemplateConstant, rawStatus)
	}
}

// MergeStep records one source to target transition. OriginalSHA is the commit the
// target pointed at before the merge and is what Unwind resets it to.
type MergeStep struct {
	TargetBranch string     `json:"target_branch" yaml:"target_branch"`
	OriginalSHA  string     `json:"original_sha" yaml:"original_sha"`
	TagsCreated  []string   `json:"tags_created" yaml:"tags_created"`
	Status       StepStatus `json:"status" yaml:"status"`
}

func (step MergeStep) clone() MergeStep {
	step.TagsCreated = append([]string{}, step.TagsCreated...)
	return step
}

// PipelineState is the persisted history of the current run.
type PipelineState struct {
	History []MergeStep `json:"history" yaml:"history"`
}

// IsEmpty reports whether no steps are recorded.
func (state PipelineState) IsEmpty() bool {
	return len(state.History) == 0
}

func (state PipelineState) clone() PipelineState {
	history := make([]MergeStep, 0, len(state.History))
	for _, step := range state.History {
		history = append(history, step.clone())
	}
	return PipelineState{History: history}
}
