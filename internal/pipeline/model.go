package pipeline

import (
	"strings"
	"unicode"
)

const (
	stageSeparatorConstant           = " > "
	invalidStageEmptyNameConstant    = "stage name is empty"
	invalidStageWhitespaceConstant   = "stage name contains whitespace"
	invalidStageLeadingDashConstant  = "stage name starts with '-'"
	invalidStageBlankHookConstant    = "hook command is blank"
	stageNameLeadingDashCharConstant = "-"
)

// Stage is one branch position in the promotion chain with the hook commands
// run after a successful merge into it.
type Stage struct {
	Name  string
	Hooks []string
}

func (stage Stage) clone() Stage {
	return Stage{Name: stage.Name, Hooks: append([]string{}, stage.Hooks...)}
}

// Transition is a single source to target merge of a pipeline.
type Transition struct {
	Source Stage
	Target Stage
}

// Pipeline is an ordered, validated chain of at least one stage.
type Pipeline struct {
	stages []Stage
}

// NewPipeline validates the stages and fixes their order.
func NewPipeline(stages ...Stage) (Pipeline, error) {
	if len(stages) == 0 {
		return Pipeline{}, ErrEmptyPipeline
	}

	seenNames := make(map[string]int, len(stages))
	validatedStages := make([]Stage, 0, len(stages))
	for stageIndex, stage := range stages {
		if validationError := validateStage(stage); validationError != nil {
			return Pipeline{}, validationError
		}
		if firstIndex, duplicate := seenNames[stage.Name]; duplicate {
			return Pipeline{}, DuplicateStageError{Name: stage.Name, FirstPosition: firstIndex, DuplicatePosition: stageIndex}
		}
		seenNames[stage.Name] = stageIndex
		validatedStages = append(validatedStages, stage.clone())
	}

	return Pipeline{stages: validatedStages}, nil
}

func validateStage(stage Stage) error {
	switch {
	case len(stage.Name) == 0:
		return InvalidStageError{Name: stage.Name, Reason: invalidStageEmptyNameConstant}
	case strings.IndexFunc(stage.Name, unicode.IsSpace) >= 0:
		return InvalidStageError{Name: stage.Name, Reason: invalidStageWhitespaceConstant}
	case strings.HasPrefix(stage.Name, stageNameLeadingDashCharConstant):
		return InvalidStageError{Name: stage.Name, Reason: invalidStageLeadingDashConstant}
	}
	for _, hookCommand := range stage.Hooks {
		if len(strings.TrimSpace(hookCommand)) == 0 {
			return InvalidStageError{Name: stage.Name, Reason: invalidStageBlankHookConstant}
		}
	}
	return nil
}

// Stages returns a copy of the stages in promotion order.
func (pipeline Pipeline) Stages() []Stage {
	stages := make([]Stage, 0, len(pipeline.stages))
	for _, stage := range pipeline.stages {
		stages = append(stages, stage.clone())
	}
	return stages
}

// Len returns the number of stages.
func (pipeline Pipeline) Len() int {
	return len(pipeline.stages)
}

// Names returns the stage names in promotion order.
func (pipeline Pipeline) Names() []string {
	names := make([]string, 0, len(pipeline.stages))
	for _, stage := range pipeline.stages {
		names = append(names, stage.Name)
	}
	return names
}

// Transitions returns the merges the pipeline performs, in order. A single-stage
// pipeline has none.
func (pipeline Pipeline) Transitions() []Transition {
	if len(pipeline.stages) < 2 {
		return nil
	}
	transitions := make([]Transition, 0, len(pipeline.stages)-1)
	for stageIndex := 0; stageIndex < len(pipeline.stages)-1; stageIndex++ {
		transitions = append(transitions, Transition{
			Source: pipeline.stages[stageIndex].clone(),
			Target: pipeline.stages[stageIndex+1].clone(),
		})
	}
	return transitions
}

// String renders the chain as "dev > staging > main".
func (pipeline Pipeline) String() string {
	return strings.Join(pipeline.Names(), stageSeparatorConstant)
}

// Builder assembles a pipeline one stage at a time.
type Builder struct {
	stages []Stage
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Stage appends a stage after the previously added ones.
func (builder *Builder) Stage(name string, hooks ...string) *Builder {
	builder.stages = append(builder.stages, Stage{Name: name, Hooks: append([]string{}, hooks...)})
	return builder
}

// Build validates the accumulated stages.
func (builder *Builder) Build() (Pipeline, error) {
	return NewPipeline(builder.stages...)
}
