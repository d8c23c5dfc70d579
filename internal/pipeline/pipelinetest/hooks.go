package pipelinetest

import (
	"context"

	"github.com/temirov/glisse/internal/pipeline"
)

// RecordingHookRunner records hook invocations and can fail or run side effects per command.
type RecordingHookRunner struct {
	invocations []pipeline.HookInvocation
	failures    map[string]error
	effects     map[string]func()
}

// NewRecordingHookRunner returns a runner where every hook succeeds.
func NewRecordingHookRunner() *RecordingHookRunner {
	return &RecordingHookRunner{failures: map[string]error{}, effects: map[string]func(){}}
}

// FailCommand makes the hook command fail with the error.
func (runner *RecordingHookRunner) FailCommand(command string, failure error) {
	runner.failures[command] = failure
}

// OnCommand runs effect whenever the hook command runs, before any injected failure is returned.
func (runner *RecordingHookRunner) OnCommand(command string, effect func()) {
	runner.effects[command] = effect
}

// Invocations returns the recorded invocations in order.
func (runner *RecordingHookRunner) Invocations() []pipeline.HookInvocation {
	return append([]pipeline.HookInvocation{}, runner.invocations...)
}

// RunHook implements pipeline.HookRunner.
func (runner *RecordingHookRunner) RunHook(_ context.Context, invocation pipeline.HookInvocation) error {
	runner.invocations = append(runner.invocations, invocation)
	if effect, exists := runner.effects[invocation.Command]; exists {
		effect()
	}
	return runner.failures[invocation.Command]
}
