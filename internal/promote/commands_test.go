package promote_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/temirov/glisse/internal/gitrepo"
	"github.com/temirov/glisse/internal/pipeline"
	"github.com/temirov/glisse/internal/pipeline/pipelinetest"
	"github.com/temirov/glisse/internal/promote"
	"github.com/temirov/glisse/internal/utils"
)

const (
	testConfigurationFileConstant = "/srv/project/pyproject.toml"
	testMainSHAConstant           = "0123456789abcdef0123456789abcdef01234567"
)

type stubBranchInspector struct {
	currentBranch string
	revisions     map[string]string
}

func (inspector stubBranchInspector) CurrentBranch() (string, error) {
	if len(inspector.currentBranch) == 0 {
		return "", gitrepo.ErrDetachedHead
	}
	return inspector.currentBranch, nil
}

func (inspector stubBranchInspector) BranchRevision(branchName string) (string, error) {
	revision, exists := inspector.revisions[branchName]
	if !exists {
		return "", errors.New("reference not found")
	}
	return revision, nil
}

func (inspector stubBranchInspector) VerifyBranches(branchNames []string) error {
	missingBranches := make([]string, 0)
	for _, branchName := range branchNames {
		if _, exists := inspector.revisions[branchName]; !exists {
			missingBranches = append(missingBranches, branchName)
		}
	}
	if len(missingBranches) > 0 {
		return gitrepo.MissingBranchesError{Branches: missingBranches}
	}
	return nil
}

type commandHarness struct {
	repositoryPath string
	configuration  promote.CommandConfiguration
	repository     *pipelinetest.FakeRepository
	hookRunner     *pipelinetest.RecordingHookRunner
	logs           *observer.ObservedLogs
	dependencies   promote.Dependencies
}

func newCommandHarness(testInstance *testing.T) *commandHarness {
	testInstance.Helper()

	repository := pipelinetest.NewFakeRepository()
	repository.AddBranch("dev", "dev0001", "dev-feature")
	repository.AddBranch("staging", "stg0001", "staging-fix")
	repository.AddBranch("main", testMainSHAConstant, "baseline")

	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	harness := &commandHarness{
		repositoryPath: testInstance.TempDir(),
		configuration: promote.CommandConfiguration{
			Order:     []string{"dev", "staging", "main"},
			StateFile: pipeline.DefaultStateFileName,
			Branches: map[string]any{
				"main": map[string]any{"merged": map[string]any{"hooks": []any{"bumpversion --tag"}}},
			},
		},
		repository: repository,
		hookRunner: pipelinetest.NewRecordingHookRunner(),
		logs:       observedLogs,
	}
	harness.hookRunner.OnCommand("bumpversion --tag", func() { repository.AddTag("v1.0.0") })

	logger := zap.New(observedCore)
	harness.dependencies = promote.Dependencies{
		LoggerProvider:        func() *zap.Logger { return logger },
		ConfigurationProvider: func() promote.CommandConfiguration { return harness.configuration },
		Repository:            repository,
		HookRunner:            harness.hookRunner,
		BranchInspectorProvider: func(string) (promote.BranchInspector, error) {
			return stubBranchInspector{
				currentBranch: repository.Branch(),
				revisions: map[string]string{
					"dev":     repository.SHA("dev"),
					"staging": repository.SHA("staging"),
					"main":    repository.SHA("main"),
				},
			}, nil
		},
	}
	return harness
}

func (harness *commandHarness) stateFilePath() string {
	return filepath.Join(harness.repositoryPath, pipeline.DefaultStateFileName)
}

func (harness *commandHarness) execute(testInstance *testing.T, command *cobra.Command, configurationFile string, arguments ...string) (string, error) {
	testInstance.Helper()
	accessor := utils.NewCommandContextAccessor()
	executionContext := accessor.WithRepositoryPath(context.Background(), harness.repositoryPath)
	if len(configurationFile) > 0 {
		executionContext = accessor.WithConfigurationFilePath(executionContext, configurationFile)
	}

	output := &bytes.Buffer{}
	command.SetContext(executionContext)
	command.SetOut(output)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs(arguments)
	executionError := command.Execute()
	return output.String(), executionError
}

func buildRunCommand(testInstance *testing.T, dependencies promote.Dependencies) *cobra.Command {
	testInstance.Helper()
	builder := promote.RunCommandBuilder{Dependencies: dependencies}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	return command
}

func buildUnwindCommand(testInstance *testing.T, dependencies promote.Dependencies) *cobra.Command {
	testInstance.Helper()
	builder := promote.UnwindCommandBuilder{Dependencies: dependencies}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	return command
}

func buildShowCommand(testInstance *testing.T, dependencies promote.Dependencies) *cobra.Command {
	testInstance.Helper()
	builder := promote.ShowCommandBuilder{Dependencies: dependencies}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	return command
}

func TestRunCommandPromotesAndCleansUp(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)

	output, runError := harness.execute(testInstance, buildRunCommand(testInstance, harness.dependencies), testConfigurationFileConstant)
	require.NoError(testInstance, runError)
	require.Contains(testInstance, output, ">>> Merging dev -> staging")
	require.Contains(testInstance, output, "Merged staging -> main")
	require.Contains(testInstance, output, "Pipeline complete.")
	require.NoFileExists(testInstance, harness.stateFilePath())
	require.Equal(testInstance, []string{"v1.0.0"}, harness.repository.TagNames())

	invocations := harness.hookRunner.Invocations()
	require.Len(testInstance, invocations, 1)
	require.Equal(testInstance, "main", invocations[0].TargetBranch)
	require.Equal(testInstance, testMainSHAConstant, invocations[0].OriginalSHA)
	require.Equal(testInstance, 1, harness.logs.FilterMessage("pipeline run finished").Len())

	startedEntries := harness.logs.FilterMessage("pipeline run started").All()
	require.Len(testInstance, startedEntries, 1)
	require.Equal(testInstance, int64(3), startedEntries[0].ContextMap()["stages"])
}

func TestRunCommandKeepStateThenUnwind(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)

	_, runError := harness.execute(testInstance, buildRunCommand(testInstance, harness.dependencies), testConfigurationFileConstant, "--keep-state")
	require.NoError(testInstance, runError)
	require.FileExists(testInstance, harness.stateFilePath())

	output, unwindError := harness.execute(testInstance, buildUnwindCommand(testInstance, harness.dependencies), "")
	require.NoError(testInstance, unwindError)
	require.Contains(testInstance, output, "Rolling back main...")
	require.Contains(testInstance, output, "Rolling back staging...")
	require.Contains(testInstance, output, "Unwind complete.")
	require.Equal(testInstance, testMainSHAConstant, harness.repository.SHA("main"))
	require.Equal(testInstance, "stg0001", harness.repository.SHA("staging"))
	require.Empty(testInstance, harness.repository.TagNames())
	require.NoFileExists(testInstance, harness.stateFilePath())
}

func TestRunCommandDryRunPrintsPlan(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)

	output, runError := harness.execute(testInstance, buildRunCommand(testInstance, harness.dependencies), testConfigurationFileConstant, "--dry-run")
	require.NoError(testInstance, runError)
	require.Equal(testInstance, "Pipeline: dev > staging > main\ndev -> staging\nstaging -> main\n  hook: bumpversion --tag\n", output)
	require.Empty(testInstance, harness.repository.Mutations())
	require.Empty(testInstance, harness.hookRunner.Invocations())
}

func TestRunCommandConfigurationFailures(testInstance *testing.T) {
	testCases := []struct {
		name              string
		configurationFile string
		order             []string
		expectedError     promote.ConfigurationLoadingError
	}{
		{
			name:              "missing_configuration_file",
			configurationFile: "",
			order:             []string{"dev", "main"},
			expectedError:     promote.ConfigurationLoadingError{Path: promote.DefaultConfigurationFileName},
		},
		{
			name:              "missing_order",
			configurationFile: testConfigurationFileConstant,
			order:             nil,
			expectedError:     promote.ConfigurationLoadingError{Key: "glisse.order"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			harness := newCommandHarness(subTest)
			harness.configuration.Order = testCase.order

			_, runError := harness.execute(subTest, buildRunCommand(subTest, harness.dependencies), testCase.configurationFile)
			require.ErrorIs(subTest, runError, testCase.expectedError)
			require.Empty(subTest, harness.repository.Mutations())
		})
	}
}

func TestRunCommandRejectsMissingBranches(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.configuration.Order = []string{"dev", "qa", "main", "prod"}

	_, runError := harness.execute(testInstance, buildRunCommand(testInstance, harness.dependencies), testConfigurationFileConstant)

	var missingError gitrepo.MissingBranchesError
	require.ErrorAs(testInstance, runError, &missingError)
	require.Equal(testInstance, []string{"qa", "prod"}, missingError.Branches)
	require.Empty(testInstance, harness.repository.Mutations())
}

func TestRunCommandWarnsAboutUnusedHookTables(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.configuration.Branches["release"] = map[string]any{"merged": map[string]any{"hooks": []any{"make release"}}}

	_, runError := harness.execute(testInstance, buildRunCommand(testInstance, harness.dependencies), testConfigurationFileConstant, "--dry-run")
	require.NoError(testInstance, runError)

	warnings := harness.logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(testInstance, warnings, 1)
	require.Equal(testInstance, []interface{}{"release"}, warnings[0].ContextMap()["branches"])
}

func TestUnwindCommandWithoutState(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)

	command := buildUnwindCommand(testInstance, harness.dependencies)
	require.Equal(testInstance, []string{"undo"}, command.Aliases)

	output, unwindError := harness.execute(testInstance, command, "")
	require.NoError(testInstance, unwindError)
	require.Equal(testInstance, "Nothing to undo.\n", output)
}

func TestShowCommandRendersText(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)

	output, showError := harness.execute(testInstance, buildShowCommand(testInstance, harness.dependencies), testConfigurationFileConstant)
	require.NoError(testInstance, showError)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Equal(testInstance, []string{
		"Configuration: " + testConfigurationFileConstant,
		"Pipeline: dev > staging > main",
		"Hooks:",
		"  main: bumpversion --tag",
		"Current branch: dev",
		"Stage heads:",
		"  dev dev0001",
		"  staging stg0001",
		"  main 0123456789ab",
		"State file: " + harness.stateFilePath() + " (absent)",
		"History: none",
	}, lines)
}

func TestShowCommandRendersYAMLWithHistory(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.repository.FailMergeInto("main", errors.New("conflict"))
	_, runError := harness.execute(testInstance, buildRunCommand(testInstance, harness.dependencies), testConfigurationFileConstant)
	require.Error(testInstance, runError)

	output, showError := harness.execute(testInstance, buildShowCommand(testInstance, harness.dependencies), testConfigurationFileConstant, "--format", "YAML")
	require.NoError(testInstance, showError)

	var report struct {
		ConfigurationFile string               `yaml:"configuration_file"`
		Order             []string             `yaml:"order"`
		CurrentBranch     string               `yaml:"current_branch"`
		StateFilePresent  bool                 `yaml:"state_file_present"`
		History           []pipeline.MergeStep `yaml:"history"`
	}
	require.NoError(testInstance, yaml.Unmarshal([]byte(output), &report))
	require.Equal(testInstance, testConfigurationFileConstant, report.ConfigurationFile)
	require.Equal(testInstance, []string{"dev", "staging", "main"}, report.Order)
	require.Equal(testInstance, "main", report.CurrentBranch)
	require.True(testInstance, report.StateFilePresent)
	require.Len(testInstance, report.History, 2)
	require.Equal(testInstance, pipeline.StepStatusCompleted, report.History[0].Status)
	require.Equal(testInstance, pipeline.StepStatusFailed, report.History[1].Status)
	require.Equal(testInstance, testMainSHAConstant, report.History[1].OriginalSHA)
}

func TestShowCommandRejectsUnknownFormat(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)

	_, showError := harness.execute(testInstance, buildShowCommand(testInstance, harness.dependencies), testConfigurationFileConstant, "--format", "xml")
	require.Error(testInstance, showError)
}
