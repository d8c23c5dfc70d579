package promote

import (
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/temirov/glisse/internal/pipeline"
)

const (
	// DefaultConfigurationFileName is the file searched for when no --config flag is given.
	DefaultConfigurationFileName = "pyproject.toml"

	orderConfigurationKeyConstant        = "glisse.order"
	branchConfigurationKeyPrefixConstant = "glisse."
	mergedHooksKeySuffixConstant         = ".merged.hooks"
)

// CommandConfiguration captures the [glisse] section after defaults, files,
// environment and flags are merged.
type CommandConfiguration struct {
	Order     []string
	StateFile string
	// Branches holds the per-branch tables keyed by lower-cased branch name.
	Branches map[string]any
}

type branchConfiguration struct {
	Merged mergedConfiguration `mapstructure:"merged"`
}

type mergedConfiguration struct {
	Hooks []string `mapstructure:"hooks"`
}

// BuildPipeline turns the configured order and hook tables into a validated pipeline.
// Branch tables are matched to stages case-insensitively.
func (configuration CommandConfiguration) BuildPipeline() (pipeline.Pipeline, error) {
	if len(configuration.Order) == 0 {
		return pipeline.Pipeline{}, ConfigurationLoadingError{Key: orderConfigurationKeyConstant}
	}

	hooksByBranch, decodeError := configuration.decodeHooks()
	if decodeError != nil {
		return pipeline.Pipeline{}, decodeError
	}

	builder := pipeline.NewBuilder()
	for _, branchName := range configuration.Order {
		builder.Stage(branchName, hooksByBranch[strings.ToLower(branchName)]...)
	}
	return builder.Build()
}

// HookBranchesOutsideOrder lists configured branch tables that name no stage.
func (configuration CommandConfiguration) HookBranchesOutsideOrder() []string {
	orderedBranches := make(map[string]struct{}, len(configuration.Order))
	for _, branchName := range configuration.Order {
		orderedBranches[strings.ToLower(branchName)] = struct{}{}
	}

	unusedBranches := make([]string, 0)
	for branchKey := range configuration.Branches {
		if _, ordered := orderedBranches[strings.ToLower(branchKey)]; !ordered {
			unusedBranches = append(unusedBranches, branchKey)
		}
	}
	sort.Strings(unusedBranches)
	return unusedBranches
}

func (configuration CommandConfiguration) decodeHooks() (map[string][]string, error) {
	hooksByBranch := make(map[string][]string, len(configuration.Branches))
	for branchKey, rawBranchConfiguration := range configuration.Branches {
		var decodedBranch branchConfiguration
		decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &decodedBranch,
		})
		if decoderError != nil {
			return nil, decoderError
		}
		if decodeError := decoder.Decode(rawBranchConfiguration); decodeError != nil {
			return nil, ConfigurationLoadingError{Key: branchConfigurationKeyPrefixConstant + branchKey + mergedHooksKeySuffixConstant, Err: decodeError}
		}
		normalizedBranch := strings.ToLower(branchKey)
		hooksByBranch[normalizedBranch] = append(hooksByBranch[normalizedBranch], decodedBranch.Merged.Hooks...)
	}
	return hooksByBranch, nil
}
