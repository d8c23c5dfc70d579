package promote

import "fmt"

const (
	missingConfigurationKeyTemplateConstant  = "configuration key %s is missing"
	missingConfigurationFileTemplateConstant = "configuration file %s not found"
	invalidConfigurationKeyTemplateConstant  = "configuration key %s is invalid: %v"
)

// ConfigurationLoadingError reports configuration that cannot drive a pipeline.
// Exactly one of Key or Path is set.
type ConfigurationLoadingError struct {
	Key  string
	Path string
	Err  error
}

func (loadingError ConfigurationLoadingError) Error() string {
	switch {
	case len(loadingError.Path) > 0:
		return fmt.Sprintf(missingConfigurationFileTemplateConstant, loadingError.Path)
	case loadingError.Err != nil:
		return fmt.Sprintf(invalidConfigurationKeyTemplateConstant, loadingError.Key, loadingError.Err)
	default:
		return fmt.Sprintf(missingConfigurationKeyTemplateConstant, loadingError.Key)
	}
}

// Unwrap exposes the decoding failure, if any.
func (loadingError ConfigurationLoadingError) Unwrap() error {
	return loadingError.Err
}
