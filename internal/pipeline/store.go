package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultStateFileName is the state file used when none is configured.
	DefaultStateFileName = ".merge_state.json"

	stateFilePermissionsConstant       = 0o644
	stateDirectoryPermissionsConstant  = 0o755
	stateTemporaryFilePatternConstant  = "%s.*.tmp"
	jsonIndentConstant                 = "  "
	legacyStateOpeningByteConstant     = '['
	readStateErrorTemplateConstant     = "unable to read state file %s: %w"
	encodeStateErrorTemplateConstant   = "unable to encode pipeline state: %w"
	createStateDirectoryErrorTemplate  = "unable to create state directory %s: %w"
	writeStateErrorTemplateConstant    = "unable to write state file %s: %w"
	deleteStateErrorTemplateConstant   = "unable to delete state file %s: %w"
	statStateErrorTemplateConstant     = "unable to inspect state file %s: %w"
	emptyStateFileMessageConstant      = "file is empty"
	missingHistoryMessageConstant      = "history is missing"
	trailingContentMessageConstant     = "unexpected content after state document"
	missingTargetBranchMessageConstant = "target_branch is empty"
	missingOriginalSHAMessageConstant  = "original_sha is empty"
	historyRecordErrorTemplateConstant = "history entry %d: %w"
)

// StateStore persists PipelineState as a single JSON file that is replaced
// atomically on every save.
type StateStore struct {
	path string
}

// NewStateStore returns a store for the file at path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file location.
func (store *StateStore) Path() string {
	return store.path
}

type persistedMergeStep struct {
	TargetBranch string   `json:"target_branch"`
	OriginalSHA  string   `json:"original_sha"`
	TagsCreated  []string `json:"tags_created"`
	Status       string   `json:"status,omitempty"`
}

type persistedPipelineState struct {
	History *[]persistedMergeStep `json:"history"`
}

// Load reads the state file. An absent file yields an empty state. Files written as
// a bare JSON array of steps are accepted, with missing statuses read as PENDING.
// Content that does not match the schema is reported as CorruptStateError.
func (store *StateStore) Load() (PipelineState, error) {
	content, readError := os.ReadFile(store.path)
	if errors.Is(readError, fs.ErrNotExist) {
		return PipelineState{History: []MergeStep{}}, nil
	}
	if readError != nil {
		return PipelineState{}, fmt.Errorf(readStateErrorTemplateConstant, store.path, readError)
	}

	trimmedContent := bytes.TrimSpace(content)
	if len(trimmedContent) == 0 {
		return PipelineState{}, CorruptStateError{Path: store.path, Err: errors.New(emptyStateFileMessageConstant)}
	}

	records, decodeError := decodeStateDocument(trimmedContent)
	if decodeError != nil {
		return PipelineState{}, CorruptStateError{Path: store.path, Err: decodeError}
	}

	state := PipelineState{History: make([]MergeStep, 0, len(records))}
	for recordIndex, record := range records {
		status, recordError := validatePersistedStep(record)
		if recordError != nil {
			return PipelineState{}, CorruptStateError{Path: store.path, Err: fmt.Errorf(historyRecordErrorTemplateConstant, recordIndex, recordError)}
		}
		state.History = append(state.History, MergeStep{
			TargetBranch: record.TargetBranch,
			OriginalSHA:  record.OriginalSHA,
			TagsCreated:  append([]string{}, record.TagsCreated...),
			Status:       status,
		})
	}
	return state, nil
}

// Save replaces the state file with the serialized state. The file is written to a
// temporary sibling first and renamed into place.
func (store *StateStore) Save(state PipelineState) error {
	persistedHistory := make([]persistedMergeStep, 0, len(state.History))
	for _, step := range state.History {
		persistedHistory = append(persistedHistory, persistedMergeStep{
			TargetBranch: step.TargetBranch,
			OriginalSHA:  step.OriginalSHA,
			TagsCreated:  append([]string{}, step.TagsCreated...),
			Status:       string(step.Status),
		})
	}

	content, encodeError := json.MarshalIndent(persistedPipelineState{History: &persistedHistory}, "", jsonIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(encodeStateErrorTemplateConstant, encodeError)
	}
	content = append(content, '\n')

	stateDirectory := filepath.Dir(store.path)
	if directoryError := os.MkdirAll(stateDirectory, stateDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(createStateDirectoryErrorTemplate, stateDirectory, directoryError)
	}

	if writeError := writeFileAtomically(store.path, content); writeError != nil {
		return fmt.Errorf(writeStateErrorTemplateConstant, store.path, writeError)
	}
	return nil
}

// Delete removes the state file. A missing file is not an error.
func (store *StateStore) Delete() error {
	removeError := os.Remove(store.path)
	if removeError == nil || errors.Is(removeError, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf(deleteStateErrorTemplateConstant, store.path, removeError)
}

// Exists reports whether the state file is present.
func (store *StateStore) Exists() (bool, error) {
	_, statError := os.Stat(store.path)
	if statError == nil {
		return true, nil
	}
	if errors.Is(statError, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf(statStateErrorTemplateConstant, store.path, statError)
}

func decodeStateDocument(content []byte) ([]persistedMergeStep, error) {
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()

	var records []persistedMergeStep
	if content[0] == legacyStateOpeningByteConstant {
		if decodeError := decoder.Decode(&records); decodeError != nil {
			return nil, decodeError
		}
	} else {
		var persistedState persistedPipelineState
		if decodeError := decoder.Decode(&persistedState); decodeError != nil {
			return nil, decodeError
		}
		if persistedState.History == nil {
			return nil, errors.New(missingHistoryMessageConstant)
		}
		records = *persistedState.History
	}

	if _, trailingError := decoder.Token(); !errors.Is(trailingError, io.EOF) {
		return nil, errors.New(trailingContentMessageConstant)
	}
	return records, nil
}

func validatePersistedStep(record persistedMergeStep) (StepStatus, error) {
	if len(strings.TrimSpace(record.TargetBranch)) == 0 {
		return "", errors.New(missingTargetBranchMessageConstant)
	}
	if len(strings.TrimSpace(record.OriginalSHA)) == 0 {
		return "", errors.New(missingOriginalSHAMessageConstant)
	}
	return parseStepStatus(record.Status)
}

func writeFileAtomically(targetPath string, content []byte) (resultError error) {
	temporaryFile, createError := os.CreateTemp(filepath.Dir(targetPath), fmt.Sprintf(stateTemporaryFilePatternConstant, filepath.Base(targetPath)))
	if createError != nil {
		return createError
	}
	temporaryPath := temporaryFile.Name()
	defer func() {
		if resultError != nil {
			_ = os.Remove(temporaryPath)
		}
	}()

	if _, writeError := temporaryFile.Write(content); writeError != nil {
		_ = temporaryFile.Close()
		return writeError
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		_ = temporaryFile.Close()
		return syncError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return closeError
	}
	if chmodError := os.Chmod(temporaryPath, stateFilePermissionsConstant); chmodError != nil {
		return chmodError
	}
	return os.Rename(temporaryPath, targetPath)
}
