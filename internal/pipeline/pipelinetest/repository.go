// Package pipelinetest provides in-memory doubles for exercising the pipeline engine.
package pipelinetest

import (
	"context"
	"fmt"
	"sort"
)

const (
	unknownBranchErrorTemplateConstant  = "unknown branch %s"
	unknownTagErrorTemplateConstant     = "tag %s not found"
	branchMismatchErrorTemplateConstant = "expected %s to be checked out, found %s"
	mergeCommitTemplateConstant         = "merge-%04d"
	checkoutCallTemplateConstant        = "checkout %s"
	mergeCallTemplateConstant           = "merge %s into %s"
	resetCallTemplateConstant           = "reset %s %s"
	deleteTagCallTemplateConstant       = "delete tag %s"
)

// FakeRepository simulates branches, commits and tags in memory. Each commit carries
// a set of change markers so tests can assert what a branch contains.
type FakeRepository struct {
	branches         map[string]string
	commitChanges    map[string][]string
	tags             map[string]struct{}
	currentBranch    string
	dirty            bool
	commitSequence   int
	mergeTags        map[string][]string
	mergeFailures    map[string]error
	checkoutFailures map[string]error
	resetFailures    map[string]error
	tagFailures      map[string]error
	tagListFailure   error
	mutations        []string
}

// NewFakeRepository returns an empty repository.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		branches:         map[string]string{},
		commitChanges:    map[string][]string{},
		tags:             map[string]struct{}{},
		mergeTags:        map[string][]string{},
		mergeFailures:    map[string]error{},
		checkoutFailures: map[string]error{},
		resetFailures:    map[string]error{},
		tagFailures:      map[string]error{},
	}
}

// AddBranch creates a branch at sha. The commit is created with the given change
// markers if it does not exist yet. The first branch added becomes current.
func (repository *FakeRepository) AddBranch(name string, sha string, changes ...string) {
	repository.branches[name] = sha
	if _, exists := repository.commitChanges[sha]; !exists {
		repository.commitChanges[sha] = append([]string{}, changes...)
	}
	if len(repository.currentBranch) == 0 {
		repository.currentBranch = name
	}
}

// AddTag creates a tag.
func (repository *FakeRepository) AddTag(tag string) {
	repository.tags[tag] = struct{}{}
}

// SetDirty marks the working tree as having tracked changes.
func (repository *FakeRepository) SetDirty(dirty bool) {
	repository.dirty = dirty
}

// CreateTagsOnMergeInto makes a successful merge into target also create tags.
func (repository *FakeRepository) CreateTagsOnMergeInto(target string, tags ...string) {
	repository.mergeTags[target] = append(repository.mergeTags[target], tags...)
}

// FailMergeInto makes merges into target fail and leave the branch untouched.
func (repository *FakeRepository) FailMergeInto(target string, failure error) {
	repository.mergeFailures[target] = failure
}

// FailCheckout makes checkouts of branch fail.
func (repository *FakeRepository) FailCheckout(branch string, failure error) {
	repository.checkoutFailures[branch] = failure
}

// FailReset makes resets of branch fail.
func (repository *FakeRepository) FailReset(branch string, failure error) {
	repository.resetFailures[branch] = failure
}

// FailTagDeletion makes deleting tag fail.
func (repository *FakeRepository) FailTagDeletion(tag string, failure error) {
	repository.tagFailures[tag] = failure
}

// FailTagListing makes every tag listing fail until failures are cleared.
func (repository *FakeRepository) FailTagListing(failure error) {
	repository.tagListFailure = failure
}

// ClearFailures removes every injected failure.
func (repository *FakeRepository) ClearFailures() {
	repository.mergeFailures = map[string]error{}
	repository.checkoutFailures = map[string]error{}
	repository.resetFailures = map[string]error{}
	repository.tagFailures = map[string]error{}
	repository.tagListFailure = nil
}

// SHA returns the commit the branch points at.
func (repository *FakeRepository) SHA(branch string) string {
	return repository.branches[branch]
}

// Changes returns the sorted change markers reachable from the branch head.
func (repository *FakeRepository) Changes(branch string) []string {
	changes := append([]string{}, repository.commitChanges[repository.branches[branch]]...)
	sort.Strings(changes)
	return changes
}

// TagNames returns the sorted tag names.
func (repository *FakeRepository) TagNames() []string {
	tagNames := make([]string, 0, len(repository.tags))
	for tag := range repository.tags {
		tagNames = append(tagNames, tag)
	}
	sort.Strings(tagNames)
	return tagNames
}

// Branch returns the checked out branch.
func (repository *FakeRepository) Branch() string {
	return repository.currentBranch
}

// Mutations returns every successful or attempted mutating call in order.
func (repository *FakeRepository) Mutations() []string {
	return append([]string{}, repository.mutations...)
}

// CurrentSHA implements pipeline.RepositoryAdapter.
func (repository *FakeRepository) CurrentSHA(_ context.Context, branch string) (string, error) {
	sha, exists := repository.branches[branch]
	if !exists {
		return "", fmt.Errorf(unknownBranchErrorTemplateConstant, branch)
	}
	return sha, nil
}

// ListTags implements pipeline.RepositoryAdapter.
func (repository *FakeRepository) ListTags(context.Context) ([]string, error) {
	if repository.tagListFailure != nil {
		return nil, repository.tagListFailure
	}
	return repository.TagNames(), nil
}

// DeleteTag implements pipeline.RepositoryAdapter.
func (repository *FakeRepository) DeleteTag(_ context.Context, tag string) error {
	repository.mutations = append(repository.mutations, fmt.Sprintf(deleteTagCallTemplateConstant, tag))
	if failure, exists := repository.tagFailures[tag]; exists {
		return failure
	}
	if _, exists := repository.tags[tag]; !exists {
		return fmt.Errorf(unknownTagErrorTemplateConstant, tag)
	}
	delete(repository.tags, tag)
	return nil
}

// Checkout implements pipeline.RepositoryAdapter.
func (repository *FakeRepository) Checkout(_ context.Context, branch string) error {
	repository.mutations = append(repository.mutations, fmt.Sprintf(checkoutCallTemplateConstant, branch))
	if failure, exists := repository.checkoutFailures[branch]; exists {
		return failure
	}
	if _, exists := repository.branches[branch]; !exists {
		return fmt.Errorf(unknownBranchErrorTemplateConstant, branch)
	}
	repository.currentBranch = branch
	return nil
}

// Merge implements pipeline.RepositoryAdapter by creating a commit that carries the
// changes of both the checked out branch and the source branch.
func (repository *FakeRepository) Merge(_ context.Context, sourceBranch string, _ string) error {
	target := repository.currentBranch
	repository.mutations = append(repository.mutations, fmt.Sprintf(mergeCallTemplateConstant, sourceBranch, target))
	if failure, exists := repository.mergeFailures[target]; exists {
		return failure
	}
	sourceSHA, exists := repository.branches[sourceBranch]
	if !exists {
		return fmt.Errorf(unknownBranchErrorTemplateConstant, sourceBranch)
	}

	mergedChanges := map[string]struct{}{}
	for _, change := range repository.commitChanges[repository.branches[target]] {
		mergedChanges[change] = struct{}{}
	}
	for _, change := range repository.commitChanges[sourceSHA] {
		mergedChanges[change] = struct{}{}
	}

	repository.commitSequence++
	mergeSHA := fmt.Sprintf(mergeCommitTemplateConstant, repository.commitSequence)
	repository.commitChanges[mergeSHA] = make([]string, 0, len(mergedChanges))
	for change := range mergedChanges {
		repository.commitChanges[mergeSHA] = append(repository.commitChanges[mergeSHA], change)
	}
	repository.branches[target] = mergeSHA

	for _, tag := range repository.mergeTags[target] {
		repository.tags[tag] = struct{}{}
	}
	return nil
}

// ResetHard implements pipeline.RepositoryAdapter.
func (repository *FakeRepository) ResetHard(_ context.Context, branch string, sha string) error {
	repository.mutations = append(repository.mutations, fmt.Sprintf(resetCallTemplateConstant, branch, sha))
	if failure, exists := repository.resetFailures[branch]; exists {
		return failure
	}
	if repository.currentBranch != branch {
		return fmt.Errorf(branchMismatchErrorTemplateConstant, branch, repository.currentBranch)
	}
	repository.branches[branch] = sha
	return nil
}

// IsWorkingTreeClean implements pipeline.RepositoryAdapter.
func (repository *FakeRepository) IsWorkingTreeClean(context.Context) (bool, error) {
	return !repository.dirty, nil
}
