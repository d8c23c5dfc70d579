package gitrepo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const (
	openRepositoryErrorTemplateConstant = "unable to open repository %s: %w"
	resolveHeadErrorTemplateConstant    = "unable to resolve HEAD: %w"
	resolveBranchErrorTemplateConstant  = "unable to resolve branch %s: %w"
	detachedHeadMessageConstant         = "HEAD is detached"
)

// ErrDetachedHead indicates HEAD does not point at a branch.
var ErrDetachedHead = errors.New(detachedHeadMessageConstant)

// Inspector answers read-only questions about a repository without spawning git.
type Inspector struct {
	repository *git.Repository
}

// OpenInspector opens the repository containing repositoryPath, searching parent directories for .git.
func OpenInspector(repositoryPath string) (*Inspector, error) {
	repository, openError := git.PlainOpenWithOptions(repositoryPath, &git.PlainOpenOptions{DetectDotGit: true})
	if openError != nil {
		return nil, fmt.Errorf(openRepositoryErrorTemplateConstant, repositoryPath, openError)
	}
	return &Inspector{repository: repository}, nil
}

// CurrentBranch returns the short name of the checked out branch.
func (inspector *Inspector) CurrentBranch() (string, error) {
	headReference, headError := inspector.repository.Head()
	if headError != nil {
		return "", fmt.Errorf(resolveHeadErrorTemplateConstant, headError)
	}
	if !headReference.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return headReference.Name().Short(), nil
}

// BranchRevision returns the commit hash the local branch points at.
func (inspector *Inspector) BranchRevision(branchName string) (string, error) {
	branchReference, referenceError := inspector.repository.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if referenceError != nil {
		return "", fmt.Errorf(resolveBranchErrorTemplateConstant, branchName, referenceError)
	}
	return branchReference.Hash().String(), nil
}

// MissingBranches returns the names, in input order, that have no local branch.
func (inspector *Inspector) MissingBranches(branchNames []string) ([]string, error) {
	missingBranches := make([]string, 0)
	for _, branchName := range branchNames {
		_, referenceError := inspector.repository.Reference(plumbing.NewBranchReferenceName(branchName), true)
		if referenceError == nil {
			continue
		}
		if errors.Is(referenceError, plumbing.ErrReferenceNotFound) {
			missingBranches = append(missingBranches, branchName)
			continue
		}
		return nil, fmt.Errorf(resolveBranchErrorTemplateConstant, branchName, referenceError)
	}
	return missingBranches, nil
}

// VerifyBranches fails with MissingBranchesError when any branch does not exist.
func (inspector *Inspector) VerifyBranches(branchNames []string) error {
	missingBranches, lookupError := inspector.MissingBranches(branchNames)
	if lookupError != nil {
		return lookupError
	}
	if len(missingBranches) > 0 {
		return MissingBranchesError{Branches: missingBranches}
	}
	return nil
}
