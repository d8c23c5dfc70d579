// Package gitrepo adapts a Git working copy to the operations the promotion
// pipeline needs.
//
// RepositoryManager shells out to git through execshell for every mutating
// operation. Inspector opens the repository in-process with go-git for
// read-only queries such as branch existence and the checked out branch.
package gitrepo
