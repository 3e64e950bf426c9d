package hosting

import "errors"

// Hosting provider errors.
var (
	// ErrNotFound is returned when a resource (file, PR, artifact) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoPRFound is returned when no PR/MR exists for the given branch or commit.
	ErrNoPRFound = errors.New("no pull request found")

	// ErrAuthFailed is returned when authentication fails.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrTooLarge is returned when a download exceeds the caller's byte limit.
	ErrTooLarge = errors.New("response exceeds size limit")
)
