package persistence

import "errors"

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrCaseNotFound     = errors.New("case not found")

	// ErrCaseRaced is returned when a case's state no longer matches what the
	// caller observed before reacquiring its lock.
	ErrCaseRaced = errors.New("case state changed concurrently")
)

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsCaseNotFound(err error) bool {
	return errors.Is(err, ErrCaseNotFound)
}

func IsCaseRaced(err error) bool {
	return errors.Is(err, ErrCaseRaced)
}
