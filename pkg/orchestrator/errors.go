package orchestrator

import "errors"

// Trigger pre-flight failures. The API layer maps these onto status codes.
var (
	ErrHackathonNotFound    = errors.New("hackathon not found")
	ErrNotOwner             = errors.New("hackathon is not owned by caller")
	ErrNoPendingSubmissions = errors.New("no pending submissions to analyze")
	ErrBudgetExceeded       = errors.New("budget limit would be exceeded")
	ErrAnalysisInProgress   = errors.New("analysis already in progress")
	ErrJobNotFound          = errors.New("job not found")
	ErrJobNotCancellable    = errors.New("job is already terminal")
)
