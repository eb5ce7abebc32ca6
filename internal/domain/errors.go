package domain

import "errors"

var (
	// ErrValidation is returned when a request is missing or has malformed fields.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedLanguage is returned for unknown languages or languages the problem has no code for.
	ErrUnsupportedLanguage = errors.New("invalid or unsupported language")

	// ErrPayloadTooLarge is returned when the source code exceeds the size limit.
	ErrPayloadTooLarge = errors.New("source code payload exceeds maximum size (64KB)")

	// ErrProblemNotFound is returned when a problem cannot be found by ID.
	ErrProblemNotFound = errors.New("problem not found")

	// ErrSubmissionNotFound is returned when a submission cannot be found by ID.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrUserNotFound is returned when a user's progress record does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnauthenticated is returned when no user identity accompanies the request.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrJudgeUnavailable is returned on transport failures talking to the judge service.
	ErrJudgeUnavailable = errors.New("judge service unavailable")

	// ErrPollTimeout is returned when the judge does not finish within the poll budget.
	ErrPollTimeout = errors.New("judge did not finish within the poll budget")

	// ErrMalformedJudgeResponse is returned when the judge replies with an unexpected payload.
	ErrMalformedJudgeResponse = errors.New("malformed judge response")

	// ErrAggregationFailed is returned when judge results exist but could not be saved.
	ErrAggregationFailed = errors.New("failed to persist judging results")

	// ErrAlreadyCompleted is returned when a submission has already left the pending state.
	ErrAlreadyCompleted = errors.New("submission already completed")

	// ErrRateLimitExceeded is returned when API rate limit is hit.
	ErrRateLimitExceeded = errors.New("rate limit exceeded, try again later")
)
