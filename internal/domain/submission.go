package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is both the verdict of a single test execution and the lifecycle
// state of a submission.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAccepted     Status = "accepted"
	StatusWrong        Status = "wrong"
	StatusTLE          Status = "tle"
	StatusCompileError Status = "compile-error"
	StatusRuntimeError Status = "runtime-error"
	StatusError        Status = "error"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusWrong, StatusTLE, StatusCompileError,
		StatusRuntimeError, StatusError:
		return true
	}
	return false
}

// Submission is one user's scored attempt at one problem in one language.
type Submission struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"userId"`
	ProblemID       string    `json:"problemId"`
	Code            string    `json:"code"`
	Language        Language  `json:"language"`
	Status          Status    `json:"status"`
	Runtime         float64   `json:"runtime"`
	Memory          int       `json:"memory"`
	TestCasesPassed int       `json:"testCasesPassed"`
	TestCasesTotal  int       `json:"testCasesTotal"`
	PointsEarned    int       `json:"pointsEarned"`
	ErrorMessage    string    `json:"errorMessage"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CodeRequest is the body of both run and submit requests.
type CodeRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required"`
}

// TestDetail is the per-test breakdown returned by a run.
type TestDetail struct {
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expectedOutput"`
	ActualOutput   string  `json:"actualOutput"`
	Status         Status  `json:"status"`
	Runtime        float64 `json:"runtime"`
	Memory         int     `json:"memory"`
	Error          string  `json:"error,omitempty"`
}

// RunResult is returned by an ad-hoc run against the visible test cases.
type RunResult struct {
	Success         bool         `json:"success"`
	TestCasesPassed int          `json:"testCasesPassed"`
	TotalTestCases  int          `json:"totalTestCases"`
	Runtime         float64      `json:"runtime"`
	Memory          int          `json:"memory"`
	ErrorMessage    string       `json:"errorMessage"`
	TestDetails     []TestDetail `json:"testDetails"`
}

// SubmitResult is returned after a scored submission has been judged.
type SubmitResult struct {
	Accepted        bool      `json:"accepted"`
	SubmissionID    uuid.UUID `json:"submissionId"`
	Status          Status    `json:"status"`
	TestCasesPassed int       `json:"testCasesPassed"`
	TotalTestCases  int       `json:"totalTestCases"`
	Runtime         float64   `json:"runtime"`
	Memory          int       `json:"memory"`
	PointsEarned    int       `json:"pointsEarned"`
	ErrorMessage    string    `json:"errorMessage"`
}

// SubmissionJudgedEvent is published after every completed submission.
type SubmissionJudgedEvent struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	UserID       string    `json:"user_id"`
	ProblemID    string    `json:"problem_id"`
	Language     Language  `json:"language"`
	Status       Status    `json:"status"`
	PointsEarned int       `json:"points_earned"`
	FirstSolve   bool      `json:"first_solve"`
	JudgedAt     time.Time `json:"judged_at"`
}

// EventMessage wraps a consumed event with its broker acknowledgement callbacks.
// Redelivered is set when the broker has handed the message out before.
type EventMessage struct {
	Event       *SubmissionJudgedEvent
	Redelivered bool
	Ack         func() error
	Nack        func(requeue bool) error
}
