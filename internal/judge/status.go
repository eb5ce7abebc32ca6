package judge

import "github.com/arena-oj/arena/internal/domain"

// Judge0 status ids.
const (
	StatusInQueue           = 1
	StatusProcessing        = 2
	StatusAccepted          = 3
	StatusWrongAnswer       = 4
	StatusTimeLimitExceeded = 5
	StatusCompilationError  = 6
	StatusRuntimeSIGSEGV    = 7
	StatusRuntimeSIGXFSZ    = 8
	StatusRuntimeSIGFPE     = 9
	StatusRuntimeSIGABRT    = 10
	StatusRuntimeNZEC       = 11
	StatusRuntimeOther      = 12
	StatusInternalError     = 13
	StatusExecFormatError   = 14
)

// Classify maps a judge status id onto the verdict taxonomy. Unknown ids are
// errors, never successes.
func Classify(id int) domain.Status {
	switch id {
	case StatusInQueue, StatusProcessing:
		return domain.StatusPending
	case StatusAccepted:
		return domain.StatusAccepted
	case StatusWrongAnswer:
		return domain.StatusWrong
	case StatusTimeLimitExceeded:
		return domain.StatusTLE
	case StatusCompilationError:
		return domain.StatusCompileError
	case StatusRuntimeSIGSEGV, StatusRuntimeSIGXFSZ, StatusRuntimeSIGFPE,
		StatusRuntimeSIGABRT, StatusRuntimeNZEC, StatusRuntimeOther:
		return domain.StatusRuntimeError
	case StatusInternalError, StatusExecFormatError:
		return domain.StatusError
	}
	return domain.StatusError
}

// IsFinal reports whether the execution has left the queued/running states.
func IsFinal(id int) bool {
	return id != StatusInQueue && id != StatusProcessing
}
