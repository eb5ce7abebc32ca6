package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/delivery/http/middleware"
	"github.com/arena-oj/arena/internal/domain"
)

const judgeFailureMessage = "Judging failed, please resubmit"

// respondError maps a use case error onto a status code and JSON body.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed",
			zap.Error(err),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
	}
	c.JSON(status, gin.H{"error": message, "code": code})
}

func classify(err error) (int, string, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrAggregationFailed):
		return http.StatusInternalServerError, "AGGREGATION_FAILED", "Failed to save judging results"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required"
	case errors.Is(err, domain.ErrPayloadTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", domain.ErrPayloadTooLarge.Error()
	case errors.Is(err, domain.ErrUnsupportedLanguage):
		return http.StatusBadRequest, "UNSUPPORTED_LANGUAGE", err.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrProblemNotFound):
		return http.StatusNotFound, "PROBLEM_NOT_FOUND", "Problem not found"
	case errors.Is(err, domain.ErrSubmissionNotFound):
		return http.StatusNotFound, "SUBMISSION_NOT_FOUND", "Submission not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", "User not found"
	case errors.Is(err, domain.ErrJudgeUnavailable),
		errors.Is(err, domain.ErrPollTimeout),
		errors.Is(err, domain.ErrMalformedJudgeResponse),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "JUDGE_UNAVAILABLE", judgeFailureMessage
	}
	return http.StatusInternalServerError, "INTERNAL", "Internal server error"
}
