package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/mktdata/admin-console/internal/domain/gate"
	apperrors "github.com/mktdata/admin-console/internal/errors"
	"github.com/mktdata/admin-console/internal/service"
)

// classifyError maps service errors onto application error codes.
func classifyError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		return apperrors.Validation("Email and password are required.")
	case errors.Is(err, service.ErrLockedOut):
		return apperrors.LockedOut(err)
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.InvalidCredentials(err)
	case errors.Is(err, service.ErrTabClosed), errors.Is(err, service.ErrRegistryClosed):
		return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "This console tab has been closed. Reload the page.")
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "The request timed out.")
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, "The request was canceled.")
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "Something went wrong. Try again.")
	}
}

func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeInvalidCredentials, apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeLockedOut:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		// Client closed request; nginx's 499 has no net/http constant.
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err as JSON. Throttle details from the service errors are
// surfaced so the login page can render attempts left or the lockout countdown.
func writeServiceError(w http.ResponseWriter, err error) {
	appErr := classifyError(err)
	fields := map[string]any{}

	var credErr *service.CredentialsError
	if errors.As(err, &credErr) {
		fields["attempts_remaining"] = credErr.AttemptsRemaining
		if credErr.LockedSeconds > 0 {
			fields["seconds_remaining"] = credErr.LockedSeconds
			fields["retry_after"] = gate.FormatRemaining(credErr.LockedSeconds)
		}
	}
	var lockErr *service.LockedOutError
	if errors.As(err, &lockErr) {
		fields["seconds_remaining"] = lockErr.SecondsRemaining
		fields["retry_after"] = gate.FormatRemaining(lockErr.SecondsRemaining)
		w.Header().Set("Retry-After", strconv.Itoa(lockErr.SecondsRemaining))
	}

	WriteError(w, ErrorParams{
		Code:    statusForCode(appErr.Code),
		ErrCode: string(appErr.Code),
		Err:     errors.New(appErr.Message),
		Fields:  fields,
	})
}
