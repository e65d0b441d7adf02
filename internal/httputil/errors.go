package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"inkwell/internal/model"
	"inkwell/internal/query"
)

const genericMessage = "Something went wrong, please try again later."

// exposeDetails includes error text and stack traces in 5xx responses.
// Set once at startup; never enable it in production.
var exposeDetails bool

// SetDevelopment toggles development error responses.
func SetDevelopment(enabled bool) {
	exposeDetails = enabled
}

// AppError is an operational error: an expected condition whose message is
// safe to show to clients.
type AppError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError builds an operational error with the default code for status.
func NewAppError(status int, message string) *AppError {
	return &AppError{Status: status, Code: codeFor(status), Message: message}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrCodeBadRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusMethodNotAllowed:
		return ErrCodeMethodNotAllowed
	case http.StatusConflict:
		return ErrCodeConflict
	case http.StatusTooManyRequests:
		return ErrCodeTooManyRequests
	default:
		return ErrCodeInternal
	}
}

// operational maps domain sentinels to their client-facing form.
var operational = []struct {
	err    error
	status int
	code   string
	msg    string
}{
	{model.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound, "No user found with that email"},
	{model.ErrEmailExists, http.StatusBadRequest, ErrCodeConflict, "Email already in use"},
	{model.ErrUsernameExists, http.StatusBadRequest, ErrCodeConflict, "Username already taken"},
	{model.ErrMissingCredentials, http.StatusBadRequest, ErrCodeBadRequest, "Please provide email and password!"},
	{model.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized, "Incorrect email or password"},
	{model.ErrEmailNotVerified, http.StatusUnauthorized, ErrCodeUnauthorized, "Please verify your email before logging in."},
	{model.ErrAlreadyVerified, http.StatusBadRequest, ErrCodeBadRequest, "Email is already verified"},
	{model.ErrWrongPassword, http.StatusUnauthorized, ErrCodeUnauthorized, "Your current password is wrong."},
	{model.ErrPasswordUpdate, http.StatusBadRequest, ErrCodeBadRequest, "This route is not for password updates. Please use /updateMyPassword."},
	{model.ErrEmailUpdate, http.StatusBadRequest, ErrCodeBadRequest, "You cannot change your email address"},
	{model.ErrEmailDelivery, http.StatusInternalServerError, ErrCodeInternal, "There was an error sending the email. Try again later!"},
	{model.ErrUserInactive, http.StatusUnauthorized, ErrCodeUnauthorized, "The user belonging to this token no longer exists."},
	{model.ErrPasswordChanged, http.StatusUnauthorized, ErrCodeUnauthorized, "User recently changed password! Please log in again."},
	{model.ErrTokenExpired, http.StatusUnauthorized, ErrCodeTokenExpired, "Your session has expired. Please log in again."},
	{model.ErrTokenInvalid, http.StatusUnauthorized, ErrCodeTokenInvalid, "Invalid token. Please log in again to continue."},
	{model.ErrNotLoggedIn, http.StatusUnauthorized, ErrCodeUnauthorized, "You are not logged in! Please log in to get access."},
	{model.ErrNoRefreshToken, http.StatusUnauthorized, ErrCodeUnauthorized, "No refresh token provided"},
	{model.ErrRefreshTokenInvalid, http.StatusUnauthorized, ErrCodeTokenInvalid, "Invalid refresh token. Please log in again."},
	{model.ErrTokenInvalidOrUsed, http.StatusBadRequest, ErrCodeBadRequest, "Token is invalid or has expired"},
	{model.ErrResetTokenInvalid, http.StatusNotFound, ErrCodeNotFound, "Token is invalid or has expired"},
	{model.ErrDocumentNotFound, http.StatusNotFound, ErrCodeNotFound, "No document found with that ID"},
	{model.ErrUpdateForbidden, http.StatusForbidden, ErrCodeForbidden, "You are not allowed to update this document"},
	{model.ErrDeleteForbidden, http.StatusForbidden, ErrCodeForbidden, "You are not allowed to delete this document"},
	{model.ErrRoleForbidden, http.StatusForbidden, ErrCodeForbidden, "You do not have permission to perform this action"},
	{model.ErrPostNotFound, http.StatusNotFound, ErrCodeNotFound, "Post not found"},
	{model.ErrPostNotDraft, http.StatusBadRequest, ErrCodeBadRequest, "Only drafts can be edited here"},
	{model.ErrDraftDeleteOnly, http.StatusBadRequest, ErrCodeBadRequest, "Only drafts can be deleted"},
	{model.ErrPostAlreadyPublic, http.StatusBadRequest, ErrCodeBadRequest, "Post is already published"},
	{model.ErrCommentNotFound, http.StatusNotFound, ErrCodeNotFound, "Comment not found"},
	{model.ErrNotCommentOwner, http.StatusForbidden, ErrCodeForbidden, "You can only edit your own comments"},
	{model.ErrCommentDeleteDenied, http.StatusForbidden, ErrCodeForbidden, "You are not allowed to delete this comment"},
	{model.ErrContentRequired, http.StatusBadRequest, ErrCodeBadRequest, "Content is required"},
	{model.ErrContentTooLong, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("Content too long (max %d characters)", model.MaxCommentLength)},
	{model.ErrParentWrongPost, http.StatusBadRequest, ErrCodeBadRequest, "Parent comment does not belong to this post"},
	{model.ErrNotificationNotFound, http.StatusNotFound, ErrCodeNotFound, "Notification not found"},
	{model.ErrFileTooLarge, http.StatusBadRequest, ErrCodeBadRequest, "Image exceeds 5MB limit"},
	{model.ErrInvalidImageType, http.StatusBadRequest, ErrCodeBadRequest, "Unsupported image type. Allowed: jpeg, png, gif, webp"},
	{model.ErrMediaDisabled, http.StatusServiceUnavailable, ErrCodeInternal, "Image uploads are not configured"},
	{model.ErrInvalidMultipart, http.StatusBadRequest, ErrCodeBadRequest, "Invalid form data"},
	{model.ErrInvalidJSONBody, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body"},
	{model.ErrInvalidIdentifier, http.StatusBadRequest, ErrCodeBadRequest, "Invalid identifier"},
}

// Translate converts any error into an operational AppError. ok is false for
// unexpected errors, which are returned as a generic 500.
func Translate(err error) (appErr *AppError, ok bool) {
	if errors.As(err, &appErr) {
		return appErr, true
	}

	for _, o := range operational {
		if errors.Is(err, o.err) {
			return &AppError{Status: o.status, Code: o.code, Message: o.msg, Err: err}, true
		}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewAppError(http.StatusBadRequest, "Please check your input: "+describeValidation(verrs)), true
	}

	var fieldErr *query.FieldError
	if errors.As(err, &fieldErr) {
		return NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid %s field: %s", fieldErr.Param, fieldErr.Field)), true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if appErr := translatePQ(pqErr); appErr != nil {
			return appErr, true
		}
	}

	return &AppError{Status: http.StatusInternalServerError, Code: ErrCodeInternal, Message: genericMessage, Err: err}, false
}

// WriteErr writes err as an error envelope. Unexpected errors are logged with
// the request id; their detail is only exposed in development.
func WriteErr(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := Translate(err)

	resp := ErrorResponse{
		Status:  envelopeStatus(appErr.Status),
		Code:    appErr.Code,
		Message: appErr.Message,
	}

	if !ok || appErr.Status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).WithError(err).Error("[ERROR] Request failed")

		if exposeDetails {
			resp.Error = err.Error()
			resp.Stack = string(debug.Stack())
		}
	}

	WriteJSON(w, appErr.Status, resp)
}

var pqKeyDetail = regexp.MustCompile(`Key \(([^)]+)\)=`)

func translatePQ(e *pq.Error) *AppError {
	switch e.Code {
	case "23505": // unique_violation
		field := "value"
		if m := pqKeyDetail.FindStringSubmatch(e.Detail); m != nil {
			field = m[1]
		} else if e.Column != "" {
			field = e.Column
		}
		return NewAppError(http.StatusBadRequest, fmt.Sprintf("Duplicate field value: %s is already taken", field))
	case "22P02", "22007", "22003", "22008": // invalid text representation, datetime, numeric range
		return NewAppError(http.StatusBadRequest, "Invalid value supplied")
	case "23502", "23514": // not_null_violation, check_violation
		detail := e.Column
		if detail == "" {
			detail = e.Constraint
		}
		return NewAppError(http.StatusBadRequest, "Please check your input: "+detail+" is invalid")
	}
	return nil
}

func describeValidation(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "eqfield":
			msgs = append(msgs, "Passwords are not the same")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "fullname":
			msgs = append(msgs, field+" must contain at least first and last name")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, ". ")
}
