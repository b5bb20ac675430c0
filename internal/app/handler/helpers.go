// Package handler contains the HTTP handlers of the link service: public
// resolution endpoints, owner management endpoints and health checks.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/gate"
	"github.com/atinyakov/linkgate/internal/models"
	"github.com/atinyakov/linkgate/internal/recorder"
)

// malformedRequest represents an error with a malformed HTTP request.
type malformedRequest struct {
	status int
	msg    string
}

func (mr *malformedRequest) Error() string {
	return mr.msg
}

// decodeJSONBody decodes a single JSON object of at most 1MB into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mediaType := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
		if mediaType != "application/json" {
			msg := "Content-Type header is not application/json"
			return &malformedRequest{status: http.StatusUnsupportedMediaType, msg: msg}
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError

		switch {
		case errors.As(err, &syntaxError):
			msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.ErrUnexpectedEOF):
			msg := "Request body contains badly-formed JSON"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.As(err, &unmarshalTypeError):
			msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.EOF):
			msg := "Request body must not be empty"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case err.Error() == "http: request body too large":
			msg := "Request body must not be larger than 1MB"
			return &malformedRequest{status: http.StatusRequestEntityTooLarge, msg: msg}

		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		msg := "Request body must only contain a single JSON object"
		return &malformedRequest{status: http.StatusBadRequest, msg: msg}
	}

	return nil
}

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

// decodeAndValidate writes a 4xx response and returns false when the body is unusable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	if err := decodeJSONBody(w, r, dst); err != nil {
		var mr *malformedRequest
		if errors.As(err, &mr) {
			writeJSON(w, mr.status, models.DenialResponse{Error: mr.msg})
			return false
		}
		writeJSON(w, http.StatusBadRequest, models.DenialResponse{Error: http.StatusText(http.StatusBadRequest)})
		return false
	}

	if err := v.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, models.DenialResponse{Error: validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field %s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps a denial to its HTTP status. PasswordRequired is not an error.
func statusFor(reason gate.Reason) int {
	switch reason {
	case gate.NotFound:
		return http.StatusNotFound
	case gate.Disabled:
		return http.StatusForbidden
	case gate.Expired, gate.ViewLimitReached:
		return http.StatusGone
	case gate.PasswordRequired:
		return http.StatusOK
	case gate.PasswordIncorrect:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

var denialMessages = map[gate.Reason]string{
	gate.NotFound:          "link not found",
	gate.Disabled:          "link is disabled",
	gate.Expired:           "link has expired",
	gate.ViewLimitReached:  "link has reached its view limit",
	gate.PasswordRequired:  "password required",
	gate.PasswordIncorrect: "incorrect password",
}

func writeDenial(w http.ResponseWriter, reason gate.Reason) {
	writeJSON(w, statusFor(reason), models.DenialResponse{Error: denialMessages[reason], Reason: reason.String()})
}

func internalError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, models.DenialResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

// visitFrom collects the network metadata recorded with an access event.
// RemoteAddr is already rewritten by the RealIP middleware when a proxy header is present.
func visitFrom(r *http.Request) recorder.Visit {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	q := r.URL.Query()
	return recorder.Visit{
		ClientIP:    ip,
		UserAgent:   r.UserAgent(),
		Referrer:    r.Referer(),
		UTMSource:   q.Get("utm_source"),
		UTMMedium:   q.Get("utm_medium"),
		UTMCampaign: q.Get("utm_campaign"),
	}
}
