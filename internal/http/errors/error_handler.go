package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

type ErrorHandler struct {
	endpoint string
}

type jsonError struct {
	ErrorMsg string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func NewErrorHandler(endpoint string) *ErrorHandler {
	return &ErrorHandler{endpoint}
}

func (eh *ErrorHandler) WriteAndLogError(
	w http.ResponseWriter,
	msg string,
	err error,
	statusCode int,
	fields log.Fields,
) {
	fields["endpoint"] = eh.endpoint
	logErr := fmt.Errorf("%s: %w", msg, err)
	responseErr := ""
	if statusCode >= 500 {
		log.WithFields(fields).Error(logErr)
		responseErr = msg
	} else {
		log.WithFields(fields).Debug(logErr)
		responseErr = logErr.Error()
	}
	eh.writeError(w, jsonError{ErrorMsg: responseErr}, statusCode)
}

func (eh *ErrorHandler) WriteAndLogErrorMsg(
	w http.ResponseWriter,
	msg string,
	statusCode int,
	fields log.Fields,
) {
	fields["endpoint"] = eh.endpoint
	if statusCode >= 500 {
		log.WithFields(fields).Error(msg)
	} else {
		log.WithFields(fields).Debug(msg)
	}
	eh.writeError(w, jsonError{ErrorMsg: msg}, statusCode)
}

// WriteAndLogValidationErrors answers 400 with one entry per failed field, keyed by its JSON name.
func (eh *ErrorHandler) WriteAndLogValidationErrors(
	w http.ResponseWriter,
	err validator.ValidationErrors,
	fields log.Fields,
) {
	failed := make(map[string]string, len(err))
	for _, fieldErr := range err {
		if fieldErr.Param() != "" {
			failed[fieldErr.Field()] = fmt.Sprintf("failed on %s=%s", fieldErr.Tag(), fieldErr.Param())
		} else {
			failed[fieldErr.Field()] = fmt.Sprintf("failed on %s", fieldErr.Tag())
		}
	}
	fields["endpoint"] = eh.endpoint
	fields["fields"] = failed
	log.WithFields(fields).Debug("validation error")
	eh.writeError(w, jsonError{ErrorMsg: "validation error", Fields: failed}, http.StatusBadRequest)
}

func (eh *ErrorHandler) writeError(w http.ResponseWriter, body jsonError, statusCode int) {
	resp, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(resp)
}
