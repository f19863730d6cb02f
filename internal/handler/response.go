package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/mustafamilyas/expense-tracker/internal/logger"
)

var validate = validator.New()

func nowUTC() time.Time { return time.Now().UTC() }

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// Error writes an error JSON response, using AppError status codes when
// available. Anything else is an infrastructure fault and surfaces as a
// generic 500 without internal detail.
func Error(w http.ResponseWriter, err error) {
	if appErr, ok := domain.AsAppError(err); ok {
		if appErr.Code == http.StatusInternalServerError {
			logger.Log.Error().Err(appErr).Msg("internal error")
			JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		JSON(w, appErr.Code, map[string]string{"error": appErr.Message})
		return
	}
	logger.Log.Error().Err(err).Msg("unhandled error")
	JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// DecodeJSON decodes a JSON request body into the given struct and runs
// payload validation.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	if err := validate.Struct(v); err != nil {
		return domain.ErrValidation(err.Error())
	}
	return nil
}
