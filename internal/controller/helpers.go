package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/cassiomorais/storesync/internal/domain/operation"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrUnknownOperation, http.StatusBadRequest, "unknown_operation"},
	{domainErrors.ErrInvalidPayload, http.StatusBadRequest, "invalid_payload"},
	{domainErrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domainErrors.ErrStoreNotReady, http.StatusServiceUnavailable, "store_not_ready"},
	{domainErrors.ErrPersistFailed, http.StatusServiceUnavailable, "persist_failed"},
	{domainErrors.ErrQueueOwned, http.StatusConflict, "queue_owned"},
	{domainErrors.ErrLeaseLost, http.StatusServiceUnavailable, "lease_lost"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return validateStruct("body", dst)
}

func validateStruct(scope string, v any) error {
	if err := validate.Struct(v); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError(scope, err.Error())
	}
	return nil
}

// decodePayload turns an enqueue request into a typed, validated payload.
// Kinds outside the closed set are rejected here rather than queued.
func decodePayload(req EnqueueRequest) (operation.Payload, error) {
	kind := operation.Kind(req.Kind)
	if !kind.Valid() {
		return nil, domainErrors.NewDomainError("unknown_operation",
			"unsupported operation kind "+req.Kind, domainErrors.ErrUnknownOperation)
	}

	payload, err := operation.DecodePayload(kind, req.Payload)
	if err != nil {
		return nil, domainErrors.NewDomainError("invalid_payload", err.Error(), domainErrors.ErrInvalidPayload)
	}
	if err := validateStruct("payload", payload); err != nil {
		return nil, err
	}
	return payload, nil
}
