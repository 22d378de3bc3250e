package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/episoded/episoded/internal/apperr"
)

// mapAppError converts an apperr taxonomy error into the matching huma
// status error. Anything unrecognized falls through as a 500 so a new
// error kind never silently becomes a 200 with a swallowed failure.
func mapAppError(err error) error {
	if err == nil {
		return nil
	}

	var validationErr *apperr.ValidationError
	if errors.As(err, &validationErr) {
		return huma.Error400BadRequest(validationErr.Error())
	}

	var notFoundErr *apperr.NotFoundError
	if errors.As(err, &notFoundErr) {
		return huma.Error404NotFound(notFoundErr.Error())
	}

	var conflictErr *apperr.ConflictError
	if errors.As(err, &conflictErr) {
		return huma.Error409Conflict(conflictErr.Error())
	}

	var queueFullErr *apperr.QueueFullError
	if errors.As(err, &queueFullErr) {
		return huma.Error429TooManyRequests(queueFullErr.Error())
	}

	var lockTimeoutErr *apperr.LockTimeoutError
	if errors.As(err, &lockTimeoutErr) {
		return huma.Error503ServiceUnavailable(lockTimeoutErr.Error())
	}

	var collaboratorErr *apperr.CollaboratorError
	if errors.As(err, &collaboratorErr) {
		return huma.Error502BadGateway(collaboratorErr.Error())
	}

	var artifactIOErr *apperr.ArtifactIOError
	if errors.As(err, &artifactIOErr) {
		return huma.Error500InternalServerError(artifactIOErr.Error())
	}

	return huma.Error500InternalServerError("internal error", err)
}
