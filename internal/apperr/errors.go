package apperr

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	ErrRequiresAuthentication = errors.New("authentication required")
	ErrSelfVoteForbidden      = errors.New("cannot vote on your own project")
	ErrUniqueViolation        = errors.New("unique constraint violation")
	ErrForeignKeyViolation    = errors.New("foreign key violation")
	ErrVoteUpdateFailed       = errors.New("vote update failed")
	ErrCommentMutationFailed  = errors.New("comment mutation failed")
	ErrToggleInFlight         = errors.New("vote toggle already in flight")
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// FromPg maps driver errors from pgx and lib/pq onto the taxonomy.
// Errors it does not recognise are returned unchanged.
func FromPg(err error) error {
	if err == nil {
		return nil
	}

	code := ""
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	}

	switch code {
	case pgUniqueViolation:
		return errors.Join(ErrUniqueViolation, err)
	case pgForeignKeyViolation:
		return errors.Join(ErrForeignKeyViolation, err)
	}
	return err
}

// Message turns an error into the string shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRequiresAuthentication):
		return "You must be signed in to do that"
	case errors.Is(err, ErrSelfVoteForbidden):
		return "You cannot vote on your own project"
	case errors.Is(err, ErrToggleInFlight):
		return "Your previous vote is still being saved"
	case errors.Is(err, ErrVoteUpdateFailed):
		return "Failed to update vote. Please try again."
	case errors.Is(err, ErrUniqueViolation):
		return "This URL has already been uploaded"
	case errors.Is(err, ErrForeignKeyViolation):
		return "User not found in database. Please try logging out and back in."
	case errors.Is(err, ErrCommentMutationFailed):
		return "Failed to save comment. Please try again."
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrInvalidInput):
		return strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": ")
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Please try again."
	}
	return "Something went wrong. Please try again."
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrRequiresAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrSelfVoteForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrToggleInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrVoteUpdateFailed), errors.Is(err, ErrCommentMutationFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrUniqueViolation):
		return http.StatusConflict
	case errors.Is(err, ErrForeignKeyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
