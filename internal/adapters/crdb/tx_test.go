package crdb

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializationFailure_KeepsPgError(t *testing.T) {
	restart := &pgconn.PgError{Code: SerializationFailureCode, Message: "restart transaction"}

	err := serializationFailure(errors.Wrap(restart, "commit"))

	require.ErrorIs(t, err, domain.ErrSerializationFailure)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, SerializationFailureCode, pgErr.Code)
}

func TestSerializationFailure_PassesOtherErrors(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}

	err := serializationFailure(unique)

	assert.NotErrorIs(t, err, domain.ErrSerializationFailure)
	assert.Same(t, unique, err)
	assert.NoError(t, serializationFailure(nil))
}
