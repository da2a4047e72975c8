package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStoreUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert student: %w", &pq.Error{Code: "23505"})
	classified := ClassifyStore(err, "failed to register student")

	assert.Equal(t, ErrConflict.Code, classified.Code)
	assert.Equal(t, http.StatusConflict, classified.Status)
	assert.Equal(t, "failed to register student", classified.Message)
}

func TestClassifyStoreForeignKeyViolation(t *testing.T) {
	classified := ClassifyStore(&pq.Error{Code: "23503"}, "unknown class")
	assert.Equal(t, ErrValidation.Code, classified.Code)
}

func TestClassifyStoreNoRows(t *testing.T) {
	classified := ClassifyStore(fmt.Errorf("load: %w", sql.ErrNoRows), "student not found")
	assert.Equal(t, ErrNotFound.Code, classified.Code)
}

func TestClassifyStoreUnknown(t *testing.T) {
	classified := ClassifyStore(fmt.Errorf("connection reset"), "failed")
	assert.Equal(t, ErrInternal.Code, classified.Code)
}

func TestClassifyStorePassesThroughClassified(t *testing.T) {
	original := Clone(ErrConflict, "already used")
	classified := ClassifyStore(original, "ignored")
	assert.Equal(t, original, classified)
}

func TestClassifyStoreNil(t *testing.T) {
	require.Nil(t, ClassifyStore(nil, "whatever"))
}

func TestClassifyRemoteTransportError(t *testing.T) {
	classified := ClassifyRemote(fmt.Errorf("dial tcp: connection refused"), "auth service unreachable")
	assert.Equal(t, ErrRemoteUnavailable.Code, classified.Code)
	assert.Equal(t, http.StatusBadGateway, classified.Status)
}

func TestClassifyRemotePassesThroughClassified(t *testing.T) {
	original := Clone(ErrConflict, "username taken")
	classified := ClassifyRemote(original, "ignored")
	assert.Equal(t, original, classified)
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Clone(ErrConflict, "taken"))
	assert.True(t, HasCode(err, ErrConflict))
	assert.False(t, HasCode(err, ErrNotFound))
	assert.False(t, HasCode(nil, ErrConflict))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrConflict))
}
