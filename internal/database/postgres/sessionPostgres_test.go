package repository

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsStartConflict(t *testing.T) {
	// Only a unique violation on the open-lane index counts: the second of
	// two racing starts must surface as ErrSessionActive, nothing else.
	assert.True(t, isStartConflict(&pq.Error{Code: "23505"}))
	assert.False(t, isStartConflict(&pq.Error{Code: "40001"}))
	assert.False(t, isStartConflict(errors.New("connection reset")))
	assert.False(t, isStartConflict(nil))
}
