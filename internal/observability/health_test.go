package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticCheck struct{ err error }

func (s staticCheck) CheckReadiness(context.Context) error { return s.err }

func TestReadinessChecks(t *testing.T) {
	down := errors.New("broker down")

	assert.NoError(t, ReadinessChecks{}.CheckReadiness(context.Background()))
	assert.NoError(t, ReadinessChecks{staticCheck{}, staticCheck{}}.CheckReadiness(context.Background()))
	assert.ErrorIs(t, ReadinessChecks{staticCheck{}, staticCheck{err: down}}.CheckReadiness(context.Background()), down)
}
