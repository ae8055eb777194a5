package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"validation": {Validation("title is required"), http.StatusBadRequest},
		"forbidden":  {Forbidden("supervisors only"), http.StatusForbidden},
		"not found":  {NotFound("goal not found"), http.StatusNotFound},
		"conflict":   {Conflict("already approved"), http.StatusConflict},
		"wrapped":    {fmt.Errorf("approve: %w", NotFound("goal not found")), http.StatusNotFound},
		"plain":      {errors.New("boom"), http.StatusInternalServerError},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeDependency, cause, "failed to send email")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to send email", err.Message())
	assert.True(t, Is(err, CodeDependency))
	assert.False(t, Is(nil, CodeDependency))
}
