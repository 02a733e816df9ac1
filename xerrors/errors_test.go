package xerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestFromError(t *testing.T) {
	wrapped := fmt.Errorf("read points: %w", ErrInvalidCoordinate)

	e, ok := FromError(wrapped)
	require.True(t, ok)
	assert.Same(t, ErrInvalidCoordinate, e)
	assert.Equal(t, codes.InvalidArgument, e.GRPCCode())

	e, ok = FromError(ErrNonConvergence)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, e.GRPCCode())

	_, ok = FromError(errors.New("plain"))
	assert.False(t, ok)
	_, ok = FromError(nil)
	assert.False(t, ok)
}
