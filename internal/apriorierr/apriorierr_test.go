package apriorierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorRendersBracketedKind(t *testing.T) {
	err := Wrap(KindStoreIO, "update session access time", errors.New("connection reset"))
	require.Equal(t, "[store] update session access time: connection reset", err.Error())
}

func TestErrorWithoutCause(t *testing.T) {
	err := New(KindScene, "object already exists")
	require.Equal(t, "[scene] object already exists", err.Error())
}

func TestConsistencyViolationsAreFatal(t *testing.T) {
	err := New(KindConsistency, "segment gap detected")
	require.True(t, err.Fatal())
	require.True(t, Fatal(err))
}

func TestSessionLockLossIsFatal(t *testing.T) {
	err := Wrap(KindStoreIO, "save session", ErrSessionLockLost)
	require.True(t, err.Fatal())
	require.True(t, errors.Is(err, ErrSessionLockLost))
}

func TestOtherStoreErrorsAreNotFatal(t *testing.T) {
	err := Wrap(KindStoreIO, "save session", errors.New("disk full"))
	require.False(t, err.Fatal())
}

func TestInputErrorsAreNeverFatal(t *testing.T) {
	err := New(KindInput, "unknown command")
	require.False(t, Fatal(err))
	require.False(t, Fatal(errors.New("plain error")))
}
