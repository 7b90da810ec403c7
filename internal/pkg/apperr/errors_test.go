package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKeepsSentinel(t *testing.T) {
	err := New(ErrBoardCycle, "board 4 under 9")
	wrapped := fmt.Errorf("modify board: %w", err)

	assert.True(t, errors.Is(wrapped, ErrBoardCycle))
	assert.False(t, errors.Is(wrapped, ErrBoardSelfParent))
	assert.Equal(t, CodeBoardCycle, CodeOf(wrapped))
}

func TestCodeOfDistinguishesGroupOutcomes(t *testing.T) {
	assert.Equal(t, CodeGroupInSubscription, CodeOf(ErrGroupInSubscription))
	assert.Equal(t, CodeGroupProtected, CodeOf(fmt.Errorf("x: %w", ErrGroupProtected)))
	assert.Equal(t, CodeInternalError, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeSuccess, CodeOf(nil))
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, CodeDatabaseError))

	ae := WrapError(errors.New("conn reset"), CodeDatabaseError)
	assert.Equal(t, CodeDatabaseError, ae.Code)

	orig := New(ErrForbidden, "admin only")
	assert.Same(t, orig, WrapError(orig, CodeInternalError))
}
