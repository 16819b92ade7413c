package result

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOKAndFail(t *testing.T) {
	ok := OK(3)
	assert.True(t, ok.IsOK())
	assert.Equal(t, 3, ok.Value)
	assert.Equal(t, "ok(3)", ok.String())

	failed := Fail[int](KindPersistence, io.ErrUnexpectedEOF)
	assert.False(t, failed.IsOK())
	assert.Equal(t, 0, failed.Value)
	assert.Equal(t, "persistence: unexpected EOF", failed.String())
}

func TestErrorUnwrap(t *testing.T) {
	err := Errorf(KindTransport, "status %d: %w", 503, io.EOF)

	var classified *Error
	assert.True(t, errors.As(err, &classified))
	assert.Equal(t, KindTransport, classified.Kind)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "transport: status 503: EOF", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindNone, KindOf(io.EOF))
	assert.Equal(t, KindTimeout, KindOf(Errorf(KindTimeout, "deadline")))

	wrapped := fmt.Errorf("call failed: %w", Errorf(KindMalformed, "bad json"))
	assert.Equal(t, KindMalformed, KindOf(wrapped))
}
