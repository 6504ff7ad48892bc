package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Format(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 12)
	assert.NotEqual(t, id, NewID())
}

func TestTag_MintsID(t *testing.T) {
	ctx := Tag(context.Background())
	id, ok := ID(ctx)
	require.True(t, ok)
	assert.Len(t, id, 12)

	other, _ := ID(Tag(context.Background()))
	assert.NotEqual(t, id, other)
}

func TestWithID_RoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), "abcd1234abcd")
	id, ok := ID(ctx)
	require.True(t, ok)
	assert.Equal(t, "abcd1234abcd", id)
}

func TestID_MissingFromContext(t *testing.T) {
	_, ok := ID(context.Background())
	assert.False(t, ok)
}

func TestHandler_InjectsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil)))

	ctx := WithID(context.Background(), "deadbeef0000")
	logger.InfoContext(ctx, "hello")

	assert.Contains(t, buf.String(), "correlation_id=deadbeef0000")
}

func TestHandler_NoIDNoAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "hello")

	assert.NotContains(t, buf.String(), "correlation_id")
}
