package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_Records(t *testing.T) {
	buf, logger := NewLogBuffer()

	logger.Debug("commit", "type", "increment", "seq", 1)
	logger.Warn("unknown mutation type", "type", "nope")

	recs := buf.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "DEBUG", recs[0]["level"])
	assert.Equal(t, "increment", recs[0]["type"])
	assert.Equal(t, float64(1), recs[0]["seq"])
	assert.Equal(t, []string{"commit", "unknown mutation type"}, buf.Messages())
}

func TestLogBuffer_SkipsGarbage(t *testing.T) {
	buf, _ := NewLogBuffer()
	_, err := buf.Write([]byte("not json\n"))
	require.NoError(t, err)
	assert.Empty(t, buf.Records())
}

func TestDiscardLogger(t *testing.T) {
	logger := DiscardLogger()
	logger.Error("dropped")
	assert.NotNil(t, logger)
}
