package sl

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("something went wrong")
	attr := Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.Panics(t, func() {
		_ = Err(nil)
	})
}

func TestChatID(t *testing.T) {
	attr := ChatID(42)

	assert.Equal(t, "chat_id", attr.Key)
	assert.Equal(t, int64(42), attr.Value.Int64())
}

func TestNewLogger_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, envProd)

	log.Debug("hidden")
	log.Info("tick finished", ChatID(7))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tick finished", entry["msg"])
	assert.EqualValues(t, 7, entry["chat_id"])
}

func TestNewLogger_LocalWritesDebugText(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, envLocal)

	log.Debug("pass started")

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "pass started")
}
