package crashlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	recorder := NewRecorder(&buf)

	err := recorder.Record(Incident{
		ID:      "incident-1",
		TraceID: "trace-1",
		Method:  "POST",
		Path:    "/query",
		Panic:   "boom",
		Stack:   []byte("goroutine 1 [running]"),
	})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "incident-1", entry["incident_id"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "/query", entry["path"])
	assert.Equal(t, "boom", entry["panic"])
	assert.Equal(t, "goroutine 1 [running]", entry["stack"])
	assert.Equal(t, "unhandled panic", entry["message"])
}

func TestFileRecorderCreatesFileLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.log")
	recorder := NewFileRecorder(path)
	t.Cleanup(func() { _ = recorder.Close() })

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "crash log should not exist before a panic")

	require.NoError(t, recorder.Record(Incident{Panic: "first"}))
	require.NoError(t, recorder.Record(Incident{Panic: "second"}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		id, _ := entry["incident_id"].(string)
		ids = append(ids, id)
	}
	require.Len(t, ids, 2)
	for _, id := range ids {
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "incident id %q should be a uuid", id)
	}
	assert.NotEqual(t, ids[0], ids[1])
}

func TestRecordWithoutPathFails(t *testing.T) {
	recorder := NewFileRecorder("")
	assert.Error(t, recorder.Record(Incident{Panic: "x"}))
}
