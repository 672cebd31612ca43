package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

func TestRunStore_SequencesPerRun(t *testing.T) {
	store := NewRunStore(logr.Discard())

	require.NoError(t, store.Append(NewRunStartedEvent("run-a", "2025-03-01", "simplex")))
	require.NoError(t, store.Append(NewRunStartedEvent("run-b", "2025-03-02", "greedy")))
	require.NoError(t, store.Append(NewWarningRaisedEvent("run-a",
		entities.NewWarning(entities.DegradedInputWarning, "orders", "order table absent"))))

	a, err := store.Run("run-a")
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Equal(t, 1, a[0].Seq())
	assert.Equal(t, 2, a[1].Seq())
	assert.Equal(t, WarningRaisedEvent, a[1].Type())
	assert.Equal(t, "run-a", a[1].RunID())

	assert.Equal(t, []string{"run-a", "run-b"}, store.Runs())

	_, err = store.Run("run-c")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestRunStore_ClosesStreamOnTerminalEvent(t *testing.T) {
	store := NewRunStore(logr.Discard())

	require.NoError(t, store.Append(NewRunStartedEvent("run", "2025-03-01", "simplex")))
	require.NoError(t, store.Append(NewRunFailedEvent("run", "solve",
		entities.NewSolveFailure(entities.StatusTimeLimit, "too slow", nil))))

	err := store.Append(NewWarningRaisedEvent("run",
		entities.NewWarning(entities.DataQualityWarning, "late", "after the end")))
	assert.ErrorIs(t, err, ErrRunClosed)

	evs, err := store.Run("run")
	require.NoError(t, err)
	assert.Len(t, evs, 2)
}

func TestRunStore_RejectsEventWithoutRun(t *testing.T) {
	store := NewRunStore(logr.Discard())
	assert.Error(t, store.Append(NewRunStartedEvent("", "2025-03-01", "simplex")))
	assert.Empty(t, store.Runs())
}

func TestRunStore_NotifiesSubscribersInOrder(t *testing.T) {
	store := NewRunStore(logr.Discard())

	var seen []string
	all := &HandlerFunc{Fn: func(e Event) error {
		seen = append(seen, e.Type())
		return nil
	}}
	warnings := 0
	onlyWarnings := &HandlerFunc{Types: []string{WarningRaisedEvent}, Fn: func(Event) error {
		warnings++
		return errors.New("handler errors are logged, not returned")
	}}
	require.NoError(t, store.Subscribe(all))
	require.NoError(t, store.Subscribe(onlyWarnings))

	require.NoError(t, store.Append(NewRunStartedEvent("run", "2025-03-01", "simplex")))
	require.NoError(t, store.Append(NewWarningRaisedEvent("run",
		entities.NewWarning(entities.PolicyConflictWarning, "policy", "surplus-only forced on"))))

	assert.Equal(t, []string{RunStartedEvent, WarningRaisedEvent}, seen)
	assert.Equal(t, 1, warnings)

	require.NoError(t, store.Unsubscribe(all))
	require.NoError(t, store.Append(NewRunFailedEvent("run", "solve",
		entities.NewSolveFailure(entities.StatusTimeLimit, "too slow", nil))))
	assert.Len(t, seen, 2)
}

func TestSaveJSON(t *testing.T) {
	dir := t.TempDir()
	events := []Event{
		NewRunStartedEvent("run", "2025-03-01", "simplex"),
		NewRunFailedEvent("run", "solve", entities.NewSolveFailure(entities.StatusTimeLimit, "too slow", nil)),
	}

	path, err := SaveJSON(filepath.Join(dir, "out"), events)
	require.NoError(t, err)
	assert.Equal(t, EventsFile, filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, RunFailedEvent, decoded[1]["type"])
	assert.Equal(t, "TIME_LIMIT", decoded[1]["data"].(map[string]any)["status"])
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}
