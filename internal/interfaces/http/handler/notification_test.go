package handler

import (
	"net/http"
	"testing"

	"github.com/bizdash/backend/internal/application/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationHandler(t *testing.T) {
	s := newTestServer(t)
	older := s.notes.Notify(notification.LevelInfo, "test", "First", "first message")
	newer := s.notes.Notify(notification.LevelWarning, "test", "Second", "second message")

	w, env := s.do(t, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state notification.State
	decodeData(t, env, &state)
	require.Len(t, state.Items, 2)
	assert.Equal(t, newer.ID, state.Items[0].ID)
	assert.Equal(t, older.ID, state.Items[1].ID)
	assert.Equal(t, notification.DefaultCapacity, state.Capacity)

	t.Run("dismiss unknown id", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/v1/notifications/missing/dismiss", nil)
		requireError(t, w, env, http.StatusNotFound, "ERR_NOT_FOUND")
		assert.Equal(t, 2, s.notes.State().Len())
	})

	t.Run("dismiss returns the remaining items", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/v1/notifications/"+newer.ID+"/dismiss", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var state notification.State
		decodeData(t, env, &state)
		require.Len(t, state.Items, 1)
		assert.Equal(t, older.ID, state.Items[0].ID)
	})

	t.Run("clear", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/v1/notifications/clear", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var state notification.State
		decodeData(t, env, &state)
		assert.Empty(t, state.Items)
		assert.Equal(t, 0, s.notes.State().Len())
	})
}
