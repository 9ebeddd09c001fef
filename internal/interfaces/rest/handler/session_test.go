package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-progress/internal/course"
	infra "github.com/pot-code/course-progress/internal/infrastructure"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/uuid"
	"github.com/pot-code/course-progress/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startSessionServer(t *testing.T, f *fixture, hub *progress.Hub) *httptest.Server {
	ids, err := uuid.NewNanoIDGenerator(12)
	require.NoError(t, err)
	h := NewSessionHandler(f.resolver, f.aggregator, hub, infra.NewWebsocket("https://school.example/course"), ids, f.jwtUtil, f.validator)

	e := echo.New()
	e.GET("/ws/enrolments/:enrolmentId", h.HandleSession, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			f.jwtUtil.SetContextToken(c, &auth.LearnerClaims{ContactID: 3})
			return next(c)
		}
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *serverFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame := new(serverFrame)
	require.NoError(t, conn.ReadJSON(frame))
	return frame
}

func TestSession(t *testing.T) {
	f := setup()
	hub := progress.NewHub(nil, "lessons", zap.NewNop())
	server := startSessionServer(t, f, hub)
	conn := dial(t, server, "/ws/enrolments/7")

	frame := readFrame(t, conn)
	require.Equal(t, frameProgressState, frame.Type)
	assert.Equal(t, "Welcome", frame.State.ResumeLessonName)
	assert.Equal(t, int64(7), frame.State.EnrolmentID)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "launch", "lessonId": 10}))
	frame = readFrame(t, conn)
	require.Equal(t, frameOpenWindow, frame.Type)
	assert.Equal(t, "https://app/l?enrolmentId=7&lessonId=10", frame.URL)
	assert.NotEmpty(t, frame.WindowID)
	windowID := frame.WindowID

	frame = readFrame(t, conn)
	require.Equal(t, frameProgressState, frame.Type)
	assert.Equal(t, course.LessonID(10), frame.State.LastLessonID)
	assert.True(t, frame.State.InProgress.Has(10))
	inProgress, err := f.store.ListInProgress(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []course.LessonID{10}, inProgress)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "window-closed", "windowId": windowID}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "window-closed"}))
	frame = readFrame(t, conn)
	assert.Equal(t, frameError, frame.Type)
	assert.Equal(t, "windowId is required", frame.Detail)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "launch", "lessonId": "intro"}))
	frame = readFrame(t, conn)
	assert.Equal(t, frameError, frame.Type)
	assert.Equal(t, "lessonId must be a positive integer", frame.Detail)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "dance"}))
	frame = readFrame(t, conn)
	assert.Equal(t, frameError, frame.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	frame = readFrame(t, conn)
	assert.Equal(t, frameError, frame.Type)

	// messages for other enrolments are not delivered
	hub.Dispatch([]byte(`{"type":"lesson-completed","enrolmentId":9}`))
	hub.Dispatch([]byte(`{"type":"lesson-completed","enrolmentId":7,"lessonId":10}`))
	frame = readFrame(t, conn)
	require.Equal(t, frameProgressState, frame.Type)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "window-message",
		"data": map[string]interface{}{"type": "lesson-state-refresh", "enrolmentId": 7},
	}))
	frame = readFrame(t, conn)
	require.Equal(t, frameProgressState, frame.Type)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "resume"}))
	frame = readFrame(t, conn)
	require.Equal(t, frameOpenWindow, frame.Type)
	assert.Equal(t, "https://app/l?enrolmentId=7&lessonId=10", frame.URL)
	assert.NotEqual(t, windowID, frame.WindowID)
	frame = readFrame(t, conn)
	require.Equal(t, frameProgressState, frame.Type)
}

func TestSessionRejectsForeignEnrolment(t *testing.T) {
	f := setup()
	server := startSessionServer(t, f, progress.NewHub(nil, "lessons", zap.NewNop()))

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/enrolments/9", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestSessionRejectsForeignOrigin(t *testing.T) {
	f := setup()
	server := startSessionServer(t, f, progress.NewHub(nil, "lessons", zap.NewNop()))

	header := http.Header{}
	header.Set("Origin", "https://forum.school.example")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/enrolments/7", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
