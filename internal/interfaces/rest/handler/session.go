package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-progress/internal/course"
	infra "github.com/pot-code/course-progress/internal/infrastructure"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"github.com/pot-code/course-progress/internal/infrastructure/uuid"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"github.com/pot-code/course-progress/internal/progress"
	"go.uber.org/zap"
)

// client frames
const (
	frameLaunch        = "launch"
	frameResume        = "resume"
	frameRefresh       = "refresh"
	frameWindowClosed  = "window-closed"
	frameWindowMessage = "window-message"
)

// server frames
const (
	frameProgressState  = "progress-state"
	frameOpenWindow     = "open-window"
	frameNavigateWindow = "navigate-window"
	frameError          = "error"
)

type clientFrame struct {
	Type     string          `json:"type"`
	LessonID interface{}     `json:"lessonId"`
	URL      string          `json:"url"`
	WindowID string          `json:"windowId"`
	Data     json.RawMessage `json:"data"`
}

type serverFrame struct {
	Type     string          `json:"type"`
	State    *progress.State `json:"state,omitempty"`
	WindowID string          `json:"windowId,omitempty"`
	URL      string          `json:"url,omitempty"`
	Detail   string          `json:"detail,omitempty"`
}

type SessionHandler struct {
	resolver   *progress.ContextResolver
	aggregator *progress.Aggregator
	hub        *progress.Hub
	websocket  *infra.Websocket
	ids        uuid.Generator
	jwtUtil    *auth.JWTUtil
	validator  validate.Validator
}

func NewSessionHandler(
	Resolver *progress.ContextResolver,
	Aggregator *progress.Aggregator,
	Hub *progress.Hub,
	Websocket *infra.Websocket,
	UUIDGenerator uuid.Generator,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *SessionHandler {
	return &SessionHandler{Resolver, Aggregator, Hub, Websocket, UUIDGenerator, JWTUtil, Validator}
}

// HandleSession upgrade to the websocket session of an enrolment
func (sh *SessionHandler) HandleSession(c echo.Context) error {
	enrolmentID, invalid := parseID(sh.validator, "enrolmentId", c.Param("enrolmentId"))
	if invalid != nil {
		return respondInvalid(c, invalid)
	}
	claims := sh.jwtUtil.GetContextToken(c)
	pctx, tree, err := sh.resolver.Resolve(c.Request().Context(), claims.ContactID, enrolmentID)
	if err != nil {
		return resolveError(c, err)
	}
	return sh.websocket.WithHeartbeat(func(c echo.Context, conn *websocket.Conn) error {
		return sh.serve(c, conn, pctx, tree)
	})(c)
}

func (sh *SessionHandler) serve(c echo.Context, conn *websocket.Conn, pctx *progress.Context, tree *course.Course) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	logger := logging.ExtractLoggerFromContext(ctx).With(zap.Int64("enrolment.id", pctx.EnrolmentID))
	sc := newSessionConn(conn, sh.websocket.WriteWait(), sh.ids)
	session := progress.NewSession(pctx, tree, sh.aggregator, sc, sc, logger)
	unregister := sh.hub.Register(ctx, session.Bridge)
	defer unregister()

	run := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}
	run(func() { session.Tracker.Refresh(ctx) })

	logger.Debug("progress session opened")
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("progress session dropped", zap.Error(err))
			}
			return nil
		}

		var frame clientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			sc.sendError("frame is not a json object")
			continue
		}
		switch frame.Type {
		case frameLaunch:
			lessonID, ok := course.ParseLessonID(frame.LessonID)
			if !ok {
				sc.sendError("lessonId must be a positive integer")
				continue
			}
			explicitURL := frame.URL
			run(func() { session.Launcher.Launch(ctx, lessonID, explicitURL) })
		case frameResume:
			lessonID, _ := course.ParseLessonID(frame.LessonID)
			run(func() { session.Launcher.Resume(ctx, lessonID) })
		case frameRefresh:
			run(func() { session.Tracker.Refresh(ctx) })
		case frameWindowClosed:
			if invalid := sh.validator.Empty("windowId", frame.WindowID); invalid != nil {
				sc.sendError(invalid[0].Reason)
				continue
			}
			sc.closeWindow(frame.WindowID)
		case frameWindowMessage:
			data := []byte(frame.Data)
			run(func() { session.Bridge.Receive(ctx, data) })
		default:
			sc.sendError(fmt.Sprintf("unknown frame type %q", frame.Type))
		}
	}
}

// sessionConn serializes frame writes and tracks the lesson windows opened on the page
type sessionConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	ids       uuid.Generator

	wmu sync.Mutex // one writer at a time

	mu      sync.Mutex
	windows map[string]*lessonWindow
}

var (
	_ progress.Publisher    = &sessionConn{}
	_ progress.WindowOpener = &sessionConn{}
)

func newSessionConn(conn *websocket.Conn, writeWait time.Duration, ids uuid.Generator) *sessionConn {
	return &sessionConn{
		conn:      conn,
		writeWait: writeWait,
		ids:       ids,
		windows:   make(map[string]*lessonWindow),
	}
}

func (sc *sessionConn) send(frame *serverFrame) error {
	sc.wmu.Lock()
	defer sc.wmu.Unlock()
	sc.conn.SetWriteDeadline(time.Now().Add(sc.writeWait))
	return sc.conn.WriteJSON(frame)
}

func (sc *sessionConn) sendError(detail string) {
	sc.send(&serverFrame{Type: frameError, Detail: detail})
}

// PublishState implement progress.Publisher
func (sc *sessionConn) PublishState(ctx context.Context, st *progress.State) error {
	return sc.send(&serverFrame{Type: frameProgressState, State: st})
}

// Open implement progress.WindowOpener
func (sc *sessionConn) Open(ctx context.Context, url string) (progress.Window, error) {
	id, err := sc.ids.Generate()
	if err != nil {
		return nil, err
	}
	w := &lessonWindow{id: id, conn: sc}
	sc.mu.Lock()
	sc.windows[id] = w
	sc.mu.Unlock()

	if err := sc.send(&serverFrame{Type: frameOpenWindow, WindowID: id, URL: url}); err != nil {
		sc.closeWindow(id)
		return nil, err
	}
	return w, nil
}

func (sc *sessionConn) closeWindow(id string) {
	sc.mu.Lock()
	w, ok := sc.windows[id]
	delete(sc.windows, id)
	sc.mu.Unlock()
	if ok {
		atomic.StoreInt32(&w.closed, 1)
	}
}

type lessonWindow struct {
	id     string
	conn   *sessionConn
	closed int32
}

func (w *lessonWindow) ID() string {
	return w.id
}

func (w *lessonWindow) Closed() bool {
	return atomic.LoadInt32(&w.closed) == 1
}

func (w *lessonWindow) Navigate(ctx context.Context, url string) error {
	return w.conn.send(&serverFrame{Type: frameNavigateWindow, WindowID: w.id, URL: url})
}
