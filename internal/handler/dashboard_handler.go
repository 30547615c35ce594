package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-report-api/internal/dto"
	"github.com/noah-isme/civic-report-api/internal/middleware"
	"github.com/noah-isme/civic-report-api/internal/models"
	"github.com/noah-isme/civic-report-api/internal/service"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
	"github.com/noah-isme/civic-report-api/pkg/response"
)

const (
	liveWriteWait   = 10 * time.Second
	livePongWait    = 60 * time.Second
	livePingPeriod  = livePongWait * 9 / 10
	liveReadLimit   = 64 * 1024
	liveSendBacklog = 32
)

// dashboardBackend lists issues and persists status changes.
type dashboardBackend interface {
	service.IssueLister
	service.StatusUpdater
}

// DashboardHandler serves the dashboard view, both as a one-shot snapshot
// and as a live WebSocket session.
type DashboardHandler struct {
	backend  dashboardBackend
	feed     service.ChangeSource
	metrics  *service.MetricsService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewDashboardHandler constructs the handler. feed may be nil, in which case
// live dashboards report a disconnected feed.
func NewDashboardHandler(backend dashboardBackend, feed service.ChangeSource, metrics *service.MetricsService, logger *zap.Logger, allowedOrigins []string) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{
		backend: backend,
		feed:    feed,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Snapshot godoc
// @Summary Dashboard
// @Description Loads the viewer's issues (all of them for administrators), applies the filters and reports stats and feed state
// @Tags Dashboard
// @Produce json
// @Param status query string false "all, pending, in-progress or resolved"
// @Param category query string false "all, pothole, garbage, sewage, streetlight or others"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Snapshot(c *gin.Context) {
	identity, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.DashboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	dashboard := service.NewDashboard(identity, h.backend, h.backend, h.logger)
	if err := dashboard.ApplyFilter(query.Filter()); err != nil {
		response.Error(c, err)
		return
	}
	if err := dashboard.Load(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}

	snapshot := dashboard.Snapshot()
	snapshot.Feed = h.feedStatus(nil)
	middleware.SetMeta(c, "feed_connected", snapshot.Feed.Connected)
	response.JSON(c, http.StatusOK, snapshot, middleware.ExtractMeta(c))
}

// Live godoc
// @Summary Live dashboard
// @Description WebSocket session. The server pushes snapshot, change and error messages; the client sends filter, reload and update-status actions.
// @Tags Dashboard
// @Param access_token query string false "Bearer token for clients that cannot set headers"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} response.Envelope
// @Router /dashboard/live [get]
func (h *DashboardHandler) Live(c *gin.Context) {
	identity, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("live dashboard upgrade failed", zap.String("user_id", identity.ID), zap.Error(err))
		return
	}

	h.metrics.LiveDashboardOpened()
	defer h.metrics.LiveDashboardClosed()

	session := newLiveSession(c.Request.Context(), conn, identity, h)
	session.serve()
}

func (h *DashboardHandler) feedStatus(feed *service.ChangeFeed) models.FeedStatus {
	if feed != nil {
		return feed.Status()
	}
	if h.feed == nil {
		return models.FeedStatus{}
	}
	return models.FeedStatus{Connected: h.feed.Connected()}
}

// liveSession binds one socket to one dashboard and one change feed.
type liveSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	conn      *websocket.Conn
	handler   *DashboardHandler
	dashboard *service.Dashboard
	feed      *service.ChangeFeed
	out       chan dto.LiveMessage
	logger    *zap.Logger
}

func newLiveSession(parent context.Context, conn *websocket.Conn, identity models.Identity, h *DashboardHandler) *liveSession {
	ctx, cancel := context.WithCancel(parent)
	return &liveSession{
		ctx:       ctx,
		cancel:    cancel,
		conn:      conn,
		handler:   h,
		dashboard: service.NewDashboard(identity, h.backend, h.backend, h.logger),
		out:       make(chan dto.LiveMessage, liveSendBacklog),
		logger:    h.logger.With(zap.String("user_id", identity.ID)),
	}
}

func (s *liveSession) serve() {
	defer s.conn.Close()
	defer s.cancel()

	go s.writeLoop()

	s.feed = service.NewChangeFeed(s.ctx, s.handler.feed, s.dashboard.Scope(), s.onChange, s.logger, s.handler.metrics)
	defer s.feed.Close()

	if err := s.dashboard.Load(s.ctx); err != nil {
		s.sendError(err)
	}
	s.sendSnapshot()

	s.readLoop()
}

func (s *liveSession) onChange(kind models.ChangeKind, issue models.Issue) {
	s.dashboard.ApplyChange(kind, issue)
	s.send(dto.LiveMessage{Type: dto.LiveChange, Kind: kind, Issue: &issue})
	s.sendSnapshot()
}

func (s *liveSession) readLoop() {
	s.conn.SetReadLimit(liveReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		var cmd dto.LiveCommand
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("live dashboard closed", zap.Error(err))
			}
			return
		}
		s.handle(cmd)
	}
}

func (s *liveSession) handle(cmd dto.LiveCommand) {
	switch cmd.Action {
	case dto.ActionFilter:
		filter := models.IssueFilter{Status: cmd.Status, Category: cmd.Category}.Normalize()
		if err := s.dashboard.ApplyFilter(filter); err != nil {
			s.sendError(err)
			return
		}
	case dto.ActionReload:
		if err := s.dashboard.Load(s.ctx); err != nil {
			s.sendError(err)
		}
	case dto.ActionUpdateStatus:
		if strings.TrimSpace(cmd.ID) == "" {
			s.sendError(appErrors.Validation("issue id is required"))
			return
		}
		if err := s.dashboard.ApplyStatusUpdate(s.ctx, cmd.ID, cmd.TargetStatus(), cmd.AdminNotes); err != nil {
			s.sendError(err)
		} else {
			s.send(dto.LiveMessage{Type: dto.LiveAck, Action: cmd.Action})
		}
	default:
		s.sendError(appErrors.Validation("unknown action: " + cmd.Action))
		return
	}
	s.sendSnapshot()
}

func (s *liveSession) sendSnapshot() {
	snapshot := s.dashboard.Snapshot()
	snapshot.Feed = s.handler.feedStatus(s.feed)
	s.send(dto.LiveMessage{Type: dto.LiveSnapshot, Snapshot: &snapshot})
}

func (s *liveSession) sendError(err error) {
	appErr := appErrors.FromError(err)
	s.send(dto.LiveMessage{Type: dto.LiveError, Error: appErr.Message, Code: appErr.Code})
}

func (s *liveSession) send(msg dto.LiveMessage) {
	select {
	case s.out <- msg:
	case <-s.ctx.Done():
	}
}

// writeLoop is the only goroutine writing to the socket.
func (s *liveSession) writeLoop() {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debug("live dashboard write failed", zap.Error(err))
				s.cancel()
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				_ = s.conn.Close()
				return
			}
		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// originChecker allows same-origin requests, any origin for "*", or the
// configured list.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, candidate := range allowed {
			if candidate == "*" || strings.EqualFold(candidate, origin) {
				return true
			}
		}
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
	}
}
