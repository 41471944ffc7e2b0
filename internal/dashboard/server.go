// Package dashboard serves the operator HTTP API. Status actions go through
// the same statussync path as staff-chat buttons.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/access"
	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/gazetteer"
	"github.com/liftcare/field-bot/internal/models"
	"github.com/liftcare/field-bot/internal/statussync"
	"github.com/liftcare/field-bot/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

// Runner delivers chat effects produced by dashboard actions.
type Runner interface {
	Run(ctx context.Context, effects []chat.Effect) int
}

type Deps struct {
	Requests    *store.Requests
	Logs        *store.Logs
	Sync        *statussync.Syncer
	Access      *access.Registry
	Gazetteer   *gazetteer.Gazetteer
	Runner      Runner // nil when the requests bot is not running
	CORSOrigins []string
	Location    *time.Location
	Logger      *zap.Logger
}

type Server struct {
	engine   *gin.Engine
	deps     Deps
	validate *validator.Validate
	logger   *zap.Logger
}

func New(d Deps) *Server {
	if d.Location == nil {
		d.Location = time.UTC
	}
	s := &Server{
		engine:   gin.New(),
		deps:     d,
		validate: validator.New(),
		logger:   d.Logger.Named("dashboard"),
	}
	s.engine.Use(gin.Recovery(), RequestID(), RequestLogger(s.logger), CORS(d.CORSOrigins))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.GET("/requests", s.listRequests)
	api.POST("/requests/:id/done", s.complete)
	api.POST("/requests/:id/not-working", s.markNotWorking)
	api.DELETE("/requests/:id", s.deleteRequest)
	api.GET("/chat-rights", s.chatRights)
	api.POST("/chat-rights", s.setChatRight)
	api.POST("/gazetteer/reload", s.reloadGazetteer)
	api.GET("/maintenance-logs", s.maintenanceLogs)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	return nil
}

type requestDTO struct {
	ID            int    `json:"id"`
	Timestamp     string `json:"timestamp"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	District      string `json:"district"`
	Address       string `json:"address"`
	Entrance      string `json:"entrance"`
	Issue         string `json:"issue"`
	Status        string `json:"status"`
	Completed     bool   `json:"completed"`
	CompletedTime string `json:"completed_time"`
	ProcessedBy   string `json:"processed_by"`
	UserID        int64  `json:"user_id"`
}

func (s *Server) toRequestDTO(position int, r models.Request) requestDTO {
	dto := requestDTO{
		ID:          position,
		Timestamp:   r.CreatedAt.In(s.deps.Location).Format(timeLayout),
		Name:        r.Name,
		Phone:       r.Phone,
		District:    r.District,
		Address:     r.Address,
		Entrance:    r.Entrance,
		Issue:       r.Issue,
		Status:      string(r.Status),
		Completed:   r.CompletedAt != nil,
		ProcessedBy: r.ProcessedBy,
		UserID:      r.UserID,
	}
	if r.CompletedAt != nil {
		dto.CompletedTime = r.CompletedAt.In(s.deps.Location).Format(timeLayout)
	}
	return dto
}

func (s *Server) listRequests(c *gin.Context) {
	list := s.deps.Requests.List()
	out := make([]requestDTO, 0, len(list))
	for i, r := range list {
		out = append(out, s.toRequestDTO(i+1, r))
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

// resolve maps the 1-based display id of the path to the stable request id.
func (s *Server) resolve(c *gin.Context) (int64, error) {
	position, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, apperr.Validation("id must be a number")
	}
	r, found := s.deps.Requests.At(position)
	if !found {
		return 0, apperr.NotFound(fmt.Sprintf("request #%d not found", position))
	}
	return r.ID, nil
}

func (s *Server) deliver(c *gin.Context, effects []chat.Effect) {
	if s.deps.Runner == nil || len(effects) == 0 {
		return
	}
	s.deps.Runner.Run(c.Request.Context(), effects)
}

func (s *Server) statusAction(c *gin.Context, action func(id int64) ([]chat.Effect, error)) {
	id, err := s.resolve(c)
	if handleError(c, err) {
		return
	}
	effects, err := action(id)
	if handleError(c, err) {
		return
	}
	s.deliver(c, effects)
	ok(c, nil)
}

func (s *Server) complete(c *gin.Context) {
	s.statusAction(c, func(id int64) ([]chat.Effect, error) {
		return s.deps.Sync.Complete(id, statussync.Dashboard())
	})
}

func (s *Server) markNotWorking(c *gin.Context) {
	s.statusAction(c, func(id int64) ([]chat.Effect, error) {
		return s.deps.Sync.MarkNotWorking(id, statussync.Dashboard())
	})
}

func (s *Server) deleteRequest(c *gin.Context) {
	s.statusAction(c, s.deps.Sync.Delete)
}

func (s *Server) chatRights(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Access.Rights())
}

type chatRightRequest struct {
	Section string `json:"section" validate:"required"`
	Enabled *bool  `json:"enabled" validate:"required"`
}

func (s *Server) setChatRight(c *gin.Context) {
	var req chatRightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, apperr.Validation("invalid JSON body"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		handleError(c, apperr.Validation("section and enabled are required"))
		return
	}
	if handleError(c, s.deps.Access.SetButtonsEnabled(req.Section, *req.Enabled)) {
		return
	}
	ok(c, nil)
}

func (s *Server) reloadGazetteer(c *gin.Context) {
	if err := s.deps.Gazetteer.Reload(); err != nil {
		handleError(c, apperr.Wrap(apperr.KindInternal, "gazetteer reload failed", err))
		return
	}
	ok(c, gin.H{"points": s.deps.Gazetteer.Snapshot().Len()})
}

type logDTO struct {
	ID          int64  `json:"id"`
	Mechanic    string `json:"mechanic"`
	District    string `json:"district"`
	Address     string `json:"address"`
	Entrance    string `json:"entrance"`
	Date        string `json:"date"`
	PhotoFileID string `json:"photo_file_id"`
	Verified    bool   `json:"verified"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) maintenanceLogs(c *gin.Context) {
	logs := s.deps.Logs.List()
	out := make([]logDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, logDTO{
			ID:          l.ID,
			Mechanic:    l.MechanicName,
			District:    l.District,
			Address:     l.Address,
			Entrance:    l.Entrance,
			Date:        l.Date.Format("2006-01-02"),
			PhotoFileID: l.PhotoFileID,
			Verified:    l.Verified,
			CreatedAt:   l.CreatedAt.In(s.deps.Location).Format(timeLayout),
		})
	}
	c.JSON(http.StatusOK, gin.H{"logs": out})
}
