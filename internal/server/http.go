package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/dispatch"
	"github.com/joseph-ayodele/funeral-audit/internal/entity"
	"github.com/joseph-ayodele/funeral-audit/internal/export"
	"github.com/joseph-ayodele/funeral-audit/internal/notify"
)

const heartbeatInterval = 25 * time.Second

// HTTPServer exposes the dispatcher, the export and the event stream.
type HTTPServer struct {
	dispatcher     *dispatch.Dispatcher
	exporter       *export.Service
	hub            *notify.Hub
	tokens         *TokenService
	health         func(ctx context.Context) error
	maxUploadBytes int64
	logger         *slog.Logger
}

type HTTPConfig struct {
	Dispatcher     *dispatch.Dispatcher
	Exporter       *export.Service
	Hub            *notify.Hub
	Tokens         *TokenService
	Health         func(ctx context.Context) error
	MaxUploadBytes int64
}

func NewHTTPServer(cfg HTTPConfig, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &HTTPServer{
		dispatcher:     cfg.Dispatcher,
		exporter:       cfg.Exporter,
		hub:            cfg.Hub,
		tokens:         cfg.Tokens,
		health:         cfg.Health,
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         logger,
	}
}

// Router builds the gin engine with every route registered.
func (s *HTTPServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", s.healthCheck)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	user := r.Group("/user", RequireAuth(s.tokens))
	user.POST("/add_job", s.addJob)
	user.GET("/jobs", s.listJobs)
	user.GET("/jobs/export", s.exportJobs)
	user.GET("/jobs/:id", s.getJob)
	user.POST("/jobs/:id/stop", s.stopJob)
	user.DELETE("/jobs/:id/delete", s.deleteJob)
	user.GET("/events", s.events)
	return r
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header("X-Request-ID", rid)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))
		c.Next()
		s.logger.Info("http.request",
			"req_id", rid,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *HTTPServer) writeError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.error",
			"req_id", common.RequestIDFromContext(c.Request.Context()),
			"user_id", common.UserIDFromContext(c.Request.Context()),
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.JSON(status, gin.H{"error": common.PublicMessage(err), "code": common.CodeOf(err)})
}

func jobID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, common.InputError("job id must be a UUID")
	}
	return id, nil
}

func (s *HTTPServer) addJob(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		s.writeError(c, common.InputError(fmt.Sprintf("invalid multipart form: %v", err)))
		return
	}

	req := dispatch.SubmitRequest{
		UserID:      GetUserID(c),
		CaseNumber:  c.PostForm("case_number"),
		Branch:      c.PostForm("branch"),
		Description: c.PostForm("description"),
		Feature:     c.PostForm("feature"),
	}
	for _, fh := range form.File["files"] {
		req.Files = append(req.Files, dispatch.FileInput{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	id, err := s.dispatcher.Submit(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "Success", "id": id.String()})
}

func (s *HTTPServer) listJobs(c *gin.Context) {
	jobs, err := s.dispatcher.Query(c.Request.Context(), GetUserID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]entity.JobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.View())
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) getJob(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	job, err := s.dispatcher.Get(c.Request.Context(), GetUserID(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job.View())
}

func (s *HTTPServer) stopJob(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	job, err := s.dispatcher.Cancel(c.Request.Context(), GetUserID(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job.View())
}

func (s *HTTPServer) deleteJob(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.dispatcher.Delete(c.Request.Context(), GetUserID(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "Success"})
}

func (s *HTTPServer) exportJobs(c *gin.Context) {
	data, err := s.exporter.ExportJobsXLSX(c.Request.Context(), GetUserID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	name := fmt.Sprintf("audits_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// events streams the caller's room as Server-Sent Events until the client
// goes away.
func (s *HTTPServer) events(c *gin.Context) {
	sub := s.hub.Subscribe(GetUserID(c))
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	ctx := c.Request.Context()

	c.SSEvent("ready", gin.H{"room": notify.Room(GetUserID(c))})
	c.Writer.Flush()
	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (s *HTTPServer) healthCheck(c *gin.Context) {
	now := time.Now().UTC().Format(time.RFC3339)
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "timestamp": now})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": now})
}
