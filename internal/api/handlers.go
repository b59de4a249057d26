package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"nfesorter/internal/job"
	"nfesorter/internal/report"
)

const (
	uploadField  = "ZIP"
	downloadName = "resultado_processado.zip"
)

type uploadResponse struct {
	JobID  string     `json:"job_id"`
	Status job.Status `json:"status"`
}

type statusResponse struct {
	Status    job.Status    `json:"status"`
	Stats     *report.Stats `json:"stats"`
	Error     string        `json:"error,omitempty"`
	CreatedAt string        `json:"created_at"`
}

type API struct {
	jobManager     *job.Manager
	maxUploadBytes int64
}

func NewAPI(jobManager *job.Manager, maxUploadBytes int64) *API {
	return &API{jobManager: jobManager, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", a.Healthz)
	api := router.Group("/api/v1")
	{
		api.POST("/upload", a.Upload)
		api.GET("/status/:id", a.Status)
		api.GET("/download/:id", a.Download)
	}
}

// Upload accepts a ZIP of NFe documents and queues it as a new job
func (a *API) Upload(c *gin.Context) {
	if a.maxUploadBytes > 0 {
		if c.Request.ContentLength > a.maxUploadBytes {
			log.Warn().Int64("content_length", c.Request.ContentLength).Msg("upload too large")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUploadBytes)
	}

	header, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn().Err(err).Msg("upload too large")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		log.Warn().Err(err).Msg("missing upload field")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field " + uploadField})
		return
	}

	upload, err := header.Open()
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read upload"})
		return
	}
	defer func() { _ = upload.Close() }()

	created, err := a.jobManager.Submit(c.Request.Context(), header.Filename, upload)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrExtNotAllowed):
			log.Warn().Str("file", header.Filename).Err(err).Msg("upload rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case created.ID != "":
			// stored and persisted but not dispatched; still reachable by id
			log.Error().Str("job_id", created.ID).Err(err).Msg("dispatch failed")
			c.JSON(http.StatusAccepted, uploadResponse{JobID: created.ID, Status: created.Status})
		default:
			log.Error().Str("file", header.Filename).Err(err).Msg("submit failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot store upload"})
		}
		return
	}
	log.Info().Str("job_id", created.ID).Str("file", header.Filename).Int64("bytes", header.Size).Msg("job created")
	c.JSON(http.StatusAccepted, uploadResponse{JobID: created.ID, Status: created.Status})
}

// Status returns the job status, with counts once completed
func (a *API) Status(c *gin.Context) {
	id := c.Param("id")
	found, ok := a.jobManager.GetJob(id)
	if !ok {
		log.Warn().Str("job_id", id).Msg("job not found on status")
		c.JSON(http.StatusNotFound, gin.H{"error": job.ErrJobNotFound.Error()})
		return
	}
	resp := statusResponse{
		Status:    found.Status,
		Error:     found.Error,
		CreatedAt: found.CreatedAt.UTC().Format(time.RFC3339),
	}
	if found.Status == job.StatusCompleted {
		resp.Stats = found.Stats
	}
	c.JSON(http.StatusOK, resp)
}

// Download serves the sorted archive of a completed job
func (a *API) Download(c *gin.Context) {
	id := c.Param("id")
	found, ok := a.jobManager.GetJob(id)
	if !ok {
		log.Warn().Str("job_id", id).Msg("job not found on download")
		c.JSON(http.StatusNotFound, gin.H{"error": job.ErrJobNotFound.Error()})
		return
	}
	if found.Status != job.StatusCompleted || found.OutputPath == "" {
		log.Warn().Str("job_id", id).Str("status", string(found.Status)).Msg("result not ready to download")
		c.JSON(http.StatusBadRequest, gin.H{"error": "result not available", "status": found.Status})
		return
	}
	log.Info().Str("job_id", id).Str("path", found.OutputPath).Msg("serving result download")
	c.FileAttachment(found.OutputPath, downloadName)
}

// Healthz reports liveness and whether every worker slot is taken
func (a *API) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "busy": a.jobManager.IsBusy()})
}
