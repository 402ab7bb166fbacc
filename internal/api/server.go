package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/propscore/internal/ai"
	"github.com/david/propscore/internal/analysis"
	"github.com/david/propscore/internal/auth"
	"github.com/david/propscore/internal/config"
	"github.com/david/propscore/internal/db"
	"github.com/david/propscore/internal/models"
	"github.com/david/propscore/internal/rentcast"
)

// excerptLen is the plain-text narrative preview length in list responses.
const excerptLen = 280

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Echo        *echo.Echo
	DB          *pgxpool.Pool
	AI          *ai.OllamaClient
	Scorer      *analysis.Scorer

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool, cfg *config.Config) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	store := db.NewStore(pool)
	authService := auth.NewService(pool)

	aiClient := ai.NewOllamaClient(cfg.Ollama.BaseURL, cfg.Ollama.EmbedModel, cfg.Ollama.GenModel)

	provider := rentcast.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
	provider.HTTP.Timeout = time.Duration(cfg.Provider.TimeoutSeconds) * time.Second
	provider.MaxRetries = cfg.Provider.MaxRetries

	scorer := analysis.NewScorer(provider, ai.NewNarrator(aiClient))
	scorer.SizeTolerancePct = cfg.Comps.SizeTolerancePct
	scorer.RecencyDays = cfg.Comps.RecencyDays

	s := &Server{
		DB:          pool,
		Store:       store,
		AuthService: authService,
		Echo:        e,
		AI:          aiClient,
		Scorer:      scorer,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.POST("/analyses", s.handleCreateAnalysis)
	api.GET("/analyses", s.handleListAnalyses)
	api.GET("/analyses/:id", s.handleGetAnalysis)
	// Public Stats
	api.GET("/stats", s.handleGetStats)
	api.GET("/zipcodes", s.handleGetZipCodes)

	// Admin Routes
	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/admin/backfill-embeddings", s.handleBackfillEmbeddings)
	admin.GET("/admin/job/:id", s.handleJobStatus)

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected Routes (Saved Analyses)
	saved := api.Group("/saved")
	saved.Use(auth.Middleware)
	saved.POST("/:id", s.handleSaveAnalysis)
	saved.DELETE("/:id", s.handleUnsaveAnalysis)
	saved.GET("", s.handleGetSavedAnalyses)
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrUserExists {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrInvalidCreds {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type analyzeRequest struct {
	Address         string  `json:"address"`
	ConsideredPrice float64 `json:"considered_price"`
}

func (s *Server) handleCreateAnalysis(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	result, err := s.Scorer.Score(c.Request().Context(), req.Address, req.ConsideredPrice)
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		c.Logger().Errorf("Failed to score property: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	result.Breakdown.AIAnalysis = sanitizeNarrative(result.Breakdown.AIAnalysis)
	result.ExchangeAnalysis = sanitizeNarrative(result.ExchangeAnalysis)

	record := analysisRecord(result)

	// Best-effort embedding; a failure leaves the column NULL for backfill.
	var embedding []float32
	aiCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if vec, err := s.AI.GenerateEmbedding(aiCtx, embeddingText(record)); err != nil {
		c.Logger().Errorf("Failed to generate analysis embedding: %v", err)
	} else {
		embedding = vec
	}

	if err := s.Store.SaveAnalysis(c.Request().Context(), record, embedding); err != nil {
		c.Logger().Errorf("Failed to persist analysis: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":       record.ID,
		"analysis": result,
	})
}

// analysisRecord flattens a scoring result into the persisted row shape.
func analysisRecord(result *analysis.Result) *models.Analysis {
	record := &models.Analysis{
		Address:          result.Address,
		FormattedAddress: result.FormattedAddress,
		ZipCode:          result.ZipCode,
		ConsideredPrice:  result.ConsideredPrice,
		PriceBand:        result.Breakdown.PriceBand,
		TotalScore:       result.Breakdown.TotalScore,
		ValueScore:       result.Breakdown.ValueScore,
		LocationScore:    result.Breakdown.LocationScore,
		FeatureScore:     result.Breakdown.FeatureScore,
		Confidence:       result.Breakdown.Confidence,
		EstimatedValue:   result.Breakdown.ValueAnalysis.EstimatedValue,
		MonthlyRent:      result.Income.MonthlyRent,
		GRM:              result.Income.GRM,
		CapRatePct:       result.Income.CapRatePct,
		TimelineRisk:     result.Exchange.TimelineRisk,
		LikeKindStatus:   result.Exchange.LikeKindStatus,
		Factors:          result.Breakdown.Factors,
		AIAnalysis:       result.Breakdown.AIAnalysis,
		ExchangeAnalysis: result.ExchangeAnalysis,
	}
	if result.Property != nil {
		record.PropertyType = result.Property.PropertyType
	}
	if record.FormattedAddress == "" {
		record.FormattedAddress = rentcast.FormatAddress(result.Address)
	}
	if record.ZipCode == "" {
		record.ZipCode = rentcast.ExtractZip(result.Address)
	}

	// The full breakdown travels as jsonb so the API can serve it back intact.
	if raw, err := json.Marshal(result.Breakdown); err == nil {
		_ = json.Unmarshal(raw, &record.Breakdown)
	}

	return record
}

func embeddingText(a *models.Analysis) string {
	return strings.TrimSpace(a.FormattedAddress + " " + a.PropertyType + " " + a.AIAnalysis)
}

func (s *Server) handleListAnalyses(c echo.Context) error {
	q := c.QueryParam("q")

	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	params := db.ListParams{
		Query:        q,
		ZipCode:      c.QueryParam("zip"),
		PriceBand:    c.QueryParam("price_band"),
		Confidence:   c.QueryParam("confidence"),
		TimelineRisk: c.QueryParam("timeline_risk"),
		PropertyType: c.QueryParam("property_type"),
		SortBy:       c.QueryParam("sort"),
		Limit:        limit,
		Offset:       offset,
	}
	if v, err := strconv.Atoi(c.QueryParam("min_score")); err == nil && v > 0 {
		params.MinScore = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_price"), 64); err == nil && v > 0 {
		params.MinPrice = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("max_price"), 64); err == nil && v > 0 {
		params.MaxPrice = v
	}

	// Generate embedding for semantic search
	if q != "" {
		aiCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		vec, err := s.AI.GenerateEmbedding(aiCtx, q)
		if err != nil {
			c.Logger().Errorf("Failed to generate query embedding: %v", err)
			// Fallback: keyword search only
		} else {
			params.QueryEmbedding = vec
		}
	}

	result, err := s.Store.ListAnalyses(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list analyses: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	// List views get a plain-text preview; the detail endpoint serves the
	// full narratives.
	for i := range result.Analyses {
		result.Analyses[i].AIAnalysis = narrativeExcerpt(result.Analyses[i].AIAnalysis, excerptLen)
		result.Analyses[i].ExchangeAnalysis = narrativeExcerpt(result.Analyses[i].ExchangeAnalysis, excerptLen)
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetAnalysis(c echo.Context) error {
	id := c.Param("id")
	a, err := s.Store.GetAnalysis(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetZipCodes(c echo.Context) error {
	zips, err := s.Store.GetZipCodes(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, zips)
}

func (s *Server) handleBackfillEmbeddings(c echo.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A backfill job is already running",
			"job_id": job.ID,
		})
	}

	batchSize := 200
	if raw := strings.TrimSpace(c.QueryParam("batch_size")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 2000 {
			batchSize = parsed
		}
	}

	// context.WithoutCancel detaches from the HTTP lifecycle but preserves
	// trace values. We add our own timeout for safety.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	// Run in background goroutine and return 202 immediately.
	go func() {
		defer jobCancel()

		embedded, failed, err := s.backfillEmbeddings(jobCtx, batchSize)
		if err != nil {
			s.jobMu.Lock()
			job.Status = "failed"
			job.Error = err.Error()
			job.EndedAt = time.Now()
			s.jobMu.Unlock()
			log.Printf("[backfill-job %s] failed: %v", jobID, err)
			return
		}

		s.jobMu.Lock()
		job.Status = "completed"
		job.EndedAt = time.Now()
		job.Result = map[string]interface{}{
			"embedded":        embedded,
			"failed":          failed,
			"batch_size_used": batchSize,
		}
		s.jobMu.Unlock()
		log.Printf("[backfill-job %s] completed: embedded=%d failed=%d", jobID, embedded, failed)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Embedding backfill started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

// backfillEmbeddings embeds analyses missing a vector, batch by batch, until
// none remain or the context expires.
func (s *Server) backfillEmbeddings(ctx context.Context, batchSize int) (int, int, error) {
	embedded, failed := 0, 0

	for {
		if err := ctx.Err(); err != nil {
			return embedded, failed, err
		}

		candidates, err := s.Store.AnalysesMissingEmbeddings(ctx, batchSize)
		if err != nil {
			return embedded, failed, fmt.Errorf("failed to load candidates: %w", err)
		}
		if len(candidates) == 0 {
			return embedded, failed, nil
		}

		progressed := false
		for _, candidate := range candidates {
			vec, err := s.AI.GenerateEmbedding(ctx, candidate.Text)
			if err != nil {
				failed++
				log.Printf("backfill: embedding failed for %s: %v", candidate.ID, err)
				continue
			}
			if err := s.Store.UpdateEmbedding(ctx, candidate.ID, vec); err != nil {
				failed++
				log.Printf("backfill: update failed for %s: %v", candidate.ID, err)
				continue
			}
			embedded++
			progressed = true
		}

		// Every candidate in the batch failed; stop instead of spinning on
		// the same rows.
		if !progressed {
			return embedded, failed, nil
		}
	}
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	job := s.runningJob
	s.jobMu.Unlock()

	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	s.jobMu.Lock()
	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	s.jobMu.Unlock()

	return c.JSON(http.StatusOK, resp)
}

// Protected Handlers

func (s *Server) handleSaveAnalysis(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid analysis ID"})
	}

	if err := s.AuthService.SaveAnalysis(ctx, userID, analysisID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save analysis"})
	}

	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnsaveAnalysis(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid analysis ID"})
	}

	if err := s.AuthService.UnsaveAnalysis(ctx, userID, analysisID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to unsave analysis"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "unsaved"})
}

func (s *Server) handleGetSavedAnalyses(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	analyses, err := s.AuthService.GetSavedAnalyses(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch saved analyses"})
	}

	if analyses == nil {
		analyses = []models.Analysis{}
	}

	return c.JSON(http.StatusOK, analyses)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
