package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/receipts_backend/config"
	"bitbucket.org/mmdatafocus/receipts_backend/models"
	"bitbucket.org/mmdatafocus/receipts_backend/textmatch"
	"bitbucket.org/mmdatafocus/receipts_backend/utils"
	"bitbucket.org/mmdatafocus/receipts_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// app bundles the wired decision layer; constructed once after the DB is
// ready and injected into the handlers (no package-level singletons in the
// core).
type app struct {
	resolver *workflow.LineMatchResolver
	autoPost *workflow.AutoPostWorkflow
	aliases  *models.AliasStore
	logger   *logrus.Logger
}

var application *app

func buildApp(logger *logrus.Logger) *app {
	db := config.GetDB()
	cfg := config.GetTrustConfig()

	aliases := models.NewAliasStore(db)
	items := models.NewItemSearchStore(db)
	drafts := models.NewDraftStore(db)
	vendors := models.NewVendorProfileStore(db)
	posting := models.NewLedgerPostingStore(db)

	detector := workflow.NewAnomalyDetector(drafts, vendors, cfg, logger)

	return &app{
		resolver: workflow.NewLineMatchResolver(aliases, items, logger),
		autoPost: workflow.NewAutoPostWorkflow(drafts, vendors, detector, posting, cfg, logger),
		aliases:  aliases,
		logger:   logger,
	}
}

func businessIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := strings.TrimSpace(c.GetHeader("X-Business-Id"))
		if businessId == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Business-Id header required"})
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

type resolveLineMatchRequest struct {
	RawText       string  `json:"raw_text" binding:"required"`
	ParsedName    *string `json:"parsed_name"`
	GooglePlaceId string  `json:"google_place_id"`
	Profile       string  `json:"profile" binding:"required,oneof=receipt shopping"`
}

func resolveLineMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveLineMatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
		result := application.resolver.Resolve(c.Request.Context(), workflow.LineMatchInput{
			BusinessId:    businessId,
			GooglePlaceId: req.GooglePlaceId,
			RawText:       req.RawText,
			ParsedName:    req.ParsedName,
			Profile:       models.MatchProfile(req.Profile),
		})
		c.JSON(http.StatusOK, result)
	}
}

type confirmAliasRequest struct {
	GooglePlaceId   string  `json:"google_place_id" binding:"required"`
	InventoryItemId int     `json:"inventory_item_id" binding:"required"`
	RawText         string  `json:"raw_text" binding:"required"`
	Confidence      *string `json:"confidence" binding:"omitempty,oneof=high medium low"`
}

// confirmAliasHandler records a human-confirmed match: one alias for the raw
// line text and, when the line carries a distinct store code, one for the
// code, so future lookups match on whichever signal is available.
func confirmAliasHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req confirmAliasRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
		var confidence *models.MatchConfidence
		if req.Confidence != nil {
			conf := models.MatchConfidence(*req.Confidence)
			confidence = &conf
		}

		args := models.BuildAliasUpsertArgs(businessId, req.GooglePlaceId, req.InventoryItemId, req.RawText, confidence)
		if args == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "alias text is empty after normalization"})
			return
		}

		upserted := 0
		if err := application.aliases.UpsertAlias(c.Request.Context(), args); err != nil {
			config.LogError(application.logger, "server.go", "confirmAliasHandler", "UpsertAlias text", args, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save alias"})
			return
		}
		upserted++

		if code := textmatch.ExtractStoreLineCode(req.RawText); code != "" && code != args.AliasText {
			codeArgs := models.BuildAliasUpsertArgs(businessId, req.GooglePlaceId, req.InventoryItemId, code, confidence)
			if codeArgs != nil {
				if err := application.aliases.UpsertAlias(c.Request.Context(), codeArgs); err != nil {
					config.LogError(application.logger, "server.go", "confirmAliasHandler", "UpsertAlias code", codeArgs, err)
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save code alias"})
					return
				}
				upserted++
			}
		}

		c.JSON(http.StatusOK, gin.H{"aliases_saved": upserted})
	}
}

type attemptAutoPostRequest struct {
	ActingUserId int `json:"acting_user_id"`
}

func attemptAutoPostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req attemptAutoPostRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		draftId, err := paramInt(c, "id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid draft id"})
			return
		}

		businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
		result, err := application.autoPost.AttemptAutoPost(c.Request.Context(), businessId, draftId, req.ActingUserId)
		if err != nil {
			// Posting delegate / store failures are hard failures, not
			// business-rule rejections.
			config.LogError(application.logger, "server.go", "attemptAutoPostHandler", "AttemptAutoPost", draftId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auto-post attempt failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func paramInt(c *gin.Context, name string) (int, error) {
	return strconv.Atoi(c.Param(name))
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until the DB is ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || application == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "X-Business-Id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))
	r.Use(gin.Recovery())

	api := r.Group("/api", businessIdMiddleware())
	api.POST("/line-matches/resolve", resolveLineMatchHandler())
	api.POST("/aliases/confirm", confirmAliasHandler())
	api.POST("/drafts/:id/auto-post", attemptAutoPostHandler())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	application = buildApp(logger)

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Panic(err.Error())
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("shutdown: " + err.Error())
		}
	}
}
