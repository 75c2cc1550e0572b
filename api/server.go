// Package api provides the HTTP server for StockDeck.
//
// It serves the dashboard pages, a JSON API for news, quotes, history
// and chat, and a WebSocket stream for chat tokens.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/stockdeck/stockdeck/internal/assistant"
	"github.com/stockdeck/stockdeck/internal/auth"
	"github.com/stockdeck/stockdeck/internal/config"
	"github.com/stockdeck/stockdeck/internal/llm"
	"github.com/stockdeck/stockdeck/internal/market"
	"github.com/stockdeck/stockdeck/internal/newsfeed"
	"github.com/stockdeck/stockdeck/pkg/models"
	"github.com/stockdeck/stockdeck/web"
)

// Version is stamped at build time.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	engine  *newsfeed.Engine
	wire    *newsfeed.Wire
	market  *market.Client
	chat    *assistant.Assistant
	auth    *auth.Service
	serveUI bool
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config) (*Server, error) {
	engine := newsfeed.NewEngine([]newsfeed.Provider{
		newsfeed.NewAlphaVantageClient(cfg.News.AlphaVantageKey),
		newsfeed.NewNewsAPIClient(cfg.News.NewsAPIKey),
	}, newsfeed.NewSampleSource())

	var wire *newsfeed.Wire
	if cfg.News.WireEnabled {
		wire = newsfeed.NewWire()
	}

	var chat *assistant.Assistant
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(cfg.LLM.APIKey,
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithModel(cfg.LLM.Model))
		if err != nil {
			return nil, fmt.Errorf("LLM setup failed: %w", err)
		}
		chat = assistant.New(client)
	}

	if dir := filepath.Dir(cfg.Auth.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := auth.OpenStore(cfg.Auth.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		// Ephemeral secret: sessions do not survive a restart.
		secret = randomSecret()
		log.Println("api: STOCKDECK_AUTH_JWT_SECRET not set, using ephemeral secret")
	}

	srv := &Server{
		cfg:     cfg,
		engine:  engine,
		wire:    wire,
		market:  market.NewClient(),
		chat:    chat,
		auth:    auth.NewService(store, secret),
		serveUI: true,
	}

	srv.router = srv.buildRouter()
	return srv, nil
}

// SetServeUI controls whether the embedded pages are served.
// Must be called before ListenAndServe.
func (s *Server) SetServeUI(enabled bool) {
	s.serveUI = enabled
	s.router = s.buildRouter()
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Accounts
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.With(s.requireAuth).Get("/auth/me", s.handleMe)

		// News widget
		r.Get("/news", s.handleNews)
		r.Post("/news/refresh", s.handleNewsRefresh)
		r.Post("/news/category", s.handleNewsCategory)

		// Market data
		r.Get("/quote/{symbol}", s.handleQuote)
		r.Get("/history/{symbol}", s.handleHistory)
		r.Get("/chart/{symbol}", s.handleChart)
		r.Get("/overview", s.handleOverview)
		r.Get("/wire", s.handleWire)

		// Assistant
		r.Post("/chat", s.handleChat)
		r.Get("/ws/chat", s.handleChatSocket)
	})

	if s.serveUI {
		s.mountPages(r)
	}

	return r
}

// mountPages serves the embedded static dashboard pages.
func (s *Server) mountPages(r chi.Router) {
	pages := map[string]string{
		"/":       "index.html",
		"/login":  "login.html",
		"/signup": "signup.html",
		"/stock":  "stock.html",
	}
	staticFS := web.StaticFS()
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticFS)))
	for route, file := range pages {
		name := file
		r.Get(route, func(w http.ResponseWriter, req *http.Request) {
			data, err := web.ReadPage(staticFS, name)
			if err != nil {
				http.Error(w, "page not available", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Write(data) //nolint:errcheck
		})
	}
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CategoryRequest is the body for POST /api/v1/news/category.
type CategoryRequest struct {
	Category string `json:"category"`
}

// ChatRequest is the body for POST /api/v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":  "ok",
			"version": Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.engine.State(),
	})
}

func (s *Server) handleNewsRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.engine.Refresh(ctx),
	})
}

func (s *Server) handleNewsCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := models.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.engine.SelectCategory(ctx, category),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	quote, err := s.market.Quote(ctx, symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    quote,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	days := s.cfg.Market.HistoryDays
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	candles, err := s.market.Daily(ctx, symbol, days)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    candles,
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	candles, err := s.market.Daily(ctx, symbol, s.cfg.Market.HistoryDays)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	cfg := market.DefaultSparklineConfig()
	cfg.Title = market.NormalizeSymbol(symbol)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	fmt.Fprint(w, market.Sparkline(candles, cfg))
}

// handleOverview assembles the home page strip: benchmark indices plus
// wire headlines, fetched concurrently.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	var (
		indices   []*models.Quote
		headlines []models.NewsItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		indices = s.market.Indices(gctx)
		return nil
	})
	if s.wire != nil {
		g.Go(func() error {
			items, err := s.wire.Headlines(gctx, s.cfg.News.WireLimit)
			if err != nil {
				// Non-critical: the strip renders without headlines.
				log.Printf("api: wire headlines failed: %v", err)
				return nil
			}
			headlines = items
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"indices":   indices,
			"headlines": headlines,
		},
	})
}

func (s *Server) handleWire(w http.ResponseWriter, r *http.Request) {
	if s.wire == nil {
		writeError(w, http.StatusServiceUnavailable, "market wire is disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	items, err := s.wire.Headlines(ctx, s.cfg.News.WireLimit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    items,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	answer, err := s.chat.Ask(ctx, req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, assistant.ErrBusy) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"content": answer,
		},
	})
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failing means the host is broken
	}
	return []byte(hex.EncodeToString(b))
}
