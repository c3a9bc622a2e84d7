package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"branch-ledger/internal/config"
	"branch-ledger/internal/handler"
	"branch-ledger/internal/repository"
	"branch-ledger/internal/service"
	"branch-ledger/migrations"
)

// Server represents the HTTP server
type Server struct {
	router *mux.Router
	server *http.Server
	db     *sql.DB
	logger *slog.Logger
	port   string
}

// OpenDB connects to Postgres and verifies the connection.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// PrepareDB opens the database and, when auto_migrate is set, brings the
// schema up to date.
func PrepareDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to database", "host", cfg.DBHost, "database", cfg.DBName)

	if !cfg.AutoMigrate {
		return db, nil
	}
	migrator, err := repository.NewMigrator(db, migrations.FS, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RetryPolicy converts the configured retry settings.
func RetryPolicy(cfg *config.Config) service.RetryPolicy {
	return service.RetryPolicy{
		MaxAttempts:     cfg.TxMaxAttempts,
		InitialInterval: cfg.TxRetryInterval,
		MaxInterval:     25 * cfg.TxRetryInterval,
	}
}

// NewLogger builds the process logger: JSON on stdout, or nothing when the
// log level is "off".
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.LoggingDisabled() {
		return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	level, _ := cfg.SlogLevel()
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx := context.Background()

	db, err := PrepareDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize store (Unit of Work)
	store := repository.NewStore(db, logger)

	// Initialize services
	policy := RetryPolicy(cfg)
	accountService := service.NewAccountService(store, policy, logger)
	transactionService := service.NewTransactionService(store, policy, logger)

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountService)
	transactionHandler := handler.NewTransactionHandler(transactionService)

	// Setup router
	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	// Health check, registered ahead of the principal-guarded API
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	handler.RegisterRoutes(router, accountHandler, transactionHandler, logger)

	return &Server{
		router: router,
		db:     db,
		logger: logger,
	}, nil
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
				"principal_id", r.Header.Get(handler.HeaderPrincipalID),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed", "error", err)
		}
	}()

	return s.port, nil
}

// Stop gracefully shuts down the server, then closes the database.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if s.db != nil {
		s.db.Close()
	}
	return err
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	logger := NewLogger(cfg)

	server, err := NewServer(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.Stop(context.Background())
		return nil, "", err
	}

	return server, port, nil
}
