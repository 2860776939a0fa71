package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/fdg312/report-hub/internal/auth"
	"github.com/fdg312/report-hub/internal/blob"
	"github.com/fdg312/report-hub/internal/config"
	"github.com/fdg312/report-hub/internal/export"
	"github.com/fdg312/report-hub/internal/storage"
	"github.com/fdg312/report-hub/internal/storage/memory"
	"github.com/fdg312/report-hub/internal/storage/postgres"
	"github.com/fdg312/report-hub/internal/storagevol"
	"github.com/fdg312/report-hub/internal/taskfiles"
	"github.com/fdg312/report-hub/internal/tasks"
	"github.com/fdg312/report-hub/internal/youtrack"
)

// Server представляет HTTP сервер
type Server struct {
	config          *config.Config
	mux             *http.ServeMux
	storage         storage.Storage
	authMiddleware  *auth.Middleware
	exportService   *export.Service
	youtrackService *youtrack.Service
}

// New создаёт новый HTTP сервер
func New(cfg *config.Config) *Server {
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
	}

	// Инициализируем storage
	s.initStorage()

	// Регистрируем маршруты
	s.routes()
	return s
}

// initStorage инициализирует storage (Memory или Postgres)
func (s *Server) initStorage() {
	if s.config.DatabaseURL == "" {
		log.Println("Используется in-memory storage")
		s.storage = memory.New()
	} else {
		log.Println("Подключение к PostgreSQL...")
		ctx := context.Background()
		pgStorage, err := postgres.New(ctx, s.config.DatabaseURL)
		if err != nil {
			log.Printf("Ошибка подключения к PostgreSQL: %v", err)
			log.Println("Fallback на in-memory storage")
			s.storage = memory.New()
		} else {
			log.Println("PostgreSQL подключен успешно")
			s.storage = pgStorage
		}
	}
}

// routes регистрирует маршруты
func (s *Server) routes() {
	// Health check (no auth required)
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	// Auth API (no auth required)
	authService := auth.NewService(s.config)
	authHandler := auth.NewHandlers(authService)
	s.authMiddleware = auth.NewMiddleware(s.config, authService)

	// POST /api/v1/auth/dev - dev token without external IdP
	s.mux.HandleFunc("POST /api/v1/auth/dev", authHandler.HandleDevAuth)

	// Blob store (артефакты задач и выгрузки)
	blobStore := s.initBlobStore()

	// Storage volume API
	volumeService := storagevol.NewService(s.storage.TaskFiles(), s.config.StorageTotalBytes, s.config.StorageWarnPercent)
	volumeHandler := storagevol.NewHandlers(volumeService)

	// GET /api/v1/report-6406/storage/volume - storage volume snapshot
	s.mux.HandleFunc("GET /api/v1/report-6406/storage/volume", volumeHandler.HandleGetVolume)

	// Tasks API
	admission := &admissionAdapter{volume: volumeService}
	tasksService := tasks.NewService(s.storage, admission, s.config.TaskEstimatedBytes)
	tasksHandler := tasks.NewHandlers(tasksService)

	// POST /api/v1/report-6406/tasks - create task
	s.mux.HandleFunc("POST /api/v1/report-6406/tasks", tasksHandler.HandleCreateTask)

	// GET /api/v1/report-6406/tasks - list tasks with filters
	s.mux.HandleFunc("GET /api/v1/report-6406/tasks", tasksHandler.HandleListTasks)

	// GET /api/v1/report-6406/tasks/{id} - get task
	s.mux.HandleFunc("GET /api/v1/report-6406/tasks/{id}", tasksHandler.HandleGetTask)

	// DELETE /api/v1/report-6406/tasks - bulk delete
	s.mux.HandleFunc("DELETE /api/v1/report-6406/tasks", tasksHandler.HandleBulkDelete)

	// POST /api/v1/report-6406/tasks/start - bulk start with admission check
	s.mux.HandleFunc("POST /api/v1/report-6406/tasks/start", tasksHandler.HandleBulkStart)

	// POST /api/v1/report-6406/tasks/cancel - bulk cancel
	s.mux.HandleFunc("POST /api/v1/report-6406/tasks/cancel", tasksHandler.HandleBulkCancel)

	// GET /api/v1/report-6406/tasks/{id}/status-history - status audit trail
	s.mux.HandleFunc("GET /api/v1/report-6406/tasks/{id}/status-history", tasksHandler.HandleGetHistory)

	// Task files API
	filesService := taskfiles.NewService(s.storage, blobStore, s.config.Blob.S3.PresignTTLSeconds)
	filesHandler := taskfiles.NewHandlers(filesService)

	// GET /api/v1/report-6406/tasks/{id}/files - list task artifacts
	s.mux.HandleFunc("GET /api/v1/report-6406/tasks/{id}/files", filesHandler.HandleListFiles)

	// POST /api/v1/report-6406/tasks/{taskId}/files/{fileId}/retry - retry conversion
	s.mux.HandleFunc("POST /api/v1/report-6406/tasks/{taskId}/files/{fileId}/retry", filesHandler.HandleRetryFile)

	// Export API
	s.exportService = export.NewService(s.storage, blobStore, s.config.ExportMaxRecords, s.config.ExportTTLSeconds, s.config.Blob.S3.PresignTTLSeconds)
	exportHandler := export.NewHandlers(s.exportService)

	// POST /api/v1/report-6406/tasks/export - export filtered tasks to csv/pdf
	s.mux.HandleFunc("POST /api/v1/report-6406/tasks/export", exportHandler.HandleExport)

	// GET /api/v1/report-6406/exports/{id}/download - download export
	s.mux.HandleFunc("GET /api/v1/report-6406/exports/{id}/download", exportHandler.HandleDownload)

	// YouTrack sync API
	ytConfig := s.config.YouTrack
	ytClient := youtrack.NewClient(
		ytConfig.BaseURL,
		ytConfig.Token,
		time.Duration(ytConfig.TimeoutSeconds)*time.Second,
		time.Duration(ytConfig.CooldownSeconds)*time.Second,
	)
	s.youtrackService = youtrack.NewService(
		ytClient,
		youtrack.NewLedger(ytConfig.QueueFile),
		youtrack.NewBlacklist(ytConfig.BlacklistFile),
		youtrack.NewLinks(ytConfig.LinksFile),
		ytConfig.MaxAttempts,
	)
	ytHandler := youtrack.NewHandlers(s.youtrackService)

	// GET /api/youtrack/queue - list sync operations
	s.mux.HandleFunc("GET /api/youtrack/queue", ytHandler.HandleListQueue)

	// POST /api/youtrack/queue/process - process pending operations
	s.mux.HandleFunc("POST /api/youtrack/queue/process", ytHandler.HandleProcessQueue)

	// POST /api/youtrack/tasks - create issue (or queue when unavailable)
	s.mux.HandleFunc("POST /api/youtrack/tasks", ytHandler.HandleCreateIssue)

	// GET /api/youtrack/tasks/{taskId}/links - list linked issues
	s.mux.HandleFunc("GET /api/youtrack/tasks/{taskId}/links", ytHandler.HandleListLinks)

	// POST /api/youtrack/tasks/{taskId}/links - link issue to task
	s.mux.HandleFunc("POST /api/youtrack/tasks/{taskId}/links", ytHandler.HandleAddLink)

	// DELETE /api/youtrack/tasks/{taskId}/links/{issueId} - unlink issue
	s.mux.HandleFunc("DELETE /api/youtrack/tasks/{taskId}/links/{issueId}", ytHandler.HandleRemoveLink)

	// Tag blacklist API
	s.mux.HandleFunc("GET /api/youtrack/tags/blacklist", ytHandler.HandleGetBlacklist)
	s.mux.HandleFunc("PUT /api/youtrack/tags/blacklist", ytHandler.HandleReplaceBlacklist)
	s.mux.HandleFunc("POST /api/youtrack/tags/blacklist", ytHandler.HandleAddBlacklistTag)
	s.mux.HandleFunc("DELETE /api/youtrack/tags/blacklist", ytHandler.HandleRemoveBlacklistTag)
}

// initBlobStore инициализирует blob store по BLOB_MODE.
// В local режиме store = nil: артефакты и выгрузки живут в БД/памяти.
func (s *Server) initBlobStore() blob.Store {
	log.Printf("INFO blob: initializing store (BLOB_MODE=%s)", s.config.Blob.Mode)
	store, mode, err := blob.NewBlobStore(s.config.Blob, log.Default())
	if err != nil {
		log.Fatalf("FATAL blob: failed to initialize store: %v", err)
	}
	log.Printf("INFO blob: mode: %s", mode)
	return store
}

// admissionAdapter adapts storagevol.Service to tasks.AdmissionChecker
type admissionAdapter struct {
	volume *storagevol.Service
}

func (a *admissionAdapter) CheckAdmission(ctx context.Context, requiredBytes int64) (*tasks.AdmissionDecision, error) {
	decision, err := a.volume.CheckAdmission(ctx, requiredBytes)
	if err != nil {
		return nil, err
	}
	return &tasks.AdmissionDecision{
		Allowed:        decision.Allowed,
		RequiredBytes:  decision.RequiredBytes,
		AvailableBytes: decision.AvailableBytes,
	}, nil
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	// Build middleware chain (outermost first): CORS → Rate Limit → Identify → Router
	var handler http.Handler = s.mux
	if s.authMiddleware != nil {
		handler = s.authMiddleware.Identify(handler)
	}
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)

	// Отложенный прогон очереди синхронизации после старта.
	if s.youtrackService != nil && s.config.YouTrack.ProcessDelaySeconds > 0 {
		delay := time.Duration(s.config.YouTrack.ProcessDelaySeconds) * time.Second
		time.AfterFunc(delay, func() {
			result, err := s.youtrackService.ProcessPending(context.Background())
			if err != nil {
				log.Printf("WARN youtrack: startup queue pass failed: %v", err)
				return
			}
			if result.Processed > 0 || result.Failed > 0 {
				log.Printf("INFO youtrack: startup queue pass processed=%d failed=%d", result.Processed, result.Failed)
			}
		})
	}

	// Периодическая чистка истёкших выгрузок.
	if s.exportService != nil {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				removed, err := s.exportService.CleanupExpired(context.Background())
				if err != nil {
					log.Printf("WARN export: cleanup failed: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("INFO export: removed %d expired exports", removed)
				}
			}
		}()
	}

	log.Printf("Сервер запущен на http://localhost%s\n", addr)
	log.Printf("Health check: http://localhost%s/healthz\n", addr)
	log.Printf("Tasks API: http://localhost%s/api/v1/report-6406/tasks\n", addr)

	return http.ListenAndServe(addr, handler)
}

// Close закрывает storage и освобождает ресурсы
func (s *Server) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
