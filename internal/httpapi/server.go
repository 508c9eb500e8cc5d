package httpapi

import (
	"context"
	"net/http"
	"time"

	"billops/internal"
	"billops/internal/auth"
	"billops/internal/bills"
	"billops/internal/catalog"
	"billops/internal/config"
	"billops/internal/expense"
	"billops/internal/files"
	"billops/internal/log"
	"billops/internal/pipeline"
	"billops/internal/storage"
	"billops/internal/tasks"
)

// Deps are the services behind the API. Authz may be nil, which allows
// every action. Without Sessions every caller is anonymous.
type Deps struct {
	DB         *storage.DB
	Workspace  *files.Workspace
	Catalog    *catalog.Catalog
	Tasks      *tasks.Manager
	Dispatcher tasks.Dispatcher
	Processor  *pipeline.ProcessingService
	Bills      *bills.Service
	Expense    expense.Submitter
	Auth       *auth.Service
	Sessions   *auth.Sessions
	Authz      *auth.Authorizer
	Logger     *log.Logger
}

type Server struct {
	http.Server
	deps    Deps
	cfg     config.Config
	logger  *log.Logger
	maxBody int64
	now     func() time.Time
}

func NewServer(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}
	s := &Server{
		deps:    deps,
		cfg:     cfg,
		logger:  logger.WithComponent(log.ComponentHTTP),
		maxBody: int64(cfg.MaxUploadMB) << 20,
		now:     time.Now,
	}
	s.Addr = cfg.Addr
	s.Handler = s.routes()
	s.ReadHeaderTimeout = 10 * time.Second
	s.ReadTimeout = time.Duration(cfg.ReadTimeoutSec) * time.Second
	s.WriteTimeout = time.Duration(cfg.WriteTimeoutSec) * time.Second
	s.IdleTimeout = 120 * time.Second
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/companies", s.handleCompanies)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/collect-data", s.handleCollect)
	mux.HandleFunc("GET /api/task-status/{id}", s.handleTaskStatus)

	mux.HandleFunc("POST /api/upload-file", s.handleUploadFile)
	mux.HandleFunc("POST /api/auto-upload", s.handleAutoUpload)
	mux.HandleFunc("GET /api/download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /api/bill-image/{filename}", s.handleBillImage)
	mux.HandleFunc("GET /api/bill-pdf/{filename}", s.handleBillPDF)

	mux.HandleFunc("POST /api/process-file", s.handleProcess)

	mux.HandleFunc("POST /api/upload-bills", s.handleUploadBills)
	mux.HandleFunc("GET /api/bill-amounts", s.handleBillAmounts)

	mux.HandleFunc("GET /api/get-processed-files", s.handleFileLists)
	mux.HandleFunc("POST /api/save-uploaded-files", s.handleSaveFileList(internal.FilesUploaded))
	mux.HandleFunc("POST /api/save-collected-files", s.handleSaveFileList(internal.FilesCollected))
	mux.HandleFunc("POST /api/clear-processed-files", s.handleClearProcessed)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("PUT /api/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)

	mux.HandleFunc("POST /api/expense-automation", s.handleExpense)

	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("PUT /api/admin-users/{employeeId}", s.handleUpdateProfile)

	return Chain(mux,
		log.Middleware(s.logger),
		log.RequestIDMiddleware(requestID),
		log.AccessLog,
		Recover,
		SecurityHeaders,
		CORS(s.cfg.AllowedOrigin),
		MaxBody(s.maxBody),
	)
}

// Shutdown waits up to the configured timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := time.Duration(s.cfg.ShutdownTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.logger.Info("http server shutting down", log.FieldOperation, log.OpShutdown)
	return s.Server.Shutdown(ctx)
}
