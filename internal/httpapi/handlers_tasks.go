package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"billops/internal/log"
	"billops/internal/queue"
	"billops/internal/storage"
	"billops/internal/util"
)

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"companies": s.deps.Catalog.Names()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.deps.DB != nil && s.deps.DB.Ping() == nil
	status := "healthy"
	if !dbOK {
		status = "degraded"
	}
	body := map[string]any{
		"status":             status,
		"message":            "API 서버가 정상 작동중",
		"crawling_available": s.deps.Dispatcher != nil,
		"modules": map[string]bool{
			"database":  dbOK,
			"collector": s.deps.Dispatcher != nil,
			"processor": s.deps.Processor != nil,
			"bills":     s.deps.Bills != nil,
			"expense":   s.deps.Expense != nil,
		},
	}
	if dbOK {
		if v, err := s.deps.DB.SchemaVersion(); err == nil {
			body["schema_version"] = v
		} else {
			s.logger.WarnContext(r.Context(), "schema version unavailable", log.FieldError, err)
		}
		if at, err := s.deps.DB.GetMetadata(storage.MetaDeptCodesImportedAt); err == nil && at != nil {
			body["dept_codes_imported_at"] = *at
		}
	}
	if s.deps.Processor != nil && s.deps.Catalog != nil {
		supported := []string{}
		for _, name := range s.deps.Catalog.Names() {
			if s.deps.Processor.Supports(name) {
				supported = append(supported, name)
			}
		}
		body["preprocess_companies"] = supported
	}
	writeJSON(w, http.StatusOK, body)
}

type collectRequest struct {
	CompanyName string `json:"company_name"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.CompanyName) == "" {
		writeError(w, http.StatusBadRequest, errMissingParams)
		return
	}
	company, ok := s.deps.Catalog.Get(req.CompanyName)
	if !ok {
		writeError(w, http.StatusBadRequest, "알 수 없는 고객사입니다: "+req.CompanyName)
		return
	}
	if !company.Crawlable {
		writeError(w, http.StatusBadRequest, company.Name+"는 자동 수집을 지원하지 않습니다")
		return
	}
	if req.StartDate == "" || req.EndDate == "" {
		start, end := util.PreviousMonth(s.now())
		req.StartDate, req.EndDate = start.Format(util.DateLayout), end.Format(util.DateLayout)
	}
	for _, d := range []string{req.StartDate, req.EndDate} {
		if _, err := util.ParseDate(d); err != nil {
			writeError(w, http.StatusBadRequest, "날짜 형식이 올바르지 않습니다 (YYYY-MM-DD)")
			return
		}
	}
	if s.deps.Dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "데이터 수집을 사용할 수 없습니다")
		return
	}

	logger := log.FromContext(r.Context())
	task, err := s.deps.Tasks.Create(company.Name, req.StartDate, req.EndDate)
	if err != nil {
		logger.ErrorContext(r.Context(), "create task failed", log.FieldCompany, company.Name, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	err = s.deps.Dispatcher.Dispatch(r.Context(), queue.JobMessage{
		Kind:      queue.JobCollect,
		TaskID:    task.ID,
		Company:   company.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "dispatch task failed", log.FieldTaskID, task.ID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "작업 등록 실패: "+err.Error())
		return
	}
	logger.InfoContext(r.Context(), "collection task started", log.FieldTaskID, task.ID, log.FieldCompany, company.Name)
	writeJSON(w, http.StatusOK, map[string]string{"task_id": task.ID, "status": "started"})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Tasks.Get(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "작업을 찾을 수 없습니다")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}
