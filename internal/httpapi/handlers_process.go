package httpapi

import (
	"errors"
	"io"
	"net/http"

	"billops/internal/bills"
	"billops/internal/log"
	"billops/internal/pipeline"
	"billops/internal/util"
)

type processRequest struct {
	CompanyName    string `json:"company_name"`
	CollectionDate string `json:"collection_date"`
	LicenseCount   int    `json:"license_count"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(r, &req); err != nil || req.CompanyName == "" || req.CollectionDate == "" {
		writeError(w, http.StatusBadRequest, errMissingParams)
		return
	}
	date, err := util.ParseDate(req.CollectionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "날짜 형식이 올바르지 않습니다 (YYYY-MM-DD)")
		return
	}

	res, err := s.deps.Processor.Process(r.Context(), pipeline.Request{
		Company:        req.CompanyName,
		CollectionDate: date,
		LicenseCount:   req.LicenseCount,
	})
	if errors.Is(err, pipeline.ErrUnsupportedCompany) {
		writeError(w, http.StatusBadRequest, req.CompanyName+"은 전처리를 지원하지 않습니다")
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "preprocess failed", log.FieldCompany, req.CompanyName, log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "전처리 실패", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "전처리 완료",
		"company":         res.Company,
		"processed_files": nonNil(res.Files),
	})
}

func (s *Server) handleUploadBills(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "파일이 너무 큽니다")
			return
		}
		writeError(w, http.StatusBadRequest, "파일이 없습니다")
		return
	}
	headers := r.MultipartForm.File["files"]
	headers = append(headers, r.MultipartForm.File["files[]"]...)
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "파일이 없습니다")
		return
	}

	var uploads []bills.Upload
	for _, h := range headers {
		if !bills.Accepted(h.Filename) {
			continue
		}
		f, err := h.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		uploads = append(uploads, bills.Upload{Name: h.Filename, Data: data})
	}
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "HTML 또는 PDF 파일이 없습니다")
		return
	}

	amounts, err := s.deps.Bills.Ingest(r.Context(), uploads)
	if err != nil {
		logger := log.FromContext(r.Context())
		if errors.Is(err, bills.ErrNoBills) {
			logger.WarnContext(r.Context(), "no bill recognised in upload", "files", len(uploads))
		} else {
			logger.ErrorContext(r.Context(), "bill ingest failed", log.FieldError, err)
		}
		writeError(w, http.StatusInternalServerError, "고지서 처리 실패")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "고지서 처리 완료", "bill_amounts": amounts})
}

func (s *Server) handleBillAmounts(w http.ResponseWriter, r *http.Request) {
	amounts, err := s.deps.DB.BillAmounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, amounts)
}
