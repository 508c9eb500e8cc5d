package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"billops/internal"
	"billops/internal/files"
	"billops/internal/log"
)

const multipartMemory = 32 << 20

type uploadResponse struct {
	Filename  string `json:"filename"`
	FileIndex int    `json:"file_index"`
	FileLabel string `json:"file_label"`
	Message   string `json:"message"`
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "파일이 너무 큽니다")
			return
		}
		writeError(w, http.StatusBadRequest, "파일이 없습니다")
		return
	}
	company := r.FormValue("company_name")
	if strings.TrimSpace(company) == "" {
		writeError(w, http.StatusBadRequest, errMissingParams)
		return
	}
	index, _ := strconv.Atoi(r.FormValue("file_index"))
	label := r.FormValue("file_label")
	resp := uploadResponse{FileIndex: index, FileLabel: label}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		if header.Filename == "" {
			writeError(w, http.StatusBadRequest, "파일명이 없습니다")
			return
		}
		resp.Filename, err = s.deps.Workspace.SaveUpload(company, label, header.Filename, file)
		resp.Message = "업로드 완료"

	case errors.Is(err, http.ErrMissingFile):
		collected := r.FormValue("collected_filename")
		if collected == "" {
			writeError(w, http.StatusBadRequest, "파일이 없습니다")
			return
		}
		resp.Filename, err = s.deps.Workspace.CopyCollected(company, label, collected)
		resp.Message = "자동 업로드 완료"

	default:
		writeError(w, http.StatusBadRequest, "파일이 없습니다")
		return
	}

	if errors.Is(err, files.ErrAlreadyUploaded) {
		resp.Message = "이미 업로드된 파일입니다"
		err = nil
	}
	if err != nil {
		s.writeFileError(w, r, err, r.FormValue("collected_filename"))
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "file uploaded", log.FieldCompany, company, log.FieldFile, resp.Filename)
	writeJSON(w, http.StatusOK, resp)
}

type autoUploadRequest struct {
	CompanyName       string `json:"company_name"`
	CollectedFilename string `json:"collected_filename"`
	FileIndex         int    `json:"file_index"`
	FileLabel         string `json:"file_label"`
}

func (s *Server) handleAutoUpload(w http.ResponseWriter, r *http.Request) {
	var req autoUploadRequest
	if err := decodeJSON(r, &req); err != nil || req.CompanyName == "" || req.CollectedFilename == "" || req.FileLabel == "" {
		writeError(w, http.StatusBadRequest, errMissingParams)
		return
	}
	if _, err := s.deps.Workspace.CheckCollected(req.CollectedFilename); err != nil {
		s.writeFileError(w, r, err, req.CollectedFilename)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Filename:  req.CollectedFilename,
		FileIndex: req.FileIndex,
		FileLabel: req.FileLabel,
		Message:   "파일 확인 완료",
	})
}

// writeFileError maps workspace errors onto the statuses the UI expects.
func (s *Server) writeFileError(w http.ResponseWriter, r *http.Request, err error, name string) {
	switch {
	case errors.Is(err, files.ErrNotFound):
		writeError(w, http.StatusNotFound, "파일을 찾을 수 없습니다: "+name)
	case errors.Is(err, files.ErrNotRegular):
		writeError(w, http.StatusBadRequest, "유효하지 않은 파일입니다: "+name)
	case errors.Is(err, files.ErrUnreadable):
		writeError(w, http.StatusForbidden, "파일 읽기 권한이 없습니다: "+name)
	case errors.Is(err, files.ErrBadName):
		writeError(w, http.StatusBadRequest, "잘못된 파일명입니다: "+name)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "file operation failed", log.FieldFile, name, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	path, err := s.deps.Workspace.Resolve(name)
	if err != nil {
		s.writeFileError(w, r, err, name)
		return
	}
	serveFile(w, r, path, "attachment", "")
}

func (s *Server) handleBillImage(w http.ResponseWriter, r *http.Request) {
	s.serveInline(w, r, s.deps.Workspace.BillImages, "")
}

func (s *Server) handleBillPDF(w http.ResponseWriter, r *http.Request) {
	s.serveInline(w, r, s.deps.Workspace.BillPDFs, "application/pdf")
}

func (s *Server) serveInline(w http.ResponseWriter, r *http.Request, dir, contentType string) {
	name := r.PathValue("filename")
	path, err := files.ServeFrom(dir, name)
	if err != nil {
		s.writeFileError(w, r, err, name)
		return
	}
	serveFile(w, r, path, "inline", contentType)
}

func serveFile(w http.ResponseWriter, r *http.Request, path, disposition, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "파일을 찾을 수 없습니다: "+filepath.Base(path))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filepath.Base(path)}))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

func (s *Server) handleFileLists(w http.ResponseWriter, r *http.Request) {
	processed, err := s.deps.DB.FileLists(internal.FilesProcessed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	uploaded, err := s.deps.DB.FileLists(internal.FilesUploaded)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	collected, err := s.deps.DB.FileLists(internal.FilesCollected)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type processedEntry struct {
		ProcessedFiles []string `json:"processed_files"`
		Timestamp      string   `json:"timestamp"`
	}
	outProcessed := make(map[string]processedEntry, len(processed))
	for company, fl := range processed {
		outProcessed[company] = processedEntry{ProcessedFiles: nonNil(fl.Files), Timestamp: fl.Timestamp}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"processed_files": outProcessed,
		"uploaded_files":  flatten(uploaded),
		"collected_files": flatten(collected),
	})
}

func flatten(lists map[string]internal.FileList) map[string][]string {
	out := make(map[string][]string, len(lists))
	for company, fl := range lists {
		out[company] = nonNil(fl.Files)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type fileListRequest struct {
	CompanyName string   `json:"company_name"`
	Uploaded    []string `json:"uploaded_files"`
	Collected   []string `json:"collected_files"`
}

func (s *Server) handleSaveFileList(kind internal.FileListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fileListRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, errMissingParams)
			return
		}
		if req.CompanyName == "" {
			writeError(w, http.StatusBadRequest, "회사명이 필요합니다")
			return
		}
		names := req.Uploaded
		if kind == internal.FilesCollected {
			names = req.Collected
		}
		if err := s.deps.DB.SetFileList(kind, req.CompanyName, names); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (s *Server) handleClearProcessed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyName string `json:"company_name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.CompanyName == "" {
		writeError(w, http.StatusBadRequest, "회사명이 필요합니다")
		return
	}
	if err := s.deps.DB.ClearFileList(internal.FilesProcessed, req.CompanyName); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": req.CompanyName + " 청구서 결과 초기화 완료"})
}
