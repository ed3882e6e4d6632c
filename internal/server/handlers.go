package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/dispatch"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

const (
	ArchiveLocationHeader = "X-Archive-Location"
	EntriesHeader         = "X-Decompiled-Entries"
)

type modesResponse struct {
	Modes map[engine.ID]bool `json:"modes"`
	Java  bool               `json:"java"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ts":     s.now().UnixMilli(),
	})
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	detector := s.svc.Detector()
	writeJSON(w, http.StatusOK, modesResponse{
		Modes: detector.DetectAvailability(r.Context()),
		Java:  detector.RuntimeAvailable(r.Context()),
	})
}

// uploadedFile parses the multipart body and returns the "file" part.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	if r.ContentLength > s.opts.MaxUploadBytes {
		return nil, "", &http.MaxBytesError{Limit: s.opts.MaxUploadBytes}
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: invalid form: %v", engine.ErrInvalidInput, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: file field is required", engine.ErrInvalidInput)
	}
	return file, header.Filename, nil
}

func (s *Server) handleDecompileClass(w http.ResponseWriter, r *http.Request) {
	file, _, err := s.uploadedFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: failed to read upload: %v", engine.ErrInvalidInput, err))
		return
	}

	res, err := s.svc.DecompileUnit(r.Context(), dispatch.UnitRequest{
		RequestID: RequestIDFrom(r.Context()),
		Data:      data,
		Mode:      r.FormValue("mode"),
		ClassName: r.FormValue("className"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDecompileJar(w http.ResponseWriter, r *http.Request) {
	file, filename, err := s.uploadedFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	res, err := s.svc.DecompileArchive(r.Context(), dispatch.ArchiveRequest{
		RequestID:    RequestIDFrom(r.Context()),
		Source:       file,
		OriginalName: filename,
		Mode:         r.FormValue("mode"),
		Target:       r.FormValue("className"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer res.Close()

	out, err := os.Open(res.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer out.Close()

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", contentDisposition(res.Name))
	h.Set(EntriesHeader, strconv.Itoa(res.Entries))
	if res.Location != "" {
		h.Set(ArchiveLocationHeader, res.Location)
	}
	if info, err := out.Stat(); err == nil {
		h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, out); err != nil {
		s.logger.WithFields(logger.Fields{"request_id": RequestIDFrom(r.Context())}).WithError(err).Warn("Failed to stream archive")
	}
}

// contentDisposition formats an attachment header; non-ASCII names are
// carried as RFC 2231 filename* parameters.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

type archivesResponse struct {
	RequestID string                      `json:"requestId"`
	Archives  []dispatch.PublishedArchive `json:"archives"`
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	list, err := s.svc.PublishedArchives(r.Context(), requestID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, archivesResponse{RequestID: requestID, Archives: list})
}

func (s *Server) handleFetchArchive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := s.svc.FetchPublished(r.Context(), chi.URLParam(r, "requestID"), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", contentDisposition(name))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.WithFields(logger.Fields{"request_id": RequestIDFrom(r.Context())}).WithError(err).Warn("Failed to write archive")
	}
}
