package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/zombor/invoice-extractor/internal/invoice"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON encodes body with the given status
func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("Error encoding response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, invoice.Failure{Error: message})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcess accepts one uploaded document and returns the extracted invoice
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.log.Warn().Err(err).Msg("Error parsing multipart form")
		s.writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		// A file part with an empty filename is parsed as a plain value
		if _, ok := r.MultipartForm.Value["file"]; ok {
			s.writeError(w, http.StatusBadRequest, "No file selected")
			return
		}
		s.writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer f.Close()

	name := scanning.SanitizeFilename(header.Filename)
	doc := scanning.NewDocument(name, nil)
	if !scanning.IsSupported(doc.Ext) {
		s.writeError(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		s.log.Error().Err(err).Str("filename", name).Msg("Error reading file data")
		s.writeError(w, http.StatusBadRequest, "Error reading file")
		return
	}
	doc.Data = data

	log := s.log.With().Str("filename", name).Int("size", len(data)).Logger()
	log.Info().Msg("Processing upload")

	result, err := s.processor.Process(r.Context(), doc)
	if err != nil {
		log.Error().Err(err).Msg("Error processing invoice")
		s.writeJSON(w, http.StatusInternalServerError, invoice.NewFailure(err))
		return
	}

	log.Info().
		Float64("processing_time", result.ProcessingTime).
		Int("characters", result.CharacterCount).
		Msg("Invoice processed")
	s.writeJSON(w, http.StatusOK, result)
}
