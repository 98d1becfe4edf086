package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/albertcande/docx-anonymizer/internal/batch"
	"github.com/albertcande/docx-anonymizer/internal/dictionary"
	"github.com/albertcande/docx-anonymizer/internal/docx"
	"github.com/albertcande/docx-anonymizer/internal/events"
	"github.com/albertcande/docx-anonymizer/internal/logger"
	"github.com/albertcande/docx-anonymizer/internal/redact"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// handleAnonymize processes one or more uploaded documents. A single
// file streams back as a document; multiple files come back zipped.
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	maxFileBytes := int64(s.config.Limits.MaxFileSizeMB) << 20
	maxBody := maxFileBytes*int64(s.config.Limits.MaxFilesPerBatch) + (10 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files uploaded (field name: files)")
		return
	}
	if len(files) > s.config.Limits.MaxFilesPerBatch {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("too many files: %d (max %d)", len(files), s.config.Limits.MaxFilesPerBatch))
		return
	}

	opts := s.optionsFromForm(r)

	var (
		outputs   []batch.File
		aggregate = redact.ProcessingStats{PIIReplaced: make(map[string]int)}
		saveErr   error
	)

	for _, fh := range files {
		if fh.Size > maxFileBytes {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("%s exceeds the %dMB limit", fh.Filename, s.config.Limits.MaxFileSizeMB))
			return
		}

		data, err := readUpload(fh)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("could not read %s: %v", fh.Filename, err))
			return
		}

		start := time.Now()
		s.hub.BroadcastEvent(events.Event{
			Type:      events.EventTypeProcessing,
			Timestamp: start,
			RequestID: requestID,
			Data:      events.ProcessingEvent{FileName: fh.Filename, SizeBytes: fh.Size, Status: "started"},
		})

		out, result, err := s.session.ProcessBytes(data, opts)
		if err != nil {
			s.hub.BroadcastEvent(events.Event{
				Type:      events.EventTypeProcessing,
				Timestamp: time.Now(),
				RequestID: requestID,
				Data:      events.ProcessingEvent{FileName: fh.Filename, SizeBytes: fh.Size, Status: "failed"},
			})
			s.respondProcessError(w, log, fh.Filename, err)
			return
		}

		if result.DictionarySaveErr != nil {
			saveErr = result.DictionarySaveErr
		}

		aggregate.KeywordsReplaced += result.Stats.KeywordsReplaced
		aggregate.FinancialReplaced += result.Stats.FinancialReplaced
		for category, count := range result.Stats.PIIReplaced {
			aggregate.PIIReplaced[category] += count
		}

		outputs = append(outputs, batch.File{
			Name: "anonymized_" + filepath.Base(fh.Filename),
			Data: out,
		})

		s.hub.BroadcastEvent(events.Event{
			Type:      events.EventTypeProcessing,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data: events.ProcessingEvent{
				FileName:   fh.Filename,
				SizeBytes:  fh.Size,
				Status:     "completed",
				DurationMS: time.Since(start).Milliseconds(),
			},
		})
		s.hub.BroadcastEvent(events.Event{
			Type:      events.EventTypeDetection,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data: events.DetectionEvent{
				FileName:          fh.Filename,
				KeywordsReplaced:  result.Stats.KeywordsReplaced,
				FinancialReplaced: result.Stats.FinancialReplaced,
				PIIReplaced:       result.Stats.PIIReplaced,
				TotalReplacements: result.Stats.TotalReplacements(),
			},
		})
	}

	statsJSON, err := json.Marshal(&aggregate)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to encode stats")
		return
	}
	w.Header().Set("X-Anonymizer-Stats", string(statsJSON))
	if saveErr != nil {
		// The documents are fully processed; only persistence failed.
		w.Header().Set("X-Anonymizer-Warning", "keyword dictionary save failed: "+saveErr.Error())
	}

	if len(outputs) == 1 {
		w.Header().Set("Content-Type", docxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputs[0].Name))
		w.WriteHeader(http.StatusOK)
		w.Write(outputs[0].Data)
		return
	}

	archive, err := batch.BuildArchive(outputs)
	if err != nil {
		log.Error("Failed to build batch archive", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="anonymized_documents.zip"`)
	w.WriteHeader(http.StatusOK)
	w.Write(archive)
}

// handleDictionaryList returns the persisted keyword mapping
func (s *Server) handleDictionaryList(w http.ResponseWriter, r *http.Request) {
	mapping := s.store.Load()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"keywords": mapping,
		"count":    len(mapping),
	})
}

// handleDictionaryAdd appends keywords to the persisted dictionary
func (s *Server) handleDictionaryAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Keywords) == 0 {
		s.respondError(w, http.StatusBadRequest, "no keywords provided")
		return
	}
	if len(req.Keywords) > s.config.Limits.MaxKeywords {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("too many keywords: %d (max %d)", len(req.Keywords), s.config.Limits.MaxKeywords))
		return
	}
	for i, kw := range req.Keywords {
		if _, err := dictionary.ValidateKeyword(kw, s.config.Limits.MaxKeywordLength); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("keyword %d: %v", i+1, err))
			return
		}
	}

	if err := s.store.Append(req.Keywords); err != nil {
		s.respondStoreError(w, err)
		return
	}

	mapping := s.store.Load()
	s.respondJSON(w, http.StatusOK, map[string]any{"count": len(mapping)})
}

// handleDictionaryClear removes every persisted keyword
func (s *Server) handleDictionaryClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(); err != nil {
		s.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// optionsFromForm builds session options from form fields, falling
// back to the configured defaults.
func (s *Server) optionsFromForm(r *http.Request) redact.Options {
	defaults := s.config.Anonymizer

	opts := redact.Options{
		Keywords:            splitKeywords(r.FormValue("keywords")),
		IncludeDictionary:   formBool(r, "include_dictionary", defaults.IncludeDictionary),
		AnonymizeFinancial:  formBool(r, "anonymize_financial", defaults.AnonymizeFinancial),
		AnonymizePII:        formBool(r, "anonymize_pii", defaults.AnonymizePII),
		PlaceholderTemplate: r.FormValue("placeholder_template"),
	}
	if opts.PlaceholderTemplate == "" {
		opts.PlaceholderTemplate = defaults.PlaceholderTemplate
	}
	if categories := r.FormValue("pii_categories"); categories != "" {
		for _, c := range strings.Split(categories, ",") {
			if c = strings.TrimSpace(c); c != "" {
				opts.PIICategories = append(opts.PIICategories, c)
			}
		}
	}
	return opts
}

func (s *Server) respondProcessError(w http.ResponseWriter, log *logger.Logger, filename string, err error) {
	var validationErr *redact.ValidationError
	var formatErr *docx.FormatError
	switch {
	case errors.As(err, &validationErr):
		s.respondError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &formatErr):
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s is not a valid document: %v", filename, formatErr.Err))
	default:
		log.Error("Processing failed", zap.String("file", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "processing failed")
	}
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, dictionary.ErrLockTimeout) {
		s.respondError(w, http.StatusServiceUnavailable, "dictionary is busy, try again")
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// splitKeywords accepts newline- or comma-separated keyword lists
func splitKeywords(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == '\n' || r == ','
	})
	var keywords []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			keywords = append(keywords, f)
		}
	}
	return keywords
}

func formBool(r *http.Request, name string, fallback bool) bool {
	value := r.FormValue(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
