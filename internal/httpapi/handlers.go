package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/okunev/bookshelf-bot/internal/catalog"
	"github.com/okunev/bookshelf-bot/internal/events"
	"github.com/okunev/bookshelf-bot/internal/service"
)

const shortDescriptionLimit = 200

type bookResponse struct {
	Token       string            `json:"token"`
	Title       string            `json:"title"`
	Author      string            `json:"author,omitempty"`
	Description string            `json:"description,omitempty"`
	Genres      []string          `json:"genres,omitempty"`
	Year        int               `json:"year,omitempty"`
	Language    string            `json:"language,omitempty"`
	Links       map[string]string `json:"links,omitempty"`
	Formats     []catalog.Format  `json:"formats"`
}

func toBookResponse(book catalog.Book, full bool) bookResponse {
	description := book.ShortDescription(shortDescriptionLimit)
	if full {
		description = book.Description
	}
	return bookResponse{
		Token:       catalog.EncodeTitle(book.Title),
		Title:       book.Title,
		Author:      book.Author,
		Description: description,
		Genres:      book.Genres,
		Year:        book.Year,
		Language:    book.Language,
		Links:       book.Links,
		Formats:     book.Formats(),
	}
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	books, err := s.books.All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ret := make([]bookResponse, 0, len(books))
	for _, book := range books {
		ret = append(ret, toBookResponse(book, false))
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Title < ret[j].Title })
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleBookRoutes(w http.ResponseWriter, r *http.Request) {
	token, action, ok := parseResourceRoute(r.URL.Path, "/api/books/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	title, err := s.books.ResolveToken(token)
	if err != nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}

	switch action {
	case "":
		s.handleBookDetail(w, r, title)
	case "download":
		s.handleBookDownload(w, r, title)
	case "convert":
		s.handleBookConvert(w, r, title)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleBookDetail(w http.ResponseWriter, r *http.Request, title string) {
	switch r.Method {
	case http.MethodGet:
		book, err := s.books.Get(title)
		if err != nil {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeJSON(w, http.StatusOK, toBookResponse(book, true))
	case http.MethodDelete:
		if err := s.books.Delete(title); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": title})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBookDownload(w http.ResponseWriter, r *http.Request, title string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	format := catalog.FormatFB2
	if raw := r.URL.Query().Get("format"); raw != "" {
		parsed, ok := catalog.ParseFormat(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unsupported format")
			return
		}
		format = parsed
	}

	book, err := s.books.Get(title)
	if err != nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	path := book.Files[format]
	if path == "" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("book has no %s file", format))
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

type convertRequest struct {
	Format string `json:"format"`
}

func (s *Server) handleBookConvert(w http.ResponseWriter, r *http.Request, title string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	format, ok := catalog.ParseFormat(req.Format)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported format")
		return
	}

	job, created, err := s.svc.RequestConversion(title, format)
	if err != nil {
		switch {
		case service.IsErrorType(err, service.ErrFileNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case service.IsErrorType(err, service.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"created": created,
		"job":     job,
	})
}

type eventResponse struct {
	ID string `json:"id"`
	events.Event
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids, err := s.events.Upcoming(time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		ret := make([]eventResponse, 0, len(ids))
		for _, id := range ids {
			event, err := s.events.Get(id)
			if err != nil {
				continue
			}
			ret = append(ret, eventResponse{ID: id, Event: event})
		}
		writeJSON(w, http.StatusOK, ret)
	case http.MethodPost:
		var event events.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		id, err := s.events.Create(event)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, eventResponse{ID: id, Event: event})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type participantRequest struct {
	Participant string `json:"participant"`
}

func (s *Server) handleEventRoutes(w http.ResponseWriter, r *http.Request) {
	id, action, ok := parseResourceRoute(r.URL.Path, "/api/events/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch action {
	case "":
		s.handleEventDetail(w, r, id)
	case "join", "leave":
		s.handleEventMembership(w, r, id, action)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		event, err := s.events.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeJSON(w, http.StatusOK, eventResponse{ID: id, Event: event})
	case http.MethodPut:
		var event events.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := s.events.Update(id, event); err != nil {
			if errors.Is(err, events.ErrNotFound) {
				writeError(w, http.StatusNotFound, "event not found")
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, eventResponse{ID: id, Event: event})
	case http.MethodDelete:
		if err := s.events.Delete(id); err != nil {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleEventMembership(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Participant) == "" {
		writeError(w, http.StatusBadRequest, "participant is required")
		return
	}

	var err error
	if action == "join" {
		err = s.events.Join(id, req.Participant)
	} else {
		err = s.events.Leave(id, req.Participant)
	}
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	event, err := s.events.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{ID: id, Event: event})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, action, ok := parseResourceRoute(r.URL.Path, "/api/jobs/")
	if !ok || action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	job, ok := s.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	report, err := s.svc.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.svc.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseResourceRoute splits "/api/<kind>/{id}" or "/api/<kind>/{id}/{action}"
// into its id and action parts.
func parseResourceRoute(path, prefix string) (id string, action string, ok bool) {
	trimmed := strings.TrimPrefix(path, prefix)
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 2 {
		return "", "", false
	}
	rawID, err := url.PathUnescape(parts[0])
	if err != nil || strings.TrimSpace(rawID) == "" {
		return "", "", false
	}
	if len(parts) == 1 {
		return rawID, "", true
	}
	return rawID, parts[1], true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
