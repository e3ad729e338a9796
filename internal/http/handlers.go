package http

import (
	"bytes"
	"errors"
	"net/http"

	"occupancy/internal/core"
	"occupancy/internal/log"
	"occupancy/internal/services"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady succeeds once at least one location series is loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.reports.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	loc := core.Faculty
	if v := r.URL.Query().Get("location"); v != "" {
		if parsed, err := ParseLocationQuery(r.URL.Query()); err == nil {
			loc = parsed
		}
	}

	data := indexView{
		Locations: locationOptions(loc),
		Location:  loc.String(),
	}
	// A location without data still renders the page; the report partial
	// shows the error in place of the charts.
	if bounds, err := s.reports.Bounds(loc); err != nil {
		data.Error = userMessage(err)
	} else {
		data.Min, data.Max = bounds.Start.String(), bounds.End.String()
	}

	s.render(w, r, http.StatusOK, "index.html", data)
}

// handleReportPartial renders the charts and table for the htmx swap target.
func (s *Server) handleReportPartial(w http.ResponseWriter, r *http.Request) {
	report, err := s.resolveReport(r)
	if err != nil {
		s.logRequestError(r, "Report partial failed", err)
		ErrorResponse(statusFor(err), userMessage(err)).
			TriggerErrorNotification(userMessage(err)).
			Write(w)
		return
	}

	if s.templates == nil {
		InternalServerError("Template tidak tersedia").Write(w)
		return
	}

	view := newReportView(report)
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "report.html", view); err != nil {
		s.structured.LogError(r.Context(), "Report template execution failed", err, log.ComponentTemplate, log.OpRender, nil)
		InternalServerError("Gagal menampilkan laporan").Write(w)
		return
	}

	b := NewHTMXResponse().TriggerReportUpdated(view.Location, view.Start, view.End)
	if view.Empty {
		b.TriggerWarningNotification("Tidak ada deteksi pada rentang tanggal ini")
	}
	b.BodyHTML(buf.String()).Write(w)
}

func (s *Server) handleReportAPI(w http.ResponseWriter, r *http.Request) {
	report, err := s.resolveReport(r)
	if err != nil {
		s.logRequestError(r, "Report request failed", err)
		writeJSON(w, statusFor(err), apiError{Error: userMessage(err), Kind: services.ErrorKind(err)})
		return
	}
	writeJSON(w, http.StatusOK, newReportResponse(report))
}

func (s *Server) handleBoundsAPI(w http.ResponseWriter, r *http.Request) {
	loc, err := ParseLocationQuery(r.URL.Query())
	if err == nil {
		var bounds core.DateRange
		if bounds, err = s.reports.Bounds(loc); err == nil {
			writeJSON(w, http.StatusOK, boundsResponse{Location: loc.String(), Min: bounds.Start.String(), Max: bounds.End.String()})
			return
		}
	}
	s.logRequestError(r, "Bounds request failed", err)
	writeJSON(w, statusFor(err), apiError{Error: userMessage(err), Kind: services.ErrorKind(err)})
}

// resolveReport parses the query, fits the window to the series bounds and
// assembles the report.
func (s *Server) resolveReport(r *http.Request) (core.Report, error) {
	q, err := ParseReportQuery(r.URL.Query())
	if err != nil {
		return core.Report{}, err
	}
	loc, err := core.ParseLocation(q.Location)
	if err != nil {
		return core.Report{}, err
	}
	bounds, err := s.reports.Bounds(loc)
	if err != nil {
		return core.Report{}, err
	}
	loc, rng, err := q.Resolve(bounds)
	if err != nil {
		return core.Report{}, err
	}
	return s.reports.Assemble(r.Context(), loc, rng)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.structured.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithErrorType(log.ErrorTypeInternal))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// logRequestError logs client mistakes at warn and everything else at error.
func (s *Server) logRequestError(r *http.Request, msg string, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	if statusFor(err) < http.StatusInternalServerError {
		logger.WarnContext(ctx, msg, log.FieldError, err, log.FieldErrorType, services.ErrorKind(err))
		return
	}
	logger.ErrorContext(ctx, msg, log.FieldError, err, log.FieldErrorType, services.ErrorKind(err))
}

// statusFor maps report errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownLocation), errors.Is(err, core.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEmptySeries):
		return http.StatusConflict
	case errors.Is(err, core.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown to the user. Load failures are shown
// verbatim so the operator can see which source is broken.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrDataUnavailable):
		return err.Error()
	case errors.Is(err, core.ErrEmptySeries):
		return "Data lokasi ini belum memiliki deteksi"
	case errors.Is(err, core.ErrUnknownLocation), errors.Is(err, core.ErrInvalidRange):
		return err.Error()
	default:
		return "Terjadi kesalahan internal"
	}
}
