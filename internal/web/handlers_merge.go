package web

import (
	"net/http"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/JonMunkholm/csvmerge/internal/logging"
	"github.com/JonMunkholm/csvmerge/internal/sink"
	"github.com/JonMunkholm/csvmerge/internal/web/templates"
)

type exportRequest struct {
	Format      string `json:"format"`
	Destination string `json:"destination"`
	Reconcile   bool   `json:"reconcile"`
}

// mergeOptions reads ?reconcile=true.
func mergeOptions(r *http.Request) core.MergeOptions {
	reconcile, _ := strconv.ParseBool(r.URL.Query().Get("reconcile"))
	return core.MergeOptions{ReconcileToSchema: reconcile}
}

// handleMerge returns the merged table as JSON, or an HTML preview for HTMX.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	table, err := ws.Merge(mergeOptions(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderHTML(w, r, templates.TablePreview(templates.TableView{
			Title:   "Merged",
			Schema:  table.Schema,
			Rows:    table.Rows,
			Total:   len(table.Rows),
			Partial: table.Partial,
		}))
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// handleMergeText streams the serialized merged table as a download.
func (s *Server) handleMergeText(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	table, err := ws.Merge(mergeOptions(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="merged.txt"`)
	if table.Partial {
		w.Header().Set("X-Merge-Partial", "true")
	}
	if err := core.WriteTable(w, table.Schema, table.Rows); err != nil {
		logging.FromContext(r.Context()).Error("merge download interrupted", "error", err)
	}
}

// handleStartExport merges and hands the table to a sink in the background.
func (s *Server) handleStartExport(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dest, err := sink.New(req.Format, req.Destination, s.sinkOpts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	id, err := ws.StartExport(r.Context(), dest, core.MergeOptions{ReconcileToSchema: req.Reconcile})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "session_id", ws.ID, "export_id", id).
		Info("export queued", "sink", dest.Name())
	writeJSON(w, http.StatusAccepted, map[string]string{"export_id": id})
}

// handleExportStatus returns one export job.
func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	job, err := ws.Export(chiParam(r, "exportID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleListExports returns every export job of the session.
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": ws.Exports()})
}

// renderHTML writes an HTML fragment.
func renderHTML(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "error", err)
	}
}
