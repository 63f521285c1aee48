package web

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/JonMunkholm/csvmerge/internal/web/templates"
)

type pathRequest struct {
	Path string `json:"path"`
}

type admitRequest struct {
	Path      string `json:"path"`
	HasHeader bool   `json:"has_header"`
	Force     bool   `json:"force"`
}

type headerRequest struct {
	HasHeader *bool `json:"has_header"`
}

// FileSummary describes one admitted file.
type FileSummary struct {
	Index      int      `json:"index"`
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	FieldCount int      `json:"field_count"`
	TotalLines int      `json:"total_lines"`
	Rows       int      `json:"rows"`
	DataRows   int      `json:"data_rows"`
	HasHeader  bool     `json:"has_header"`
	Header     []string `json:"header,omitempty"`
}

func summarize(index int, sf *core.SourceFile) FileSummary {
	return FileSummary{
		Index:      index,
		Name:       sf.Name,
		Path:       sf.Path,
		FieldCount: sf.FieldCount,
		TotalLines: sf.TotalLineCount,
		Rows:       sf.RowCount(),
		DataRows:   sf.DataRowCount(),
		HasHeader:  sf.HasHeader(),
		Header:     sf.HeaderFields(),
	}
}

// handleValidate runs the ingestion checks on a path without admitting it.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req pathRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	path, err := s.resolveInput(req.Path)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := ws.ValidateFile(path); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// handleCheck reports whether a file's width matches the admitted files.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req pathRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	path, err := s.resolveInput(req.Path)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	compatible, err := ws.CheckFieldCountCompatible(path)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"compatible": compatible})
}

// handleAdmit validates and admits a file. An incompatible width returns
// 409 with code FILE007 unless the request sets force.
func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req admitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	path, err := s.resolveInput(req.Path)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sf, err := ws.Admit(r.Context(), path, req.HasHeader, req.Force)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	index := 0
	for i, f := range ws.Files() {
		if f == sf {
			index = i
			break
		}
	}
	writeJSON(w, http.StatusCreated, summarize(index, sf))
}

// handleListFiles lists admitted files in registry order.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	files := ws.Files()
	out := make([]FileSummary, len(files))
	for i, sf := range files {
		out[i] = summarize(i, sf)
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

// handleRemoveFile drops the file at {index}.
func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	index, err := fileIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := ws.Remove(index); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetHeader toggles the header flag of the file at {index}.
func (s *Server) handleSetHeader(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	index, err := fileIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req headerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.HasHeader == nil {
		writeError(w, http.StatusBadRequest, "has_header is required")
		return
	}

	sf, err := ws.SetHasHeader(index, *req.HasHeader)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(index, sf))
}

// handleFileTable returns one file's current table.
func (s *Server) handleFileTable(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	index, err := fileIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sf, err := ws.File(index)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	table := sf.Table()

	if isHTMX(r) {
		renderHTML(w, r, templates.TablePreview(templates.TableView{
			Title:  sf.Name,
			Schema: sf.Schema(),
			Rows:   table.Rows,
			Total:  len(table.Rows),
		}))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":          sf.Name,
		"has_header":    table.HasHeader,
		"header_fields": table.HeaderFields,
		"rows":          table.Rows,
	})
}

// handleFileText downloads one file's current table in serialized form.
func (s *Server) handleFileText(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	index, err := fileIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sf, err := ws.File(index)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	name := strings.TrimSuffix(sf.Name, filepath.Ext(sf.Name)) + ".txt"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write([]byte(core.SerializeSource(sf)))
}

// handleHeadersConsistent reports whether header-bearing files agree.
func (s *Server) handleHeadersConsistent(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"consistent": ws.HeadersConsistent()})
}
