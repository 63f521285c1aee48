package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvmerge/internal/core"
)

// errRateLimited maps to RATE001 through the pattern table.
var errRateLimited = errors.New("rate limit exceeded")

// workspace resolves the {sessionID} route parameter.
func (s *Server) workspace(r *http.Request) (*core.Workspace, error) {
	return s.sessions.Get(chiParam(r, "sessionID"))
}

// chiParam returns a route parameter.
func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// fileIndex parses the {index} route parameter.
func fileIndex(r *http.Request) (int, error) {
	raw := chiParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid file index %q", raw)
	}
	return i, nil
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// resolveInput maps a client-supplied path onto the ingest root. With no
// root configured the path is used as given.
func (s *Server) resolveInput(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", fs.ErrNotExist)
	}
	root := s.cfg.Ingest.RootDir
	if root == "" {
		return path, nil
	}
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("%w: %s is outside the ingest root", fs.ErrPermission, path)
	}
	return filepath.Join(root, path), nil
}

// splitHost strips the port from a RemoteAddr value when present.
func splitHost(addr string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, err
	}
	return host, nil
}
