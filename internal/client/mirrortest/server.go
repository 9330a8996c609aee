// Package mirrortest provides an in-memory mirror speaking the contents API
// consumed by client.MirrorClient.
package mirrortest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

type file struct {
	content []byte
	sha     string
}

// Server is a fake mirror. Files live under /contents/<path>; raw downloads
// under /raw/<path>.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string]file
	commits  int
	puts     int
	failures []int
	token    string
}

// NewServer starts a fake mirror. Close it when done.
func NewServer() *Server {
	s := &Server{files: make(map[string]file)}

	r := chi.NewRouter()
	r.Use(s.authorize, s.inject)
	r.Get("/contents", s.get)
	r.Get("/contents/*", s.get)
	r.Put("/contents/*", s.put)
	r.Get("/raw/*", s.raw)

	s.Server = httptest.NewServer(r)
	return s
}

// ContentsURL is the base URL to configure a MirrorClient with.
func (s *Server) ContentsURL() string {
	return s.URL + "/contents"
}

// RequireToken makes every request without "Bearer <token>" fail with 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailNext makes the next len(statuses) requests fail with the given statuses.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Put stores content at path directly, bypassing the API.
func (s *Server) Put(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(path, content)
}

// File returns the content stored at path.
func (s *Server) File(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[path]
	return f.content, ok
}

// Paths lists every stored path in order.
func (s *Server) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// PutCount returns how many PUT requests succeeded.
func (s *Server) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *Server) store(path string, content []byte) string {
	sum := sha1.Sum(fmt.Appendf(nil, "blob %d\x00%s", len(content), content))
	sha := hex.EncodeToString(sum[:])
	s.files[path] = file{content: content, sha: sha}
	return sha
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var status int
		if len(s.failures) > 0 {
			status = s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type entry struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
	Content     string `json:"content,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(chi.URLParam(r, "*"), "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.files[path]; ok {
		e := s.entry(path, f)
		e.Content = base64.StdEncoding.EncodeToString(f.content)
		e.Encoding = "base64"
		writeJSON(w, http.StatusOK, e)
		return
	}

	prefix := path + "/"
	if path == "" {
		prefix = ""
	}
	var listing []entry
	for p, f := range s.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		listing = append(listing, s.entry(p, f))
	}
	if len(listing) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	sort.Slice(listing, func(i, j int) bool { return listing[i].Name < listing[j].Name })
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) entry(path string, f file) entry {
	name := path[strings.LastIndex(path, "/")+1:]
	return entry{
		Type:        "file",
		Name:        name,
		Path:        path,
		SHA:         f.sha,
		DownloadURL: s.URL + "/raw/" + path,
	}
}

type putBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(chi.URLParam(r, "*"), "/")

	var body putBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}
	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil || body.Message == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.files[path]
	switch {
	case exists && body.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `"sha" wasn't supplied.`})
		return
	case exists && body.SHA != existing.sha:
		writeJSON(w, http.StatusConflict, map[string]string{"message": fmt.Sprintf("%s does not match %s", path, body.SHA)})
		return
	case !exists && body.SHA != "":
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	s.store(path, content)
	s.commits++
	s.puts++
	status := http.StatusCreated
	if exists {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"content": s.entry(path, s.files[path]),
		"commit":  map[string]string{"sha": fmt.Sprintf("commit-%d", s.commits)},
	})
}

func (s *Server) raw(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(chi.URLParam(r, "*"), "/")
	s.mu.Lock()
	f, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(f.content)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
