package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"k8s.io/utils/clock"

	"github.com/stretchcloud/kubetop/pkg/usage"
)

// Handler serves static assets and JSON usage data.
type Handler struct {
	mu     sync.RWMutex
	source *usage.Source
	clock  clock.PassiveClock

	static http.Handler
}

// NewHandler constructs an empty dashboard handler. Call Attach to provide the
// usage source.
func NewHandler() (*Handler, error) {
	fs, err := staticFS()
	if err != nil {
		return nil, err
	}

	return &Handler{
		clock:  clock.RealClock{},
		static: http.FileServer(http.FS(fs)),
	}, nil
}

// Attach provides the usage source once it is available.
func (h *Handler) Attach(source *usage.Source) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.source = source
}

// Static serves the UI. If the source is missing it still serves HTML.
func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/dashboard", "/dashboard/":
		content, err := static.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, "dashboard index missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(content)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/dashboard/") {
		cloned := r.Clone(r.Context())
		cloned.URL.Path = strings.TrimPrefix(r.URL.Path, "/dashboard")
		if cloned.URL.Path == "" || cloned.URL.Path == "/" {
			cloned.URL.Path = "/index.html"
		}
		h.static.ServeHTTP(w, cloned)
		return
	}
	h.static.ServeHTTP(w, r)
}

// Pods returns the merged pod usage result as JSON. When the source isn't
// ready yet it returns 503.
func (h *Handler) Pods(w http.ResponseWriter, r *http.Request) {
	source, ok := h.attachedSource()
	if !ok {
		http.Error(w, "dashboard not initialised", http.StatusServiceUnavailable)
		return
	}

	result, err := source.Pods(r.Context())
	if err != nil {
		writeDashboardError(w, "fetch pod usage", err)
		return
	}
	h.writeJSON(w, PodsResponse{
		GeneratedAt: h.clock.Now().UTC(),
		Usage:       result.Usage,
		Info:        result.Info,
	})
}

// Nodes returns the merged node usage result as JSON.
func (h *Handler) Nodes(w http.ResponseWriter, r *http.Request) {
	source, ok := h.attachedSource()
	if !ok {
		http.Error(w, "dashboard not initialised", http.StatusServiceUnavailable)
		return
	}

	result, err := source.Nodes(r.Context())
	if err != nil {
		writeDashboardError(w, "fetch node usage", err)
		return
	}
	h.writeJSON(w, NodesResponse{
		GeneratedAt: h.clock.Now().UTC(),
		Usage:       result.Usage,
		Info:        result.Info,
	})
}

func (h *Handler) attachedSource() (*usage.Source, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.source, h.source != nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		writeDashboardError(w, "encode response", err)
	}
}

func writeDashboardError(w http.ResponseWriter, context string, err error) {
	http.Error(w, fmt.Sprintf("%s: %v", context, err), http.StatusInternalServerError)
}

// Ready reports whether the handler has its usage source.
func (h *Handler) Ready() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.source == nil {
		return errors.New("dashboard handler not initialised")
	}
	return nil
}
