package static

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

// LandingPage is where unknown or unsafe paths are sent.
const LandingPage = "/atendimento.html"

const (
	apiPrefix    = "/api/"
	publicPrefix = "/public/"
	pagesPrefix  = "/pages/"
	publicDir    = "public"
	pagesDir     = "pages"
	landingFile  = "atendimento.html"
	paymentFile  = "payments.html"
	immutable    = "public, max-age=31536000, immutable"
	noCache      = "no-cache"
	defaultMIME  = "application/octet-stream"
)

var mimeTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// Notifier is told about every HTML page served.
type Notifier interface {
	Notify(ctx context.Context)
}

type kind int

const (
	kindAsset kind = iota
	kindPaymentPage
	kindPage
)

type action int

const (
	actionServe action = iota
	actionRedirect
	actionNoContent
	actionAPINotFound
)

type route struct {
	action action
	kind   kind
	dir    string
	file   string
}

// Router serves the storefront files from a fixed allow-list under root.
type Router struct {
	root     string
	notifier Notifier
	logger   *slog.Logger
}

func NewRouter(root string, notifier Notifier, logger *slog.Logger) (*Router, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving static root %q", root)
	}
	return &Router{
		root:     filepath.Clean(abs),
		notifier: notifier,
		logger:   logger,
	}, nil
}

func classify(urlPath string) route {
	if strings.Contains(urlPath, "../") || strings.Contains(urlPath, `..\`) {
		return route{action: actionRedirect}
	}

	switch {
	case strings.HasPrefix(urlPath, apiPrefix):
		return route{action: actionAPINotFound}
	case strings.HasPrefix(urlPath, publicPrefix):
		return route{kind: kindAsset, dir: publicDir, file: strings.TrimPrefix(urlPath, publicPrefix)}
	case strings.HasPrefix(urlPath, "/css/"), strings.HasPrefix(urlPath, "/js/"):
		return route{kind: kindAsset, dir: publicDir, file: strings.TrimPrefix(urlPath, "/")}
	case urlPath == "/favicon.ico":
		return route{action: actionNoContent}
	case urlPath == "/", urlPath == "/index.html", urlPath == "/atendimento", urlPath == LandingPage:
		return route{kind: kindPage, dir: pagesDir, file: landingFile}
	case urlPath == "/payments", urlPath == "/payments.html":
		return route{kind: kindPaymentPage, dir: pagesDir, file: paymentFile}
	case strings.HasPrefix(urlPath, pagesPrefix):
		return route{kind: kindPage, dir: pagesDir, file: strings.TrimPrefix(urlPath, pagesPrefix)}
	default:
		return route{action: actionRedirect}
	}
}

// resolve maps rt to an absolute path that is guaranteed to lie inside root/rt.dir.
func (r *Router) resolve(rt route) (string, bool) {
	base := filepath.Join(r.root, rt.dir)
	full := filepath.Join(base, filepath.FromSlash(rt.file))
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	urlPath := req.URL.Path
	if urlPath == "" {
		urlPath = "/"
	}

	rt := classify(urlPath)
	switch rt.action {
	case actionRedirect:
		r.redirect(w)
		return
	case actionNoContent:
		countResponse(http.StatusNoContent)
		w.WriteHeader(http.StatusNoContent)
		return
	case actionAPINotFound:
		r.fail(w, http.StatusNotFound, "text/html; charset=utf-8", "<h1>404 - Rota da API não encontrada</h1>")
		return
	}

	full, ok := r.resolve(rt)
	if !ok {
		r.logger.WarnContext(req.Context(), "Path escapes static root", "path", urlPath)
		r.missing(w, rt)
		return
	}

	content, err := readFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.InfoContext(req.Context(), "Static file not found", "path", urlPath)
			r.missing(w, rt)
		} else {
			r.logger.ErrorContext(req.Context(), "Error reading static file", "path", urlPath, "error", err)
			r.unreadable(w, rt)
		}
		return
	}

	ext := strings.ToLower(path.Ext(full))
	contentType, known := mimeTypes[ext]
	if !known {
		contentType = defaultMIME
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Content-Type", contentType)
	if ext == ".css" || ext == ".js" {
		h.Set("Cache-Control", immutable)
	} else {
		h.Set("Cache-Control", noCache)
	}

	countResponse(http.StatusOK)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		r.logger.DebugContext(req.Context(), "Error writing static file", "path", urlPath, "error", err)
	}

	// a served HTML document counts as a visit
	if ext == ".html" && r.notifier != nil {
		r.notifier.Notify(req.Context())
	}
}

// readFile treats directories as missing files.
func readFile(name string) ([]byte, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrNotExist
	}
	return os.ReadFile(name)
}

func (r *Router) missing(w http.ResponseWriter, rt route) {
	switch rt.kind {
	case kindAsset:
		r.fail(w, http.StatusNotFound, "text/plain; charset=utf-8", "404 - Arquivo não encontrado")
	case kindPaymentPage:
		r.fail(w, http.StatusNotFound, "text/html; charset=utf-8", "<h1>404 - Página de pagamentos não encontrada</h1>")
	default:
		r.redirect(w)
	}
}

func (r *Router) unreadable(w http.ResponseWriter, rt route) {
	switch rt.kind {
	case kindAsset:
		r.fail(w, http.StatusInternalServerError, "text/plain; charset=utf-8", "500 - Erro do servidor")
	case kindPaymentPage:
		r.fail(w, http.StatusInternalServerError, "text/html; charset=utf-8", "<h1>500 - Erro ao carregar página de pagamentos</h1>")
	default:
		r.redirect(w)
	}
}

func (r *Router) fail(w http.ResponseWriter, status int, contentType, body string) {
	countResponse(status)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (r *Router) redirect(w http.ResponseWriter) {
	countResponse(http.StatusFound)
	w.Header().Set("Location", LandingPage)
	w.WriteHeader(http.StatusFound)
}

func countResponse(status int) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`static_responses_total{status="%d"}`, status)).Inc()
}
