// Package ledge implements the HTTP front-end over a single object-storage
// bucket: prefix listings rendered as a browsable directory tree, and object
// downloads served by redirecting to a presigned URL when credentials are
// configured, or by streaming the object body directly otherwise.
package ledge

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ledge/internal/audit"
	"ledge/internal/sign"
	"ledge/internal/ui"
)

// Config carries the configuration of the front-end. All values are supplied
// by the operator; none come from request parameters.
type Config struct {
	// Bucket identity and credentials for presigning. When any of Account,
	// Bucket, AccessKeyID, or SecretAccessKey is blank, presigning is skipped
	// entirely and downloads are streamed through the process.
	Account         string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string

	// StorageDomain is the provider's endpoint suffix; the request host is
	// <bucket>.<account>.<StorageDomain>.
	StorageDomain string

	// Expiry is the raw presigned-URL lifetime override in seconds. Missing
	// or non-numeric values default per sign.ParseExpiry.
	Expiry string

	// Store is the storage binding used for listings and fallback streaming.
	Store ObjectStore

	// Audit optionally records download activity. Nil disables recording.
	Audit *audit.Log
}

// DefaultStorageDomain is used when Config.StorageDomain is empty.
const DefaultStorageDomain = "r2.cloudflarestorage.com"

// Server serves the browse, download, and activity pages.
type Server struct {
	cfg    Config
	expiry int
}

// NewServer validates cfg and returns a new Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("Store must not be nil")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("Bucket must not be empty")
	}
	if cfg.StorageDomain == "" {
		cfg.StorageDomain = DefaultStorageDomain
	}

	return &Server{
		cfg:    cfg,
		expiry: sign.ParseExpiry(cfg.Expiry),
	}, nil
}

// presignReady reports whether every field required for presigning is
// non-blank. When it is false the presigner is never invoked.
func (s *Server) presignReady() bool {
	for _, v := range []string{s.cfg.Account, s.cfg.Bucket, s.cfg.AccessKeyID, s.cfg.SecretAccessKey} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

func (s *Server) identity() sign.BucketIdentity {
	return sign.BucketIdentity{
		Account: s.cfg.Account,
		Bucket:  s.cfg.Bucket,
		Domain:  s.cfg.StorageDomain,
	}
}

func (s *Server) credentials() sign.Credentials {
	return sign.Credentials{
		AccessKeyID:     s.cfg.AccessKeyID,
		SecretAccessKey: s.cfg.SecretAccessKey,
	}
}

// record appends a download entry to the audit log. Failures are logged and
// never affect the response.
func (s *Server) record(r *http.Request, key, mode string) {
	if s.cfg.Audit == nil {
		return
	}
	if err := s.cfg.Audit.Record(r.Context(), key, mode, r.RemoteAddr); err != nil {
		slog.Error("Record download", "key", key, "mode", mode, "err", err)
	}
}

// normalizePrefix collapses duplicate slashes, strips a leading slash, and
// ensures non-empty prefixes carry a trailing slash so listings stay rooted
// at directory boundaries.
func normalizePrefix(raw string) string {
	for strings.Contains(raw, "//") {
		raw = strings.ReplaceAll(raw, "//", "/")
	}
	raw = strings.TrimPrefix(raw, "/")
	if raw != "" && !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw
}

// splitEntries separates a listing into subdirectories and objects for
// display. The object bearing the prefix's own key (a zero-byte directory
// marker) is dropped.
func splitEntries(prefix string, entries []Entry) ([]ui.Dir, []ui.Object) {
	dirs := make([]ui.Dir, 0, len(entries))
	objects := make([]ui.Object, 0, len(entries))

	for _, e := range entries {
		if e.IsPrefix {
			name := strings.TrimSuffix(strings.TrimPrefix(e.Key, prefix), "/")
			if name == "" {
				continue
			}
			dirs = append(dirs, ui.Dir{Name: name, Prefix: e.Key})
			continue
		}
		if e.Key == prefix {
			continue
		}
		objects = append(objects, ui.Object{
			Key:          e.Key,
			Name:         strings.TrimPrefix(e.Key, prefix),
			Size:         e.Size,
			LastModified: e.LastModified.UTC().Format(time.RFC3339),
		})
	}
	return dirs, objects
}

// handleBrowse implements GET /browse/{prefix...}: a delimiter listing of
// the prefix rendered as a directory page.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	prefix := normalizePrefix(r.PathValue("prefix"))

	entries, err := s.cfg.Store.List(r.Context(), prefix)
	if err != nil {
		slog.Error("List prefix", "prefix", prefix, "err", err)
		http.Error(w, "failed to list objects", http.StatusInternalServerError)
		return
	}

	dirs, objects := splitEntries(prefix, entries)
	if err := ui.BrowsePage(s.cfg.Bucket, prefix, dirs, objects).Render(r.Context(), w); err != nil {
		slog.Error("Render browse page", "prefix", prefix, "err", err)
	}
}

// handleDownload implements GET /download?key=...: redirect to a presigned
// URL when presigning is configured and succeeds, otherwise stream the
// object body directly. Presigning failures are logged, never surfaced.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key parameter", http.StatusBadRequest)
		return
	}

	if s.presignReady() {
		signedURL, err := sign.Presign(s.identity(), s.credentials(), key, s.expiry, time.Now())
		if err != nil {
			slog.Error("Presign, falling back to direct streaming", "key", key, "err", err)
		} else {
			s.record(r, key, audit.ModePresigned)
			http.Redirect(w, r, signedURL, http.StatusFound)
			return
		}
	}

	s.streamObject(w, r, key)
}

// streamObject serves the object body through the process, mirroring the
// headers a presigned download would produce.
func (s *Server) streamObject(w http.ResponseWriter, r *http.Request, key string) {
	obj, err := s.cfg.Store.Get(r.Context(), key)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "object not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Fetch object for streaming", "key", key, "err", err)
		http.Error(w, "failed to fetch object", http.StatusInternalServerError)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if obj.ETag != "" {
		w.Header().Set("ETag", etagHeader(obj.ETag))
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+sign.DispositionFilename(key)+`"`)

	s.record(r, key, audit.ModeStreamed)

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		slog.Error("Stream object", "key", key, "err", err)
	}
}

// etagHeader quotes an ETag value unless the store already returned it
// quoted.
func etagHeader(etag string) string {
	if strings.HasPrefix(etag, `"`) {
		return etag
	}
	return `"` + etag + `"`
}

// handleActivity implements GET /activity: the recent download log.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	downloads := make([]ui.Download, 0, 100)
	if s.cfg.Audit != nil {
		entries, err := s.cfg.Audit.Recent(r.Context(), 100)
		if err != nil {
			slog.Error("Load recent downloads", "err", err)
			http.Error(w, "failed to load activity", http.StatusInternalServerError)
			return
		}
		for _, e := range entries {
			downloads = append(downloads, ui.Download{
				Key:        e.Key,
				Mode:       e.Mode,
				RemoteAddr: e.RemoteAddr,
				Time:       e.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
	}

	if err := ui.ActivityPage(s.cfg.Bucket, downloads).Render(r.Context(), w); err != nil {
		slog.Error("Render activity page", "err", err)
	}
}
