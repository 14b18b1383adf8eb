// Package playback serves the evidence the agent sent to the inference
// service, the analysis audio render and the preview frames, so the panel can
// play and show them. Byte ranges are honoured.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cutpilot/cutpilot-agent/internal/frames"
	"github.com/cutpilot/cutpilot-agent/internal/gather"
	"github.com/cutpilot/cutpilot-agent/internal/host"
)

var (
	ErrNotFound    = errors.New("evidence file not found")
	ErrInvalidName = errors.New("invalid evidence file name")
)

// EvidenceService locates and streams evidence files.
type EvidenceService interface {
	AudioPath(ctx context.Context) (string, error)
	FramePath(ctx context.Context, name string) (string, error)
	ServeFile(w http.ResponseWriter, r *http.Request, path string) error
}

type Server struct {
	host     host.Host
	exporter *frames.Exporter
	logger   *slog.Logger
}

func NewServer(h host.Host, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{host: h, exporter: frames.NewExporter(h, logger), logger: logger}
}

// AudioPath returns the last analysis render in the host temp directory.
func (s *Server) AudioPath(ctx context.Context) (string, error) {
	dir, err := s.host.TempDir(ctx)
	if err != nil {
		return "", err
	}
	return existing(filepath.Join(dir, gather.AudioFileName))
}

// FramePath resolves a preview frame by file name. Only names the frame
// exporter produces are accepted.
func (s *Server) FramePath(ctx context.Context, name string) (string, error) {
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		!strings.HasPrefix(name, "Preview_") || !strings.HasSuffix(name, ".png") {
		return "", ErrInvalidName
	}
	doc, err := s.host.ActiveDocument(ctx)
	if err != nil {
		return "", err
	}
	dir, err := s.exporter.OutputDir(ctx, doc)
	if err != nil {
		return "", err
	}
	return existing(filepath.Join(dir, name))
}

func existing(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to stat evidence: %w", err)
	}
	if info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

// ServeFile streams path, answering Range and HEAD requests.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")

	s.logger.DebugContext(r.Context(), "serving evidence", "file", filepath.Base(path), "range", r.Header.Get("Range"))
	http.ServeContent(w, r, filepath.Base(path), stat.ModTime(), file)
	return nil
}
