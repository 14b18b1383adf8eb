// Package frames renders still-image proxies of the timeline to disk.
package frames

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cutpilot/cutpilot-agent/internal/export"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/logging"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

// ErrExportFailed is returned when the host declines or fails a frame export.
var ErrExportFailed = errors.New("frame export failed")

const (
	longPathPrefix = `\\?\`
	maxLabelLen    = 64
)

// Exporter writes frames next to the open document, or into the host temp
// directory when the document is unsaved.
type Exporter struct {
	host   host.Host
	logger *slog.Logger
}

// NewExporter creates a frame exporter for h.
func NewExporter(h host.Host, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{host: h, logger: logger}
}

// FileName returns the file written for label.
func FileName(label string) string {
	return "Preview_" + export.SanitizeName(label, maxLabelLen) + ".png"
}

// ExportFrame renders the frame at position at and returns its path.
func (e *Exporter) ExportFrame(ctx context.Context, doc host.Document, s host.Session, at timecode.Ticks, label string) (string, error) {
	dir, err := e.OutputDir(ctx, doc)
	if err != nil {
		return "", err
	}

	geom, err := s.FrameGeometry(ctx)
	if err != nil {
		e.logger.DebugContext(ctx, "frame geometry unavailable, using default size", "error", err)
		geom = host.Geometry{}
	}
	width, height := geom.Size()

	name := FileName(label)
	ok, err := s.ExportFrame(ctx, at, name, dir, width, height)
	if err != nil {
		e.logger.WarnContext(ctx, "frame export error", "label", label, "error", err)
		return "", fmt.Errorf("%w: %s: %v", ErrExportFailed, label, err)
	}
	if !ok {
		e.logger.WarnContext(ctx, "host declined frame export", "label", label, "dir", logging.SanitizePath(dir))
		return "", fmt.Errorf("%w: %s", ErrExportFailed, label)
	}
	return filepath.Join(dir, name), nil
}

// OutputDir resolves the directory frames are written to.
func (e *Exporter) OutputDir(ctx context.Context, doc host.Document) (string, error) {
	if dir := DocumentDir(doc.Path()); dir != "" {
		return dir, nil
	}
	dir, err := e.host.TempDir(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve temp directory: %w", err)
	}
	return dir, nil
}

// DocumentDir returns the directory part of a host document path after
// removing the long-path prefix. Both separators are accepted. It returns ""
// when the path has no directory part.
func DocumentDir(path string) string {
	path = strings.TrimPrefix(path, longPathPrefix)
	i := strings.LastIndexAny(path, `\/`)
	if i <= 0 {
		return ""
	}
	return path[:i]
}
