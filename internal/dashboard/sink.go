package dashboard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ReportFileName is the fixed name the report is saved under.
const ReportFileName = "report.pdf"

// DownloadSink stores a downloaded or generated file and returns where it
// ended up.
type DownloadSink interface {
	Save(name string, data []byte) (string, error)
}

// ExportRecorder keeps a log of saved files.
type ExportRecorder interface {
	Record(kind, location string, size int64) error
}

// FileSink writes files into a directory.
type FileSink struct {
	dir      string
	recorder ExportRecorder
	logger   *zap.Logger
}

func NewFileSink(dir string, recorder ExportRecorder, logger *zap.Logger) *FileSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = "."
	}
	return &FileSink{dir: dir, recorder: recorder, logger: logger}
}

func (s *FileSink) Dir() string { return s.dir }

// Save writes data to dir/name, replacing any previous file of that name.
func (s *FileSink) Save(name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	location := filepath.Join(s.dir, name)
	tmp := location + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, location); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(exportKind(name), location, int64(len(data))); err != nil {
			s.logger.Warn("failed to record export", zap.String("location", location), zap.Error(err))
		}
	}
	return location, nil
}

func exportKind(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "report"
	case ".png":
		return "chart"
	default:
		return "file"
	}
}
