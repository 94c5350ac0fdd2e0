package logger

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages log on behalf of their callers. Frames inside them are
// skipped when attributing an entry, so a stage metric is reported at the
// stage that raised it rather than in the metrics package. Entries with no
// frame outside them, such as the periodic report, keep the caller logrus
// found.
var wrapperPackages = []string{
	"runtime.",
	"github.com/sirupsen/logrus.",
	"stockflow/logger.",
	"stockflow/internal/metrics.",
}

// callerHook points entry.Caller at the first frame outside the wrappers.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isWrapperFrame(frame) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func isWrapperFrame(f runtime.Frame) bool {
	if strings.HasSuffix(f.File, "_test.go") {
		return false
	}
	for _, pkg := range wrapperPackages {
		if strings.HasPrefix(f.Function, pkg) {
			return true
		}
	}
	return false
}

// prettyCaller renders the caller as dir/file.go:line. Several packages
// share file names such as jobs.go, so the directory is kept.
func prettyCaller(f *runtime.Frame) (string, string) {
	dir := filepath.Base(filepath.Dir(f.File))
	return "", fmt.Sprintf("%s/%s:%d", dir, filepath.Base(f.File), f.Line)
}
