// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/capport-dev/capport/internal/capplog"
)

// BuildLogger constructs a [capplog.Logger] from spec, writing structured
// JSON records to the log file path template of §6:
//
//	{OUTPUT_DIR}/{logger.output_path_prefix}{pipeline}_{YYYYmmdd}_{HHMMSS}.log
//
// — unless OutputPathPrefix is itself absolute, in which case its value
// is used as the path prefix directly and OUTPUT_DIR is not consulted
// (§6 "if output_path_prefix is absolute, it overrides OUTPUT_DIR").
// The caller owns closing the returned file once the run ends.
func BuildLogger(spec LoggerSpec, pipeline, outputDir string, now time.Time) (capplog.Logger, *os.File, error) {
	path := logPath(spec.OutputPathPrefix, pipeline, outputDir, now)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("logger %q: %v", spec.Name, err)}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("logger %q: %v", spec.Name, err)}
	}
	logger := capplog.New(slog.New(slog.NewJSONHandler(f, nil)), capplog.ParseLevel(spec.Level))
	return logger, f, nil
}

func logPath(prefix, pipeline, outputDir string, now time.Time) string {
	suffix := prefix + pipeline + "_" + now.Format("20060102_150405") + ".log"
	if filepath.IsAbs(prefix) {
		return suffix
	}
	return filepath.Join(outputDir, suffix)
}
