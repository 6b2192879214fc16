package render

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// Logger groups the info, warning and error loggers.
type Logger struct {
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger
}

const logFlags = log.Ldate | log.Ltime | log.Lshortfile

// NewLogger returns a Logger writing every level to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{
		Info:  log.New(w, "INFO: ", logFlags),
		Warn:  log.New(w, "WARNING: ", logFlags),
		Error: log.New(w, "ERROR: ", logFlags),
	}
}

// NewFileLogger returns a Logger appending each level to its own file
// in dir: info_log.txt, warn_log.txt and error_log.txt.
func NewFileLogger(dir string) (*Logger, error) {
	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	}
	info, err := open("info_log.txt")
	if err != nil {
		return nil, err
	}
	warn, err := open("warn_log.txt")
	if err != nil {
		return nil, err
	}
	errf, err := open("error_log.txt")
	if err != nil {
		return nil, err
	}
	return &Logger{
		Info:  log.New(info, "INFO: ", logFlags),
		Warn:  log.New(warn, "WARNING: ", logFlags),
		Error: log.New(errf, "ERROR: ", logFlags),
	}, nil
}
