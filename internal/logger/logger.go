// Package logger configures logrus and the access log target.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// File names used below the configured log directories
const (
	internalLogFile = "candlepin.log"
	accessLogFile   = "access.log"
)

// Target is a log destination: a directory, stderr or both
type Target struct {
	Dir    string
	StdErr bool
}

// Conf configures internal and access logging
type Conf struct {
	Level    string
	Internal Target
	Access   Target
}

var accessWriter io.Writer = os.Stdout

// Init sets the log level and output of the standard logger and opens the
// access log. Without a directory logs go to stderr.
func Init(conf Conf) error {
	level := log.InfoLevel
	if conf.Level != "" {
		var err error
		if level, err = log.ParseLevel(conf.Level); err != nil {
			return errors.Wrap(err, "logger: invalid level")
		}
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	out, err := writer(conf.Internal, internalLogFile)
	if err != nil {
		return err
	}
	log.SetOutput(out)
	if accessWriter, err = writer(conf.Access, accessLogFile); err != nil {
		return err
	}
	return nil
}

// AccessLog returns the access log writer set up by Init
func AccessLog() io.Writer {
	return accessWriter
}

func writer(t Target, fileName string) (io.Writer, error) {
	if t.Dir == "" {
		return os.Stderr, nil
	}
	f, err := os.OpenFile(filepath.Join(t.Dir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, errors.Wrap(err, "logger: opening log file failed")
	}
	if t.StdErr {
		return io.MultiWriter(os.Stderr, f), nil
	}
	return f, nil
}
