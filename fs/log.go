package fs

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

var logger = logrus.StandardLogger()

// SetLogLevel sets the verbosity for all filesystem logging.
func SetLogLevel(level logrus.Level) {
	logger.SetLevel(level)
}

func entry(o interface{}) *logrus.Entry {
	if o == nil {
		return logrus.NewEntry(logger)
	}
	return logger.WithField("object", fmt.Sprintf("%v", o))
}

// Debugf writes debug level output for o which may be nil.
func Debugf(o interface{}, format string, args ...interface{}) {
	entry(o).Debugf(format, args...)
}

// Infof writes info level output for o which may be nil.
func Infof(o interface{}, format string, args ...interface{}) {
	entry(o).Infof(format, args...)
}

// Logf writes warning level output for o which may be nil.
func Logf(o interface{}, format string, args ...interface{}) {
	entry(o).Warnf(format, args...)
}

// Errorf writes error level output for o which may be nil.
func Errorf(o interface{}, format string, args ...interface{}) {
	entry(o).Errorf(format, args...)
}
