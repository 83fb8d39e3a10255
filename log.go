package srcu

import (
	"github.com/sirupsen/logrus"
)

// log is the package logger every Domain derives its logger from unless
// WithLogger overrides it.
var log logrus.FieldLogger = logrus.StandardLogger().WithField("component", "srcu")

// SetLogger replaces the package logger. Domains created afterwards use it.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	log = l.WithField("component", "srcu")
}
