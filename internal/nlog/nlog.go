// Package nlog is windowrouter's logging entry point: a thin wrapper
// around logrus shaped like aistore's cmn/nlog call surface
// (Infoln/Infof/Errorln/Warningf) so call sites across the router read
// the way the teacher's do, regardless of which backend sits under it.
package nlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbose raises the backend to debug level; mirrors aistore's
// config-driven FastV verbosity knob without reproducing its whole
// tunable-verbosity machinery.
func SetVerbose(verbose bool) {
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

func Infoln(args ...any)            { log.Infoln(args...) }
func Infof(f string, args ...any)   { log.Infof(f, args...) }
func Errorln(args ...any)           { log.Errorln(args...) }
func Errorf(f string, args ...any)  { log.Errorf(f, args...) }
func Warningln(args ...any)         { log.Warnln(args...) }
func Warningf(f string, args ...any) { log.Warnf(f, args...) }
func Debugln(args ...any)           { log.Debugln(args...) }
func Debugf(f string, args ...any)  { log.Debugf(f, args...) }

// WithField returns a logrus entry for call sites that want structured
// fields (child id, run id) attached, e.g. nlog.WithField("child", 2).Infoln(...).
func WithField(key string, val any) *logrus.Entry {
	return log.WithField(key, val)
}
