package collisiongrid

import (
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "collisiongrid")

// SetLogger replaces the package logger. Grids created afterwards log
// through l.
func SetLogger(l *logrus.Entry) {
	if l == nil {
		l = logrus.NewEntry(logrus.StandardLogger())
	}
	log = l.WithField("component", "collisiongrid")
}
