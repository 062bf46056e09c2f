// Package logging provides a module-scoped structured logger shared by the
// swarm subsystem, mirroring the teacher lineage's per-package dlog.NewLogger
// convention but wrapping logrus directly.
package logging

import "github.com/sirupsen/logrus"

var base = logrus.StandardLogger()

// SetLevel lets a host process (cmd/swarmnode, tests) change the
// verbosity of the underlying logrus logger.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// For returns a module-scoped entry, analogous to the teacher's
// dlog.NewLogger(MODULENAME) pattern in chain/service/blockmgr/init.go.
func For(module string) *logrus.Entry {
	return base.WithField("module", module)
}
