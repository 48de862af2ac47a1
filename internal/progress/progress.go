// Package progress reports pipeline progress, generalizing the prior design's
// elapsed-time-prefixed stderr reporter (progress.go) to structured
// logging via logrus, with an explicit SourceRecoveryContext-style value
// (no package-level logger) threaded through each pipeline phase.
package progress

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Reporter reports pipeline progress with elapsed time, backed by a
// logrus.Logger instead of bare fmt.Fprintf.
type Reporter struct {
	start   time.Time
	verbose bool
	log     *logrus.Logger
}

// New creates a Reporter writing to stderr at Info level (Debug when
// verbose is set).
func New(verbose bool) *Reporter {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &Reporter{start: time.Now(), verbose: verbose, log: l}
}

// Log reports a phase-progress message at Info level, tagged with
// elapsed time since the reporter was created.
func (r *Reporter) Log(phase, format string, args ...any) {
	r.log.WithField("phase", phase).WithField("elapsed", time.Since(r.start).Round(time.Millisecond)).
		Infof(format, args...)
}

// Verbose reports at Debug level; suppressed unless verbose was requested.
func (r *Reporter) Verbose(phase, format string, args ...any) {
	r.log.WithField("phase", phase).Debugf(format, args...)
}

// Warn reports a non-fatal warning, such as a failed verification when
// --verify was not passed.
func (r *Reporter) Warn(phase, format string, args ...any) {
	r.log.WithField("phase", phase).Warnf(format, args...)
}

// Statf prints one line of the statistics block, deliberately at Info
// level with no phase tag so it reads as tabular output.
func (r *Reporter) Statf(format string, args ...any) {
	r.log.Infof(format, args...)
}
