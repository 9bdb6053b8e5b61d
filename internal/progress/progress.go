// Package progress carries observational progress events from the importers to
// log output, the run repository and any other sink. Reporters never return
// errors; a failing sink must not change the outcome of an import.
package progress

import (
	"github.com/sirupsen/logrus"
)

// Reporter receives progress events. Percent is zero when unknown.
type Reporter interface {
	Report(percent int, message string)
}

// Func adapts a function to a Reporter.
type Func func(percent int, message string)

func (f Func) Report(percent int, message string) {
	f(percent, message)
}

// Discard drops every event.
var Discard Reporter = Func(func(int, string) {})

// Multi fans one event out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(percent int, message string) {
	for _, r := range m {
		if r != nil {
			r.Report(percent, message)
		}
	}
}

// LogReporter writes events through logrus.
type LogReporter struct {
	entry *logrus.Entry
}

func NewLogReporter(entry *logrus.Entry) *LogReporter {
	return &LogReporter{entry: entry}
}

func (l *LogReporter) Report(percent int, message string) {
	e := l.entry
	if percent > 0 {
		e = e.WithField("percent", percent)
	}
	e.Info(message)
}

// Recorder keeps every event in memory. It is handy for dry runs and tests.
type Recorder struct {
	Events []Event
}

type Event struct {
	Percent int
	Message string
}

func (r *Recorder) Report(percent int, message string) {
	r.Events = append(r.Events, Event{Percent: percent, Message: message})
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Message
	}
	return out
}

// Percent returns done/total as a whole percentage, or 0 when total is unknown.
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	p := done * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}
