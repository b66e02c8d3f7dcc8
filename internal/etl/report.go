package etl

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tordrt/dwload/internal/etlerr"
)

// Stage names a pipeline pass
type Stage string

const (
	StageProvision   Stage = "provision"
	StageOperational Stage = "operational"
	StageWarehouse   Stage = "warehouse"
)

// Outcome is the result of one unit of work: a schema creation during
// provisioning, or one table load.
type Outcome struct {
	Stage    Stage
	Database string
	Table    string
	Rows     int
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Failed reports whether the unit did not complete
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Reporter receives every outcome as it happens
type Reporter interface {
	Report(Outcome)
}

// Reporters fans an outcome out to each reporter in order
type Reporters []Reporter

func (rs Reporters) Report(o Outcome) {
	for _, r := range rs {
		r.Report(o)
	}
}

// LogReporter writes outcomes to a structured logger
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a new log reporter
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(o Outcome) {
	attrs := []any{
		"stage", o.Stage,
		"database", o.Database,
		"rows", o.Rows,
		"duration", o.Duration,
	}
	if o.Table != "" {
		attrs = append(attrs, "table", o.Table)
	}

	switch {
	case o.Skipped:
		r.logger.Warn("skipped", append(attrs, "reason", o.Err)...)
	case o.Err != nil:
		r.logger.Error("failed", append(attrs, "kind", etlerr.KindOf(o.Err), "error", o.Err)...)
	default:
		r.logger.Info("done", attrs...)
	}
}

// Collector keeps outcomes in memory for a final summary. It is not safe for
// concurrent use.
type Collector struct {
	outcomes []Outcome
}

func (c *Collector) Report(o Outcome) {
	c.outcomes = append(c.outcomes, o)
}

// Outcomes returns everything reported so far
func (c *Collector) Outcomes() []Outcome {
	return append([]Outcome(nil), c.outcomes...)
}

// Failures returns the failed and skipped outcomes
func (c *Collector) Failures() []Outcome {
	var failed []Outcome
	for _, o := range c.outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins the errors of every failed outcome, or returns nil
func (c *Collector) Err() error {
	var errs []error
	for _, o := range c.Failures() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}
