package apperror

import (
	"log/slog"
)

// Record is a single entry in the engine's structured error list, stamped
// with the tick at which it was observed.
type Record struct {
	Tick  int    `json:"tick"`
	Kind  Kind   `json:"kind"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Collector accumulates Records across a run without ever panicking or
// unwinding the tick loop (spec §7: "errors never unwind the tick loop").
type Collector struct {
	log     *slog.Logger
	records []Record
}

// NewCollector builds a Collector that logs each recorded error at a
// severity matching its Kind.
func NewCollector(log *slog.Logger) *Collector {
	return &Collector{log: log}
}

// Record classifies err (wrapping it as KindUnspecified if it is not
// already an *Error), logs it, and appends it to the collected list. It
// never returns an error itself — callers always continue.
func (c *Collector) Record(tick int, err error) {
	if err == nil {
		return
	}
	appErr, ok := err.(*Error)
	if !ok {
		appErr = New(KindUnspecified, "internal_error", err.Error()).WithInternal(err)
	}

	rec := Record{Tick: tick, Kind: appErr.Kind, Code: appErr.Code, Error: appErr.Error()}
	c.records = append(c.records, rec)

	switch appErr.Kind {
	case KindConfig, KindInvariant:
		c.log.Error("engine error", slog.Int("tick", tick), slog.String("kind", string(appErr.Kind)), errorAttr(appErr))
	case KindTemplate, KindEnrichment:
		c.log.Warn("engine warning", slog.Int("tick", tick), slog.String("kind", string(appErr.Kind)), errorAttr(appErr))
	default:
		c.log.Info("engine notice", slog.Int("tick", tick), slog.String("kind", string(appErr.Kind)), errorAttr(appErr))
	}
}

// Guard runs fn, recovering from any panic and converting it (and any
// returned error) into a recorded Record of the given default kind. This is
// how each tick phase insulates the loop from a misbehaving template or
// system (spec §7(b)/(c)).
func (c *Collector) Guard(tick int, defaultKind Kind, fn func() error) {
	classify := func(err error) error {
		if _, ok := err.(*Error); ok {
			return err
		}
		return New(defaultKind, string(defaultKind), err.Error()).WithInternal(err)
	}
	defer func() {
		if r := recover(); r != nil {
			var err error
			if e, ok := r.(error); ok {
				err = classify(e)
			} else {
				err = New(defaultKind, string(defaultKind), recoverMessage(r))
			}
			c.Record(tick, err)
		}
	}()

	if err := fn(); err != nil {
		c.Record(tick, classify(err))
	}
}

// Records returns a defensive copy of every error observed so far.
func (c *Collector) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// errorAttr mirrors logger's "error" attribute convention so Collector
// does not need to import pkg/logger.
func errorAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

func recoverMessage(r any) string {
	if s, ok := r.(string); ok {
		return s
	}
	return "panic in tick phase"
}
