package apperror

import (
	"errors"
	"log/slog"
	"testing"
)

func TestCollector_Record(t *testing.T) {
	c := NewCollector(slog.Default())

	c.Record(3, NewTemplateFailure("foundColony", errors.New("nil target")))
	c.Record(3, nil)
	c.Record(4, NewInvariantViolation("protected-kind", "rel xyz"))

	records := c.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records (nil skipped), got %d", len(records))
	}
	if records[0].Tick != 3 || records[0].Kind != KindTemplate {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Tick != 4 || records[1].Kind != KindInvariant {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}

func TestCollector_Guard_RecoversPanic(t *testing.T) {
	c := NewCollector(slog.Default())

	c.Guard(7, KindTemplate, func() error {
		panic("template exploded")
	})

	records := c.Records()
	if len(records) != 1 {
		t.Fatalf("expected panic to be recorded, got %d records", len(records))
	}
	if records[0].Tick != 7 {
		t.Errorf("Tick = %d, want 7", records[0].Tick)
	}
}

func TestCollector_Guard_ContinuesAfterPanic(t *testing.T) {
	c := NewCollector(slog.Default())
	ran := false

	c.Guard(1, KindTemplate, func() error { panic("boom") })
	c.Guard(2, KindTemplate, func() error {
		ran = true
		return nil
	})

	if !ran {
		t.Error("Guard should not abort subsequent calls after a recovered panic")
	}
}

func TestCollector_Records_IsDefensiveCopy(t *testing.T) {
	c := NewCollector(slog.Default())
	c.Record(1, ErrBudgetExceeded)

	records := c.Records()
	records[0].Tick = 999

	if c.Records()[0].Tick == 999 {
		t.Error("Records() should return a defensive copy")
	}
}
