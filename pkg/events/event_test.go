package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewBaseEvent(t *testing.T) {
	aggregateID := uuid.New()

	before := time.Now().UTC()
	event := NewBaseEvent("product.account.opened", aggregateID, "Account", []byte(`{"a":1}`))
	after := time.Now().UTC()

	if event.EventID() == uuid.Nil {
		t.Error("expected non-nil event ID")
	}
	if event.EventType() != "product.account.opened" {
		t.Errorf("expected event type %q, got %q", "product.account.opened", event.EventType())
	}
	if event.AggregateID() != aggregateID {
		t.Errorf("expected aggregate ID %v, got %v", aggregateID, event.AggregateID())
	}
	if event.OccurredAt().Before(before) || event.OccurredAt().After(after) {
		t.Errorf("expected occurredAt between %v and %v, got %v", before, after, event.OccurredAt())
	}
	if string(event.Payload()) != `{"a":1}` {
		t.Errorf("unexpected payload %s", event.Payload())
	}
}

func TestNewBaseEventAt(t *testing.T) {
	at := time.Date(2024, time.March, 31, 23, 59, 59, 0, time.FixedZone("MYT", 8*3600))
	event := NewBaseEventAt("product.interest.accrued", uuid.New(), "Account", nil, at)

	if !event.OccurredAt().Equal(at) {
		t.Errorf("expected %v, got %v", at, event.OccurredAt())
	}
	if event.OccurredAt().Location() != time.UTC {
		t.Error("expected occurredAt normalised to UTC")
	}
}

func TestNewOutboxEntry(t *testing.T) {
	event := NewBaseEvent("product.postings.instructed", uuid.New(), "Account", []byte("{}"))

	entry := NewOutboxEntry("bib.product.postings", event)

	if entry.ID != event.EventID() {
		t.Errorf("expected outbox ID %v, got %v", event.EventID(), entry.ID)
	}
	if entry.AggregateID != event.AggregateID() {
		t.Errorf("expected aggregate ID %v, got %v", event.AggregateID(), entry.AggregateID)
	}
	if entry.Topic != "bib.product.postings" {
		t.Errorf("unexpected topic %q", entry.Topic)
	}
	if entry.PublishedAt != nil {
		t.Error("expected PublishedAt to be nil")
	}
}

func TestEventCollector(t *testing.T) {
	var c EventCollector
	first := NewBaseEvent("a", uuid.New(), "Account", nil)
	c.Record(first)

	snapshot := c
	snapshot.Record(NewBaseEvent("b", uuid.New(), "Account", nil))

	if len(c.Events()) != 1 {
		t.Fatalf("original collector mutated: %d events", len(c.Events()))
	}
	if len(snapshot.Events()) != 2 {
		t.Fatalf("expected 2 events on copy, got %d", len(snapshot.Events()))
	}

	cleared := snapshot.ClearEvents()
	if len(cleared) != 2 || len(snapshot.Events()) != 0 {
		t.Error("ClearEvents did not drain the collector")
	}
}
