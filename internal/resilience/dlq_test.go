package resilience

import (
	"errors"
	"testing"

	"github.com/leadforge/leadgen-cli/internal/model"
)

func TestDLQEntry_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		want       bool
	}{
		{"below max", 0, 3, true},
		{"at max", 3, 3, false},
		{"above max", 5, 3, false},
		{"one below max", 2, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DLQEntry{
				RetryCount: tt.retryCount,
				MaxRetries: tt.maxRetries,
			}
			if got := e.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transient error", NewTransientError(errors.New("503"), 503), "transient"},
		{"permanent error", errors.New("invalid input"), "permanent"},
		{"connection reset", errors.New("connection reset by peer"), "transient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDLQEntry_Criteria(t *testing.T) {
	e := DLQEntry{
		Source:   "pagine_gialle",
		Criteria: model.SearchCriteria{Query: "idraulico", Country: "IT", City: "Milano"},
	}
	if e.Criteria.City != "Milano" {
		t.Errorf("expected criteria city, got %q", e.Criteria.City)
	}
}

func TestDLQ_RecordUpdatesExistingEntry(t *testing.T) {
	q := NewDLQ(0)
	criteria := model.SearchCriteria{Query: "idraulico", Country: "IT", City: "Milano"}

	q.Record("serp", criteria, errors.New("timeout"))
	q.Record("serp", criteria, NewTransientError(errors.New("503"), 503))

	if q.Size() != 1 {
		t.Fatalf("expected 1 entry, got %d", q.Size())
	}
	entries := q.List(DLQFilter{})
	if entries[0].RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", entries[0].RetryCount)
	}
	if entries[0].ErrorType != "transient" {
		t.Errorf("ErrorType = %q, want transient", entries[0].ErrorType)
	}
}

func TestDLQ_ListFilters(t *testing.T) {
	q := NewDLQ(0)
	q.Record("serp", model.SearchCriteria{Query: "a", Country: "IT"}, NewTransientError(errors.New("503"), 503))
	q.Record("overpass", model.SearchCriteria{Query: "b", Country: "IT"}, errors.New("bad request"))

	if got := len(q.List(DLQFilter{Source: "serp"})); got != 1 {
		t.Errorf("filter by source: got %d entries, want 1", got)
	}
	if got := len(q.List(DLQFilter{ErrorType: "permanent"})); got != 1 {
		t.Errorf("filter by error type: got %d entries, want 1", got)
	}
	if got := len(q.List(DLQFilter{Limit: 1})); got != 1 {
		t.Errorf("limit: got %d entries, want 1", got)
	}
}

func TestDLQ_DueAndRemove(t *testing.T) {
	q := NewDLQ(0)
	q.Record("serp", model.SearchCriteria{Query: "a", Country: "IT"}, errors.New("timeout"))

	due := q.Due()
	if len(due) != 1 {
		t.Fatalf("fresh entry should be due, got %d", len(due))
	}

	// A second failure pushes the next attempt into the future.
	q.Record("serp", model.SearchCriteria{Query: "a", Country: "IT"}, errors.New("timeout"))
	if len(q.Due()) != 0 {
		t.Error("retried entry should be backed off")
	}

	q.Remove(due[0].ID)
	if q.Size() != 0 {
		t.Errorf("Size = %d after Remove, want 0", q.Size())
	}
}

func TestDLQ_EvictsOldestAtCapacity(t *testing.T) {
	q := NewDLQ(2)
	q.Record("serp", model.SearchCriteria{Query: "a", Country: "IT"}, errors.New("x"))
	q.Record("serp", model.SearchCriteria{Query: "b", Country: "IT"}, errors.New("x"))
	q.Record("serp", model.SearchCriteria{Query: "c", Country: "IT"}, errors.New("x"))

	if q.Size() != 2 {
		t.Errorf("Size = %d, want 2", q.Size())
	}
}
