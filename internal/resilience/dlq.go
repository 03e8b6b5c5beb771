package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadforge/leadgen-cli/internal/model"
)

// DLQEntry represents a failed source search that can be retried in a
// later run.
type DLQEntry struct {
	ID           string               `json:"id"`
	Source       string               `json:"source"`
	Criteria     model.SearchCriteria `json:"criteria"`
	Error        string               `json:"error"`
	ErrorType    string               `json:"error_type"` // "transient" or "permanent"
	RetryCount   int                  `json:"retry_count"`
	MaxRetries   int                  `json:"max_retries"`
	NextRetryAt  time.Time            `json:"next_retry_at"`
	CreatedAt    time.Time            `json:"created_at"`
	LastFailedAt time.Time            `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	Source    string `json:"source,omitempty"`
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

const (
	defaultDLQCapacity   = 256
	defaultDLQMaxRetries = 3
)

// DLQ is an in-memory dead letter queue of failed source searches.
// Entries are keyed by source and criteria, so repeated failures of
// the same query update the existing entry instead of growing the
// queue. When the queue is full the oldest entry is evicted.
type DLQ struct {
	mu      sync.Mutex
	entries map[string]*DLQEntry
	cap     int
}

// NewDLQ creates a queue holding at most capacity entries. A
// non-positive capacity uses the default.
func NewDLQ(capacity int) *DLQ {
	if capacity <= 0 {
		capacity = defaultDLQCapacity
	}
	return &DLQ{
		entries: make(map[string]*DLQEntry),
		cap:     capacity,
	}
}

func dlqKey(source string, criteria model.SearchCriteria) string {
	return source + "|" + criteria.Query + "|" + criteria.Country + "|" + criteria.City
}

// Record adds or updates the entry for a failed search. A fresh entry
// is due immediately; the backoff doubles with every further failure,
// starting at thirty seconds.
func (q *DLQ) Record(source string, criteria model.SearchCriteria, cause error) {
	now := time.Now().UTC()
	key := dlqKey(source, criteria)

	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.entries[key]; ok {
		e.RetryCount++
		e.Error = cause.Error()
		e.ErrorType = ClassifyError(cause)
		e.LastFailedAt = now
		e.NextRetryAt = now.Add(retryBackoff(e.RetryCount))
		return
	}

	if len(q.entries) >= q.cap {
		q.evictOldest()
	}
	q.entries[key] = &DLQEntry{
		ID:           uuid.New().String(),
		Source:       source,
		Criteria:     criteria,
		Error:        cause.Error(),
		ErrorType:    ClassifyError(cause),
		MaxRetries:   defaultDLQMaxRetries,
		NextRetryAt:  now.Add(retryBackoff(0)),
		CreatedAt:    now,
		LastFailedAt: now,
	}
}

// List returns matching entries, most recently failed first.
func (q *DLQ) List(filter DLQFilter) []DLQEntry {
	q.mu.Lock()
	out := make([]DLQEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if filter.Source != "" && e.Source != filter.Source {
			continue
		}
		if filter.ErrorType != "" && e.ErrorType != filter.ErrorType {
			continue
		}
		out = append(out, *e)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastFailedAt.After(out[j].LastFailedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Due returns the entries that are ready for another attempt.
func (q *DLQ) Due() []DLQEntry {
	now := time.Now().UTC()

	q.mu.Lock()
	defer q.mu.Unlock()

	var out []DLQEntry
	for _, e := range q.entries {
		if e.CanRetry() && !e.NextRetryAt.After(now) {
			out = append(out, *e)
		}
	}
	return out
}

// Remove drops an entry by id, usually after a successful retry.
func (q *DLQ) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for key, e := range q.entries {
		if e.ID == id {
			delete(q.entries, key)
			return
		}
	}
}

// Size returns the number of queued entries.
func (q *DLQ) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// evictOldest drops the entry with the earliest last failure. Caller
// holds the lock.
func (q *DLQ) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, e := range q.entries {
		if oldestKey == "" || e.LastFailedAt.Before(oldest) {
			oldestKey = key
			oldest = e.LastFailedAt
		}
	}
	if oldestKey != "" {
		delete(q.entries, oldestKey)
	}
}

func retryBackoff(retryCount int) time.Duration {
	if retryCount == 0 {
		return 0
	}
	backoff := 30 * time.Second
	for i := 1; i < retryCount && backoff < time.Hour; i++ {
		backoff *= 2
	}
	return backoff
}
