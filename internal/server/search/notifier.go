// Package search keeps the external search index informed of committed
// enquiries. Notifications are queued and published by a background worker;
// publishing failures are logged and never reach the caller.
package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/enquirykeeper/internal/logging"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/metrics"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/schema"
)

const drainTimeout = 5 * time.Second

// Document is the payload handed to the index for one enquiry.
type Document struct {
	ID        string            `json:"id"`
	Fields    map[string]string `json:"fields"`
	CreatedBy string            `json:"created_by"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Publisher delivers documents to the index.
type Publisher interface {
	Publish(ctx context.Context, doc Document) error
}

// Notifier queues documents and publishes them from Run.
type Notifier struct {
	queue     chan Document
	publisher Publisher
	logger    logging.Logger
	metrics   *metrics.Metrics
}

func NewNotifier(p Publisher, queueSize int, l logging.Logger, m *metrics.Metrics) *Notifier {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Notifier{
		queue:     make(chan Document, queueSize),
		publisher: p,
		logger:    l.With("module", "search"),
		metrics:   m,
	}
}

// Notify enqueues the indexable fields of enq. It never blocks: when the
// queue is full the notification is dropped and counted.
func (n *Notifier) Notify(ctx context.Context, enq *models.Enquiry, indexable []string) {
	doc := NewDocument(enq, indexable)
	select {
	case n.queue <- doc:
	default:
		n.metrics.IncrementSearchSync("dropped")
		n.logger.Warn(ctx, "search queue full, notification dropped", "id", enq.ID)
	}
}

// Run publishes queued documents until ctx is done, then makes a bounded
// attempt to flush what is left.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Info(ctx, "Starting search sync worker")
	for {
		select {
		case <-ctx.Done():
			n.drain(ctx)
			n.logger.Info(ctx, "Stopping search sync worker...")
			return nil
		case doc := <-n.queue:
			n.publish(ctx, doc)
		}
	}
}

func (n *Notifier) drain(ctx context.Context) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	for {
		select {
		case doc := <-n.queue:
			n.publish(dctx, doc)
		default:
			return
		}
	}
}

func (n *Notifier) publish(ctx context.Context, doc Document) {
	if err := n.publisher.Publish(ctx, doc); err != nil {
		n.metrics.IncrementSearchSync("failed")
		n.logger.Error(ctx, "search sync failed", "id", doc.ID, "error", err)
		return
	}
	n.metrics.IncrementSearchSync("published")
	n.logger.Debug(ctx, "search sync published", "id", doc.ID)
}

// NewDocument extracts the named fields present in enq's criteria. List
// values are joined with ", " in submission order.
func NewDocument(enq *models.Enquiry, indexable []string) Document {
	fields := make(map[string]string, len(indexable))
	for _, name := range indexable {
		v, ok := enq.Criteria[name]
		if !ok {
			continue
		}
		fields[name] = flatten(v)
	}
	return Document{ID: enq.ID, Fields: fields, CreatedBy: enq.CreatedBy, UpdatedAt: enq.UpdatedAt}
}

func flatten(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case []string:
		return strings.Join(value, ", ")
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			parts = append(parts, flatten(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, schema.CompareIndexKeys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, flatten(value[k]))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(value)
	}
}
