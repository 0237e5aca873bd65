package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/markwise/markwise-server/internal/core"
)

// Dispatcher announces new grading jobs to listening workers over NATS
// core pub/sub. Delivery is best-effort: no persistence, no ack, no
// ordering across jobs. The stale-job reaper is the sole reliability
// backstop for lost announcements.
type Dispatcher struct {
	nc   *nats.Conn
	log  *zap.SugaredLogger
	mu   sync.Mutex
	subs []*nats.Subscription
}

func New(nc *nats.Conn) *Dispatcher {
	return &Dispatcher{
		nc:  nc,
		log: zap.S().Named("dispatch"),
	}
}

// Connect dials NATS with unlimited reconnects.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return nc, nil
}

// Announce broadcasts a job ID to any listening worker. The payload is
// the job ID and nothing else; workers load everything from the store.
func (d *Dispatcher) Announce(jobID string) error {
	if err := d.nc.Publish(SubjectJobs, []byte(jobID)); err != nil {
		d.log.Warnw("job announcement failed", "job_id", jobID, "error", err)
		return fmt.Errorf("announce job %s: %w", jobID, err)
	}
	return nil
}

// Listen subscribes to job announcements. Returns a channel of job IDs
// and an unsubscribe function. The channel is buffered; announcements
// arriving while it is full are dropped with a warning, since the
// reaper will re-announce anything that went unclaimed.
func (d *Dispatcher) Listen() (<-chan string, func(), error) {
	ch := make(chan string, 64)

	sub, err := d.nc.Subscribe(SubjectJobs, func(msg *nats.Msg) {
		jobID := string(msg.Data)
		if jobID == "" {
			return
		}
		select {
		case ch <- jobID:
		default:
			d.log.Warnw("dropping announcement, listener channel full", "job_id", jobID)
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribe to %s: %w", SubjectJobs, err)
	}

	d.track(sub)
	unsubscribe := func() {
		_ = sub.Unsubscribe()
		close(ch)
	}
	return ch, unsubscribe, nil
}

// PublishJobEvent publishes a lifecycle event for UI status streaming.
// Best-effort, invoked only after the state transition has committed.
func (d *Dispatcher) PublishJobEvent(event *core.JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := d.nc.Publish(eventJobSubject(event.JobID), data); err != nil {
		d.log.Warnw("failed to publish job event", "job_id", event.JobID, "error", err)
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// SubscribeJob subscribes to lifecycle events for a specific job; the
// event-stream endpoint consumes this to push status to polling clients.
func (d *Dispatcher) SubscribeJob(jobID string) (<-chan *core.JobEvent, func(), error) {
	subject := eventJobSubject(jobID)
	ch := make(chan *core.JobEvent, 64)

	sub, err := d.nc.Subscribe(subject, func(msg *nats.Msg) {
		var event core.JobEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			d.log.Warnw("failed to unmarshal event", "error", err)
			return
		}
		select {
		case ch <- &event:
		default:
			d.log.Warnw("dropping event, subscriber channel full", "subject", subject)
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	d.track(sub)
	unsubscribe := func() {
		_ = sub.Unsubscribe()
		close(ch)
	}
	return ch, unsubscribe, nil
}

func (d *Dispatcher) track(sub *nats.Subscription) {
	d.mu.Lock()
	d.subs = append(d.subs, sub)
	d.mu.Unlock()
}

// Close unsubscribes everything. The NATS connection is owned by the
// caller and closed separately.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sub := range d.subs {
		_ = sub.Unsubscribe()
	}
	d.subs = nil
	return nil
}
