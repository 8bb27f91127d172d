// Package notify delivers the finalized bill summary to participants over
// chat. Delivery is fire-and-forget: failures are logged and counted, and
// never affect session state.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitlive/internal/async"
	"github.com/mmynk/splitlive/internal/calculator"
	"github.com/mmynk/splitlive/internal/metrics"
	"github.com/mmynk/splitlive/internal/models"
)

// Sender delivers one text message to one phone number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Enqueuer accepts delivery jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// LogSender writes messages to the log instead of sending them.
// Used when no messaging credentials are configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, to, body string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("summary message", "to", to, "body", body)
	return nil
}

// Dispatcher turns finalized sessions into delivery jobs and delivers them.
type Dispatcher struct {
	sender Sender
	queue  Enqueuer
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. Call SetQueue before OnFinalize is
// used; the queue usually wraps Deliver, so it is built after the dispatcher.
func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// SetQueue sets where OnFinalize puts jobs.
func (d *Dispatcher) SetQueue(q Enqueuer) {
	d.queue = q
}

// Messages builds one job per participant with a phone number.
func Messages(s *models.Session) []async.Job {
	text := calculator.Summary(s, s.Totals)
	totals := make(map[string]float64, len(s.Totals))
	for _, t := range s.Totals {
		totals[t.ParticipantID] = t.Total
	}

	var jobs []async.Job
	for _, p := range s.Participants {
		if p.Phone == "" {
			continue
		}
		body := fmt.Sprintf("Hi %s, you owe %s.\n\n%s", p.Name, calculator.FormatAmount(totals[p.ID], s.Currency), text)
		jobs = append(jobs, async.Job{
			SessionID:     s.ID,
			ParticipantID: p.ID,
			To:            p.Phone,
			Body:          body,
		})
	}
	return jobs
}

// OnFinalize queues the summary for every participant with a phone.
func (d *Dispatcher) OnFinalize(ctx context.Context, s *models.Session) {
	if d.queue == nil {
		return
	}
	for _, job := range Messages(s) {
		if err := d.queue.Enqueue(ctx, job); err != nil {
			d.logger.Warn("failed to queue summary", "session_id", s.ID, "participant_id", job.ParticipantID, "error", err)
		}
	}
}

// Deliver sends one job. It is the queue's handler.
func (d *Dispatcher) Deliver(ctx context.Context, job async.Job) error {
	if err := d.sender.Send(ctx, job.To, job.Body); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		return fmt.Errorf("send to participant %s: %w", job.ParticipantID, err)
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	return nil
}
