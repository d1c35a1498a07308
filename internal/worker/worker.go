package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/convites"
	"github.com/convites-app/backend/internal/events"
	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/metrics"
	"github.com/convites-app/backend/pkg/queue"
)

// EventConviteSent is published on the live feed after a delivery.
const EventConviteSent = "convite_sent"

// ErrPermanent marks failures a retry cannot fix (missing rows, bad payload).
var ErrPermanent = errors.New("permanent job failure")

// ConviteStore is the convite persistence the processor needs.
type ConviteStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Convite, error)
	MarkSent(ctx context.Context, id uuid.UUID) (*models.Convite, error)
}

// EventGetter loads the event an invitation belongs to.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Sender delivers a finished invitation text to a phone.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// Notifier pushes a message to the live feed of an event.
type Notifier interface {
	Publish(eventID uuid.UUID, event string, payload interface{})
}

// JobSource is the queue the processor drains.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// InviteProcessor delivers invitation jobs: build the message, send it, stamp enviado_em.
type InviteProcessor struct {
	convites ConviteStore
	events   EventGetter
	sender   Sender
	notifier Notifier
	queue    JobSource
	baseURL  string
	logger   *zap.Logger
	backoff  time.Duration
}

// NewInviteProcessor creates an invitation processor. baseURL prefixes the guests' RSVP links.
func NewInviteProcessor(convs ConviteStore, evs EventGetter, sender Sender, notifier Notifier, q JobSource, baseURL string, logger *zap.Logger) *InviteProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InviteProcessor{
		convites: convs,
		events:   evs,
		sender:   sender,
		notifier: notifier,
		queue:    q,
		baseURL:  baseURL,
		logger:   logger,
		backoff:  queue.RetryBackoff,
	}
}

// RSVPLink is the public page where a guest answers.
func RSVPLink(baseURL string, conviteID uuid.UUID) string {
	return baseURL + "/c/" + conviteID.String()
}

// BuildInvitationMessage renders the text sent to a guest.
func BuildInvitationMessage(conv *models.Convite, e *models.Event, link string) string {
	msg := fmt.Sprintf(
		"🎉 *%s*\n\n"+
			"Olá, %s!\n\n"+
			"Você está convidado(a).\n\n"+
			"📅 Data: %s\n",
		e.Name, conv.NomeConvidado, e.StartsAt.Format("02/01/2006 às 15:04"),
	)
	if e.Location != "" {
		msg += "📍 Local: " + e.Location + "\n"
	}
	msg += "\nConfirme sua presença: " + link
	return msg
}

// Process executes one invitation job.
func (p *InviteProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeInviteSend {
		return fmt.Errorf("%w: unknown job type %s", ErrPermanent, job.Type)
	}
	var payload queue.InviteSendPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", ErrPermanent, err)
	}

	conv, err := p.convites.GetByID(ctx, payload.ConviteID)
	if err != nil {
		return loadError("convite", payload.ConviteID, err)
	}
	e, err := p.events.GetByID(ctx, conv.EventID)
	if err != nil {
		return loadError("event", conv.EventID, err)
	}

	msg := BuildInvitationMessage(conv, e, RSVPLink(p.baseURL, conv.ID))
	if err := p.sender.Send(ctx, conv.Telefone, msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	sent, err := p.convites.MarkSent(ctx, conv.ID)
	if err != nil {
		if errors.Is(err, convites.ErrNotFound) {
			return fmt.Errorf("%w: mark sent: %w", ErrPermanent, err)
		}
		return fmt.Errorf("mark sent: %w", err)
	}
	p.notifier.Publish(sent.EventID, EventConviteSent, sent)
	p.logger.Info("invite delivered", zap.String("convite_id", sent.ID.String()), zap.String("event_id", sent.EventID.String()))
	return nil
}

// loadError marks vanished rows permanent so the job is dropped instead of retried.
func loadError(what string, id uuid.UUID, err error) error {
	if errors.Is(err, convites.ErrNotFound) || errors.Is(err, events.ErrNotFound) {
		return fmt.Errorf("%w: load %s %s: %w", ErrPermanent, what, id, err)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}

// Run starts n worker loops and blocks until ctx is done and all of them returned.
func (p *InviteProcessor) Run(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	p.logger.Info("invite worker stopped")
}

func (p *InviteProcessor) loop(ctx context.Context, id int) {
	log := p.logger.With(zap.Int("worker", id))
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, log, job)
	}
}

func (p *InviteProcessor) handle(ctx context.Context, log *zap.Logger, job *queue.Job) {
	log.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		metrics.InviteSends.WithLabelValues("sent").Inc()
		return
	}
	log.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if errors.Is(err, ErrPermanent) {
		metrics.InviteSends.WithLabelValues("dropped").Inc()
		return
	}
	if reErr := p.queue.Retry(ctx, job); reErr != nil {
		log.Error("retry enqueue failed", zap.Error(reErr))
	}
	if queue.ExhaustedRetries(job) {
		metrics.InviteSends.WithLabelValues("dead_letter").Inc()
	} else {
		metrics.InviteSends.WithLabelValues("retried").Inc()
	}
	p.sleep(ctx)
}

func (p *InviteProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
