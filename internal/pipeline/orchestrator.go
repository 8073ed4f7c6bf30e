// Package pipeline turns a routed envelope into a record: extraction,
// validation, record creation and the best-effort side effects that follow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/mail-relay/internal/metrics"
	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/jmehdipour/mail-relay/internal/notify"
	"github.com/jmehdipour/mail-relay/internal/router"
	"github.com/jmehdipour/mail-relay/internal/schedule"
)

const untitled = "Untitled email"

type Extractor interface {
	ExtractEvent(ctx context.Context, subject, body string) (model.EventFields, error)
	ExtractNewsletterItem(ctx context.Context, subject, body string) (model.NewsletterFields, error)
	ExtractInbox(ctx context.Context, subject, body string) (model.InboxFields, error)
}

type RecordStore interface {
	CreateEvent(ctx context.Context, f model.EventFields, when model.DateRange, src model.Envelope) (model.PageRef, error)
	CreateNewsletterItem(ctx context.Context, f model.NewsletterFields, src model.Envelope) (model.PageRef, error)
	CreateInboxItem(ctx context.Context, f model.InboxFields, src model.Envelope) (model.PageRef, error)
	LinkWeek(ctx context.Context, pageID, containerID string) error
	AddComment(ctx context.Context, pageID, text string) error
}

type Mailer interface {
	Send(ctx context.Context, email model.Email) error
}

type Deps struct {
	Router    *router.Router
	Extractor Extractor
	Store     RecordStore
	Weeks     *schedule.WeekLinker
	// Mailer and Notifier are optional.
	Mailer   Mailer
	Notifier notify.Notifier
	Log      *zap.Logger
}

type Options struct {
	// MailFrom is the sender of confirmation and error emails.
	MailFrom string
	Now      func() time.Time
}

// Result is the success body of the inbound webhook.
type Result struct {
	Success  bool             `json:"success"`
	Type     string           `json:"type"`
	PageID   string           `json:"pageId"`
	URL      string           `json:"url"`
	Title    string           `json:"title"`
	Date     *model.DateRange `json:"date,omitempty"`
	Week     *model.WeekRef   `json:"week,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

type Orchestrator struct {
	router   *router.Router
	extract  Extractor
	store    RecordStore
	weeks    *schedule.WeekLinker
	mailer   Mailer
	notifier notify.Notifier
	log      *zap.Logger
	opts     Options
}

func New(d Deps, opts Options) *Orchestrator {
	if d.Router == nil {
		d.Router = router.MustNew(nil)
	}
	if d.Weeks == nil {
		d.Weeks = schedule.NewWeekLinker(nil, "")
	}
	if d.Notifier == nil {
		d.Notifier = notify.Noop{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		router:   d.Router,
		extract:  d.Extractor,
		store:    d.Store,
		weeks:    d.Weeks,
		mailer:   d.Mailer,
		notifier: d.Notifier,
		log:      d.Log,
		opts:     opts,
	}
}

// Route reports the pipeline env would run through.
func (o *Orchestrator) Route(env model.Envelope) model.PipelineKind {
	return o.router.Route(env)
}

// Process routes env and runs its pipeline. Errors are *ValidationError or
// *ExternalServiceError; side-effect failures never reach the caller.
func (o *Orchestrator) Process(ctx context.Context, env model.Envelope) (Result, error) {
	kind := o.router.Route(env)
	log := o.log.With(zap.String("pipeline", kind.String()), zap.String("from", env.From), zap.String("to", env.To))

	var (
		res Result
		err error
	)
	switch kind {
	case model.PipelineEvent:
		res, err = o.event(ctx, log, env)
	case model.PipelineNewsletterItem:
		res, err = o.newsletterItem(ctx, log, env)
	default:
		res, err = o.inbox(ctx, log, env)
	}

	outcome := "created"
	if err != nil {
		outcome = "failed"
		var verr *ValidationError
		if errors.As(err, &verr) {
			outcome = "invalid"
		}
		log.Error("pipeline failed", zap.Error(err))
	} else {
		log.Info("record created", zap.String("page_id", res.PageID), zap.String("title", res.Title))
	}
	metrics.PipelineTotal.WithLabelValues(kind.String(), outcome).Inc()
	return res, err
}

func (o *Orchestrator) event(ctx context.Context, log *zap.Logger, env model.Envelope) (Result, error) {
	f, err := o.extract.ExtractEvent(ctx, env.Subject, env.Body)
	if err != nil {
		return Result{}, &ExternalServiceError{Service: ServiceExtraction, Err: err}
	}

	var missing []string
	if strings.TrimSpace(f.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(f.Date) == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		verr := &ValidationError{Kind: model.PipelineEvent, Missing: missing}
		o.sendErrorEmail(ctx, log, env, verr)
		return Result{}, verr
	}

	when := schedule.Compose(f.Date, f.Time, f.EndDate, f.EndTime)
	ref, err := o.store.CreateEvent(ctx, f, when, env)
	if err != nil {
		return Result{}, &ExternalServiceError{Service: ServiceRecordStore, Err: err}
	}

	o.sideEffects(ctx, log, model.PipelineEvent, ref, f.Name, when.Start, env)
	return Result{
		Success: true,
		Type:    model.PipelineEvent.String(),
		PageID:  ref.ID,
		URL:     ref.URL,
		Title:   f.Name,
		Date:    &when,
	}, nil
}

func (o *Orchestrator) newsletterItem(ctx context.Context, log *zap.Logger, env model.Envelope) (Result, error) {
	f, err := o.extract.ExtractNewsletterItem(ctx, env.Subject, env.Body)
	if err != nil {
		return Result{}, &ExternalServiceError{Service: ServiceExtraction, Err: err}
	}
	f.Title = defaultTitle(f.Title, env.Subject)

	ref, err := o.store.CreateNewsletterItem(ctx, f, env)
	if err != nil {
		return Result{}, &ExternalServiceError{Service: ServiceRecordStore, Err: err}
	}

	res := Result{
		Success: true,
		Type:    model.PipelineNewsletterItem.String(),
		PageID:  ref.ID,
		URL:     ref.URL,
		Title:   f.Title,
	}

	week, err := o.weeks.ResolveContainer(ctx, o.opts.Now())
	res.Week = &week
	switch {
	case err != nil:
		metrics.SideEffectFailures.WithLabelValues("week_link").Inc()
		log.Warn("week container lookup failed", zap.Error(err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("could not look up %q", week.Title))
	case !week.Linked():
		res.Warnings = append(res.Warnings, fmt.Sprintf("no container found for %q", week.Title))
	default:
		if err := o.store.LinkWeek(ctx, ref.ID, week.LinkedContainerID); err != nil {
			metrics.SideEffectFailures.WithLabelValues("week_link").Inc()
			log.Warn("week link failed", zap.Error(err), zap.String("container", week.LinkedContainerID))
			res.Warnings = append(res.Warnings, fmt.Sprintf("could not link to %q", week.Title))
			week.LinkedContainerID = ""
		}
	}

	o.sideEffects(ctx, log, model.PipelineNewsletterItem, ref, f.Title, f.Summary, env)
	return res, nil
}

func (o *Orchestrator) inbox(ctx context.Context, log *zap.Logger, env model.Envelope) (Result, error) {
	f, err := o.extract.ExtractInbox(ctx, env.Subject, env.Body)
	if err != nil {
		return Result{}, &ExternalServiceError{Service: ServiceExtraction, Err: err}
	}
	f.Title = defaultTitle(f.Title, env.Subject)

	ref, err := o.store.CreateInboxItem(ctx, f, env)
	if err != nil {
		return Result{}, &ExternalServiceError{Service: ServiceRecordStore, Err: err}
	}

	o.sideEffects(ctx, log, model.PipelineInbox, ref, f.Title, f.Summary, env)
	return Result{
		Success: true,
		Type:    model.PipelineInbox.String(),
		PageID:  ref.ID,
		URL:     ref.URL,
		Title:   f.Title,
	}, nil
}

func defaultTitle(title, subject string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if s := strings.TrimSpace(subject); s != "" {
		return s
	}
	return untitled
}
