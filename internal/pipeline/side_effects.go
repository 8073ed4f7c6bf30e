package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jmehdipour/mail-relay/internal/metrics"
	"github.com/jmehdipour/mail-relay/internal/model"
)

// sideEffects runs after the record exists. Each step is independent and
// failures are only logged and counted.
func (o *Orchestrator) sideEffects(ctx context.Context, log *zap.Logger, kind model.PipelineKind, ref model.PageRef, title, description string, env model.Envelope) {
	if err := o.store.AddComment(ctx, ref.ID, originalEmail(env)); err != nil {
		o.sideEffectFailed(log, "comment", err)
	}

	n := model.Notification{
		Type:        kind.String(),
		Title:       title,
		Description: description,
		NotionURL:   ref.URL,
	}
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.sideEffectFailed(log, "notification", err)
	}

	o.mail(ctx, log, env.From,
		fmt.Sprintf("Saved: %s", title),
		fmt.Sprintf("Your email %q was saved as a %s record.\n\n%s\n", env.Subject, kindLabel(kind), ref.URL))
}

func (o *Orchestrator) sendErrorEmail(ctx context.Context, log *zap.Logger, env model.Envelope, verr *ValidationError) {
	o.mail(ctx, log, env.From,
		fmt.Sprintf("Could not process: %s", orUntitled(env.Subject)),
		fmt.Sprintf("Your email could not be turned into a %s record because these fields were missing: %s.\n"+
			"Please resend it with the details included.\n", kindLabel(verr.Kind), strings.Join(verr.Missing, ", ")))
}

func (o *Orchestrator) mail(ctx context.Context, log *zap.Logger, to, subject, text string) {
	if o.mailer == nil || to == "" || o.opts.MailFrom == "" {
		return
	}
	email := model.Email{From: o.opts.MailFrom, To: []string{to}, Subject: subject, Text: text}
	if err := o.mailer.Send(ctx, email); err != nil {
		o.sideEffectFailed(log, "email", err)
	}
}

func (o *Orchestrator) sideEffectFailed(log *zap.Logger, channel string, err error) {
	metrics.SideEffectFailures.WithLabelValues(channel).Inc()
	log.Warn("side effect failed", zap.String("channel", channel), zap.Error(err))
}

func originalEmail(env model.Envelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", env.From)
	if env.To != "" {
		fmt.Fprintf(&b, "To: %s\n", env.To)
	}
	fmt.Fprintf(&b, "Subject: %s\n\n", env.Subject)
	b.WriteString(env.Body)
	return b.String()
}

func kindLabel(k model.PipelineKind) string {
	switch k {
	case model.PipelineEvent:
		return "event"
	case model.PipelineNewsletterItem:
		return "newsletter"
	default:
		return "inbox"
	}
}

func orUntitled(s string) string {
	if strings.TrimSpace(s) == "" {
		return untitled
	}
	return s
}
