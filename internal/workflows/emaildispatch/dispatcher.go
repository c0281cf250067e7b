// Package emaildispatch implements the Email Dispatcher: recipient
// resolution, asset pre-warming, chunked rate-limited send, and per-send
// audit logging. Also serves the CONTACT_FORM_EMAIL and
// PROMOTION_TEST_EMAIL job variants, which route through the same pipeline
// with an explicit recipient list and isTestEmail flag.
package emaildispatch

import (
	"context"
	"time"

	"github.com/eventforge/batchjobs/internal/content"
	"github.com/eventforge/batchjobs/internal/email"
	"github.com/eventforge/batchjobs/internal/joberrors"
	"github.com/eventforge/batchjobs/internal/logger"
	"github.com/eventforge/batchjobs/internal/metrics"
	"github.com/eventforge/batchjobs/internal/orchestrator"
	"github.com/eventforge/batchjobs/internal/rategovernor"
	"github.com/eventforge/batchjobs/internal/store"
)

const (
	defaultBatchSize   = 50
	defaultMaxEmails   = 10000
	defaultPrewarmWait = 10 * time.Second
)

// AssetPrewarmer pre-warms footer/header assets ahead of a bulk send.
type AssetPrewarmer interface {
	Prewarm(ctx context.Context, tenantID, footerURL, logoImageURL string)
}

// EmailSender is the capability the dispatcher needs from the outbound mail
// provider. Tests substitute an in-memory implementation.
type EmailSender interface {
	Send(ctx context.Context, msg email.Message) error
}

// Dispatcher implements orchestrator.Workflow for EMAIL_BATCH and the
// CONTACT_FORM_EMAIL / PROMOTION_TEST_EMAIL variants.
type Dispatcher struct {
	templates  store.TemplateStore
	tenants    store.TenantSettingsStore
	recipients store.RecipientStore
	sentLog    store.SentLogStore
	builder    *content.Builder
	prewarmer  AssetPrewarmer
	sender     EmailSender
	governor   *rategovernor.Governor
}

// New builds a Dispatcher.
func New(
	templates store.TemplateStore,
	tenants store.TenantSettingsStore,
	recipients store.RecipientStore,
	sentLog store.SentLogStore,
	builder *content.Builder,
	prewarmer AssetPrewarmer,
	sender EmailSender,
	governor *rategovernor.Governor,
) *Dispatcher {
	return &Dispatcher{
		templates:  templates,
		tenants:    tenants,
		recipients: recipients,
		sentLog:    sentLog,
		builder:    builder,
		prewarmer:  prewarmer,
		sender:     sender,
		governor:   governor,
	}
}

// Run implements orchestrator.Workflow.
func (d *Dispatcher) Run(ctx context.Context, req orchestrator.TriggerRequest) (processed, success, failed, skipped int, err error) {
	log := logger.FromContext(ctx)

	tmpl, tErr := d.templates.GetTemplate(ctx, req.TemplateID, req.TenantID)
	if tErr != nil {
		return 0, 0, 0, 0, joberrors.NewConfigurationError("template lookup failed: " + tErr.Error())
	}
	if tmpl == nil {
		return 0, 0, 0, 0, joberrors.NewDataNotFound("template not found: " + req.TemplateID)
	}

	settings, sErr := d.tenants.GetTenantSettings(ctx, req.TenantID)
	if sErr != nil {
		settings = &store.TenantSettings{TenantID: req.TenantID}
	}

	d.prewarm(ctx, tmpl, settings)

	recipients, rErr := d.resolveRecipients(ctx, req, tmpl)
	if rErr != nil {
		return 0, 0, 0, 0, rErr
	}

	maxEmails := req.MaxEmails
	if maxEmails <= 0 {
		maxEmails = defaultMaxEmails
	}
	if len(recipients) > maxEmails {
		recipients = recipients[:maxEmails]
	}

	built := d.builder.Build(ctx, content.Template{
		Subject:        tmpl.Subject,
		BodyHTML:       tmpl.BodyHTML,
		HeaderImageURL: tmpl.HeaderImageURL,
		FooterHTML:     tmpl.FooterHTML,
		FooterImageURL: tmpl.FooterImageURL,
	}, "", "", content.TenantFallback{
		TenantID:            settings.TenantID,
		EmailHeaderImageURL: settings.EmailHeaderImageURL,
		EmailFooterHTMLURL:  settings.EmailFooterHTMLURL,
		LogoImageURL:        settings.LogoImageURL,
	})

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	isTest := req.IsTestEmail || req.JobType == orchestrator.JobPromotionTestEmail

	for start := 0; start < len(recipients); start += batchSize {
		if ctx.Err() != nil {
			return processed, success, failed, 0, joberrors.NewCancelled("cancelled")
		}
		end := start + batchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		chunk := recipients[start:end]

		sendErr := d.governor.Run(ctx, func(ctx context.Context) error {
			return d.sendChunk(ctx, chunk, tmpl, built.Subject, built.BodyHTML, req.TenantID, isTest)
		})

		for range chunk {
			processed++
			if sendErr != nil {
				failed++
			} else {
				success++
			}
		}
		if sendErr != nil {
			log.Warn("email chunk send failed", "tenant_id", req.TenantID, "size", len(chunk), "error", sendErr)
		}
	}

	metrics.ItemsProcessed.WithLabelValues("EMAIL_BATCH", "success").Add(float64(success))
	metrics.ItemsProcessed.WithLabelValues("EMAIL_BATCH", "failed").Add(float64(failed))

	return processed, success, failed, 0, nil
}

func (d *Dispatcher) prewarm(ctx context.Context, tmpl *store.EmailTemplate, settings *store.TenantSettings) {
	if d.prewarmer == nil || tmpl.FooterHTML != "" || tmpl.FooterImageURL != "" || settings.EmailFooterHTMLURL == "" {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, defaultPrewarmWait)
	defer cancel()
	d.prewarmer.Prewarm(pctx, settings.TenantID, settings.EmailFooterHTMLURL, settings.LogoImageURL)
}

func (d *Dispatcher) resolveRecipients(ctx context.Context, req orchestrator.TriggerRequest, tmpl *store.EmailTemplate) ([]string, error) {
	if len(req.RecipientEmails) > 0 {
		return req.RecipientEmails, nil
	}

	recipientType := req.RecipientType
	if recipientType == "" {
		if tmpl.EventID != "" {
			recipientType = "EVENT_ATTENDEES"
		} else {
			recipientType = "SUBSCRIBED_MEMBERS"
		}
	}

	switch recipientType {
	case "EVENT_ATTENDEES":
		emails, err := d.recipients.EventAttendeeEmails(ctx, req.TenantID, tmpl.EventID)
		if err != nil {
			return nil, joberrors.NewConfigurationError("resolve event attendees: " + err.Error())
		}
		return emails, nil
	case "SUBSCRIBED_MEMBERS":
		emails, err := d.recipients.SubscribedMemberEmails(ctx, req.TenantID)
		if err != nil {
			return nil, joberrors.NewConfigurationError("resolve subscribed members: " + err.Error())
		}
		return emails, nil
	default:
		return nil, joberrors.NewValidationError("unknown recipientType: " + recipientType)
	}
}

func (d *Dispatcher) sendChunk(ctx context.Context, chunk []string, tmpl *store.EmailTemplate, subject, bodyHTML, tenantID string, isTest bool) error {
	var firstErr error
	for _, to := range chunk {
		err := d.sender.Send(ctx, email.Message{
			From:     tmpl.FromEmail,
			To:       to,
			Subject:  subject,
			BodyHTML: bodyHTML,
		})

		status := store.SentStatusSent
		errMsg := ""
		if err != nil {
			status = store.SentStatusFailed
			errMsg = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		}

		logErr := d.sentLog.AppendSentLog(ctx, store.SentLogRow{
			TenantID:       tenantID,
			TemplateID:     tmpl.ID,
			EventID:        tmpl.EventID,
			RecipientEmail: to,
			Subject:        subject,
			IsTestEmail:    isTest,
			Status:         status,
			ErrorMessage:   errMsg,
		})
		if logErr != nil {
			logger.FromContext(ctx).Error("failed to append sent log", "recipient", to, "error", logErr)
		}
	}
	return firstErr
}
