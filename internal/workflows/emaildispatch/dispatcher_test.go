package emaildispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/eventforge/batchjobs/internal/content"
	"github.com/eventforge/batchjobs/internal/email"
	"github.com/eventforge/batchjobs/internal/joberrors"
	"github.com/eventforge/batchjobs/internal/orchestrator"
	"github.com/eventforge/batchjobs/internal/rategovernor"
	"github.com/eventforge/batchjobs/internal/store"
)

type fakeTemplateStore struct {
	tmpl *store.EmailTemplate
	err  error
}

func (f *fakeTemplateStore) GetTemplate(ctx context.Context, templateID, tenantID string) (*store.EmailTemplate, error) {
	return f.tmpl, f.err
}

type fakeTenantSettingsStore struct {
	settings *store.TenantSettings
	err      error
}

func (f *fakeTenantSettingsStore) GetTenantSettings(ctx context.Context, tenantID string) (*store.TenantSettings, error) {
	return f.settings, f.err
}

type fakeRecipientStore struct {
	eventAttendees    []string
	subscribedMembers []string
	err               error
}

func (f *fakeRecipientStore) EventAttendeeEmails(ctx context.Context, tenantID, eventID string) ([]string, error) {
	return f.eventAttendees, f.err
}

func (f *fakeRecipientStore) SubscribedMemberEmails(ctx context.Context, tenantID string) ([]string, error) {
	return f.subscribedMembers, f.err
}

type fakeSentLogStore struct {
	rows []store.SentLogRow
}

func (f *fakeSentLogStore) AppendSentLog(ctx context.Context, row store.SentLogRow) error {
	f.rows = append(f.rows, row)
	return nil
}

type fakePrewarmer struct {
	calls int
}

func (f *fakePrewarmer) Prewarm(ctx context.Context, tenantID, footerURL, logoImageURL string) {
	f.calls++
}

type fakeEmailSender struct {
	sent []email.Message
	err  error
}

func (s *fakeEmailSender) Send(ctx context.Context, msg email.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func newTestDispatcher(templates *fakeTemplateStore, tenants *fakeTenantSettingsStore, recipients *fakeRecipientStore, sentLog *fakeSentLogStore, prewarmer *fakePrewarmer) *Dispatcher {
	return newTestDispatcherWithSender(templates, tenants, recipients, sentLog, prewarmer, &fakeEmailSender{})
}

func newTestDispatcherWithSender(templates *fakeTemplateStore, tenants *fakeTenantSettingsStore, recipients *fakeRecipientStore, sentLog *fakeSentLogStore, prewarmer *fakePrewarmer, sender *fakeEmailSender) *Dispatcher {
	return New(templates, tenants, recipients, sentLog, content.New(nil), prewarmer, sender, rategovernor.New("SES", 1000, nil))
}

func TestRun_TemplateLookupErrorReturnsConfigurationError(t *testing.T) {
	d := newTestDispatcher(&fakeTemplateStore{err: errors.New("db down")}, &fakeTenantSettingsStore{}, &fakeRecipientStore{}, &fakeSentLogStore{}, &fakePrewarmer{})

	_, _, _, _, err := d.Run(context.Background(), orchestrator.TriggerRequest{JobType: orchestrator.JobEmailBatch, TemplateID: "tmpl-1", TenantID: "t1"})
	if kind, ok := joberrors.KindOf(err); !ok || kind != joberrors.KindConfiguration {
		t.Errorf("got %v, want CONFIGURATION", err)
	}
}

func TestRun_TemplateNotFoundReturnsDataNotFound(t *testing.T) {
	d := newTestDispatcher(&fakeTemplateStore{}, &fakeTenantSettingsStore{}, &fakeRecipientStore{}, &fakeSentLogStore{}, &fakePrewarmer{})

	_, _, _, _, err := d.Run(context.Background(), orchestrator.TriggerRequest{JobType: orchestrator.JobEmailBatch, TemplateID: "tmpl-missing", TenantID: "t1"})
	if kind, ok := joberrors.KindOf(err); !ok || kind != joberrors.KindDataNotFound {
		t.Errorf("got %v, want DATA_NOT_FOUND", err)
	}
}

func TestRun_UnknownRecipientTypeReturnsValidationError(t *testing.T) {
	d := newTestDispatcher(
		&fakeTemplateStore{tmpl: &store.EmailTemplate{ID: "tmpl-1", Subject: "hi"}},
		&fakeTenantSettingsStore{settings: &store.TenantSettings{TenantID: "t1"}},
		&fakeRecipientStore{},
		&fakeSentLogStore{},
		&fakePrewarmer{},
	)

	_, _, _, _, err := d.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobEmailBatch, TemplateID: "tmpl-1", TenantID: "t1", RecipientType: "BOGUS",
	})
	if kind, ok := joberrors.KindOf(err); !ok || kind != joberrors.KindValidation {
		t.Errorf("got %v, want VALIDATION", err)
	}
}

func TestRun_EmptyRecipientListCompletesWithZeroCounts(t *testing.T) {
	d := newTestDispatcher(
		&fakeTemplateStore{tmpl: &store.EmailTemplate{ID: "tmpl-1", Subject: "hi"}},
		&fakeTenantSettingsStore{settings: &store.TenantSettings{TenantID: "t1"}},
		&fakeRecipientStore{subscribedMembers: nil},
		&fakeSentLogStore{},
		&fakePrewarmer{},
	)

	processed, success, failed, skipped, err := d.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobEmailBatch, TemplateID: "tmpl-1", TenantID: "t1", RecipientType: "SUBSCRIBED_MEMBERS",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 0 || success != 0 || failed != 0 || skipped != 0 {
		t.Errorf("got (%d, %d, %d, %d)", processed, success, failed, skipped)
	}
}

func TestRun_TenantSettingsLookupFailureFallsBackGracefully(t *testing.T) {
	d := newTestDispatcher(
		&fakeTemplateStore{tmpl: &store.EmailTemplate{ID: "tmpl-1", Subject: "hi", EventID: "evt-1"}},
		&fakeTenantSettingsStore{err: errors.New("not configured")},
		&fakeRecipientStore{eventAttendees: nil},
		&fakeSentLogStore{},
		&fakePrewarmer{},
	)

	_, _, _, _, err := d.Run(context.Background(), orchestrator.TriggerRequest{JobType: orchestrator.JobEmailBatch, TemplateID: "tmpl-1", TenantID: "t1"})
	if err != nil {
		t.Fatalf("Run should tolerate a tenant settings lookup failure, got: %v", err)
	}
}

func TestRun_PrewarmsWhenTenantFooterHTMLURLConfiguredAndTemplateHasNoFooter(t *testing.T) {
	prewarmer := &fakePrewarmer{}
	d := newTestDispatcher(
		&fakeTemplateStore{tmpl: &store.EmailTemplate{ID: "tmpl-1", Subject: "hi"}},
		&fakeTenantSettingsStore{settings: &store.TenantSettings{TenantID: "t1", EmailFooterHTMLURL: "https://cdn/footer.html"}},
		&fakeRecipientStore{subscribedMembers: nil},
		&fakeSentLogStore{},
		prewarmer,
	)

	if _, _, _, _, err := d.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobEmailBatch, TemplateID: "tmpl-1", TenantID: "t1", RecipientType: "SUBSCRIBED_MEMBERS",
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prewarmer.calls != 1 {
		t.Errorf("prewarmer.calls = %d, want 1", prewarmer.calls)
	}
}

func TestRun_SkipsPrewarmWhenTemplateAlreadyHasFooter(t *testing.T) {
	prewarmer := &fakePrewarmer{}
	d := newTestDispatcher(
		&fakeTemplateStore{tmpl: &store.EmailTemplate{ID: "tmpl-1", Subject: "hi", FooterHTML: "<footer/>"}},
		&fakeTenantSettingsStore{settings: &store.TenantSettings{TenantID: "t1", EmailFooterHTMLURL: "https://cdn/footer.html"}},
		&fakeRecipientStore{subscribedMembers: nil},
		&fakeSentLogStore{},
		prewarmer,
	)

	if _, _, _, _, err := d.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobEmailBatch, TemplateID: "tmpl-1", TenantID: "t1", RecipientType: "SUBSCRIBED_MEMBERS",
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prewarmer.calls != 0 {
		t.Errorf("prewarmer.calls = %d, want 0", prewarmer.calls)
	}
}

func TestRun_RecipientResolutionErrorPropagates(t *testing.T) {
	d := newTestDispatcher(
		&fakeTemplateStore{tmpl: &store.EmailTemplate{ID: "tmpl-1", Subject: "hi"}},
		&fakeTenantSettingsStore{settings: &store.TenantSettings{TenantID: "t1"}},
		&fakeRecipientStore{err: errors.New("lookup failed")},
		&fakeSentLogStore{},
		&fakePrewarmer{},
	)

	_, _, _, _, err := d.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobContactFormEmail, TemplateID: "tmpl-1", TenantID: "t1", RecipientType: "SUBSCRIBED_MEMBERS",
	})
	if kind, ok := joberrors.KindOf(err); !ok || kind != joberrors.KindConfiguration {
		t.Errorf("got %v, want CONFIGURATION", err)
	}
}

func TestRun_SendsToEachResolvedRecipientAndLogsSent(t *testing.T) {
	sender := &fakeEmailSender{}
	sentLog := &fakeSentLogStore{}
	d := newTestDispatcherWithSender(
		&fakeTemplateStore{tmpl: &store.EmailTemplate{ID: "tmpl-1", Subject: "hi", FromEmail: "noreply@events.example"}},
		&fakeTenantSettingsStore{settings: &store.TenantSettings{TenantID: "t1"}},
		&fakeRecipientStore{subscribedMembers: []string{"a@example.com", "b@example.com", "c@example.com"}},
		sentLog,
		&fakePrewarmer{},
		sender,
	)

	processed, success, failed, skipped, err := d.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobEmailBatch, TemplateID: "tmpl-1", TenantID: "t1", RecipientType: "SUBSCRIBED_MEMBERS",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 3 || success != 3 || failed != 0 || skipped != 0 {
		t.Errorf("got (%d, %d, %d, %d), want (3, 3, 0, 0)", processed, success, failed, skipped)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(sender.sent))
	}
	for _, row := range sentLog.rows {
		if row.Status != store.SentStatusSent {
			t.Errorf("sent log row status = %v, want SENT", row.Status)
		}
	}
}

func TestRun_SendFailureCountsChunkAsFailedAndLogsError(t *testing.T) {
	sender := &fakeEmailSender{err: errors.New("ses throttled: rate exceeded")}
	sentLog := &fakeSentLogStore{}
	d := newTestDispatcherWithSender(
		&fakeTemplateStore{tmpl: &store.EmailTemplate{ID: "tmpl-1", Subject: "hi", FromEmail: "noreply@events.example"}},
		&fakeTenantSettingsStore{settings: &store.TenantSettings{TenantID: "t1"}},
		&fakeRecipientStore{subscribedMembers: []string{"a@example.com", "b@example.com"}},
		sentLog,
		&fakePrewarmer{},
		sender,
	)

	processed, success, failed, _, err := d.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobEmailBatch, TemplateID: "tmpl-1", TenantID: "t1", RecipientType: "SUBSCRIBED_MEMBERS",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 2 || success != 0 || failed != 2 {
		t.Errorf("got (%d, %d, %d), want (2, 0, 2)", processed, success, failed)
	}
	for _, row := range sentLog.rows {
		if row.Status != store.SentStatusFailed || row.ErrorMessage == "" {
			t.Errorf("sent log row = %+v, want status FAILED with an error message", row)
		}
	}
}
