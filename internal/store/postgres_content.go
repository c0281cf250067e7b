package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresTemplateStore implements TemplateStore.
type PostgresTemplateStore struct {
	db *sql.DB
}

func NewPostgresTemplateStore(db *sql.DB) *PostgresTemplateStore {
	return &PostgresTemplateStore{db: db}
}

func (s *PostgresTemplateStore) GetTemplate(ctx context.Context, templateID, tenantID string) (*EmailTemplate, error) {
	var t EmailTemplate
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, COALESCE(event_id, ''), subject, from_email, body_html,
			COALESCE(header_image_url, ''), COALESCE(footer_html, ''),
			COALESCE(footer_image_url, ''), COALESCE(promotion_code, ''),
			COALESCE(discount_code_id, '')
		FROM promotion_email_templates
		WHERE id = $1 AND tenant_id = $2`,
		templateID, tenantID,
	).Scan(
		&t.ID, &t.TenantID, &t.EventID, &t.Subject, &t.FromEmail, &t.BodyHTML,
		&t.HeaderImageURL, &t.FooterHTML, &t.FooterImageURL, &t.PromotionCode, &t.DiscountCodeID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", templateID, err)
	}
	return &t, nil
}

// PostgresTenantSettingsStore implements TenantSettingsStore.
type PostgresTenantSettingsStore struct {
	db *sql.DB
}

func NewPostgresTenantSettingsStore(db *sql.DB) *PostgresTenantSettingsStore {
	return &PostgresTenantSettingsStore{db: db}
}

func (s *PostgresTenantSettingsStore) GetTenantSettings(ctx context.Context, tenantID string) (*TenantSettings, error) {
	var t TenantSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, COALESCE(email_header_image_url, ''),
			COALESCE(email_footer_html_url, ''), COALESCE(logo_image_url, '')
		FROM tenant_settings
		WHERE tenant_id = $1`,
		tenantID,
	).Scan(&t.TenantID, &t.EmailHeaderImageURL, &t.EmailFooterHTMLURL, &t.LogoImageURL)
	if err == sql.ErrNoRows {
		return &TenantSettings{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant settings %s: %w", tenantID, err)
	}
	return &t, nil
}

// PostgresRecipientStore implements RecipientStore.
type PostgresRecipientStore struct {
	db *sql.DB
}

func NewPostgresRecipientStore(db *sql.DB) *PostgresRecipientStore {
	return &PostgresRecipientStore{db: db}
}

func (s *PostgresRecipientStore) EventAttendeeEmails(ctx context.Context, tenantID, eventID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT up.email
		FROM event_attendees ea
		JOIN user_profiles up ON up.id = ea.user_profile_id
		WHERE ea.tenant_id = $1 AND ea.event_id = $2
			AND ea.status = 'CONFIRMED' AND up.email <> ''`,
		tenantID, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("event attendee emails: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

func (s *PostgresRecipientStore) SubscribedMemberEmails(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT up.email
		FROM membership_subscriptions ms
		JOIN user_profiles up ON up.id = ms.user_profile_id
		WHERE ms.tenant_id = $1 AND up.email_opt_in = true AND up.email <> ''`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("subscribed member emails: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

func scanEmails(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

// PostgresSentLogStore implements SentLogStore.
type PostgresSentLogStore struct {
	db *sql.DB
}

func NewPostgresSentLogStore(db *sql.DB) *PostgresSentLogStore {
	return &PostgresSentLogStore{db: db}
}

func (s *PostgresSentLogStore) AppendSentLog(ctx context.Context, row SentLogRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promotion_email_sent_log (
			tenant_id, template_id, event_id, recipient_email, subject,
			sent_at, is_test_email, email_status, error_message, sent_by_id
		) VALUES ($1, $2, $3, $4, $5, now(), $6, $7, $8, $9)`,
		row.TenantID, nullIfEmpty(row.TemplateID), nullIfEmpty(row.EventID),
		row.RecipientEmail, row.Subject, row.IsTestEmail, row.Status,
		nullIfEmpty(row.ErrorMessage), nullIfEmpty(row.SentByID),
	)
	if err != nil {
		return fmt.Errorf("append sent log: %w", err)
	}
	return nil
}

// PostgresManualPaymentSummaryStore implements ManualPaymentSummaryStore.
type PostgresManualPaymentSummaryStore struct {
	db *sql.DB
}

func NewPostgresManualPaymentSummaryStore(db *sql.DB) *PostgresManualPaymentSummaryStore {
	return &PostgresManualPaymentSummaryStore{db: db}
}

func (s *PostgresManualPaymentSummaryStore) AppendManualPaymentSummary(ctx context.Context, tenantID string, periodStart, periodEnd time.Time, totalGross, totalFees, totalTax, totalNet float64, transactionCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manual_payment_summary (
			tenant_id, period_start, period_end, total_gross, total_fees,
			total_tax, total_net, transaction_count, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		tenantID, periodStart, periodEnd, totalGross, totalFees, totalTax, totalNet, transactionCount,
	)
	if err != nil {
		return fmt.Errorf("append manual payment summary: %w", err)
	}
	return nil
}
