package campaigns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"propdial/internal/calls"
	"propdial/pkg/utils"
)

// PostgresStore implements Store over the tables created by internal/migrations.
//
// The call queue relies on a partial unique index:
// UNIQUE (campaign_id, lead_id) WHERE status = 'queued'
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	const q = `
SELECT id, name, COALESCE(time_zone, '')
FROM organizations
WHERE id = $1
`
	var o Organization
	if err := s.db.QueryRowContext(ctx, q, orgID).Scan(&o.ID, &o.Name, &o.TimeZone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return o, nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	const q = `
SELECT id, organization_id, project_id, name, status,
       COALESCE(to_char(start_date, 'YYYY-MM-DD'), ''),
       COALESCE(to_char(end_date, 'YYYY-MM-DD'), ''),
       COALESCE(to_char(time_start, 'HH24:MI'), ''),
       COALESCE(to_char(time_end, 'HH24:MI'), ''),
       COALESCE(ai_script, ''), COALESCE(voice, ''),
       total_calls, transferred_calls, conversion_rate, updated_at
FROM campaigns
WHERE id = $1
`
	var c Campaign
	if err := s.db.QueryRowContext(ctx, q, campaignID).Scan(
		&c.ID,
		&c.OrganizationID,
		&c.ProjectID,
		&c.Name,
		&c.Status,
		&c.StartDate,
		&c.EndDate,
		&c.TimeStart,
		&c.TimeEnd,
		&c.AIScript,
		&c.Voice,
		&c.TotalCalls,
		&c.TransferredCalls,
		&c.ConversionRate,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	return c, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (Lead, error) {
	const q = `
SELECT id, organization_id, project_id, name, phone, COALESCE(email, ''),
       last_contacted_at, transferred_to_human
FROM leads
WHERE id = $1
`
	l, err := scanLead(s.db.QueryRowContext(ctx, q, leadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, orgID, projectID string, limit int) ([]Lead, error) {
	const q = `
SELECT id, organization_id, project_id, name, phone, COALESCE(email, ''),
       last_contacted_at, transferred_to_human
FROM leads
WHERE organization_id = $1 AND project_id = $2
ORDER BY created_at, id
LIMIT $3
`
	rows, err := s.db.QueryContext(ctx, q, orgID, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(r rowScanner) (Lead, error) {
	var l Lead
	var contacted sql.NullTime
	if err := r.Scan(
		&l.ID,
		&l.OrganizationID,
		&l.ProjectID,
		&l.Name,
		&l.Phone,
		&l.Email,
		&contacted,
		&l.TransferredToHuman,
	); err != nil {
		return Lead{}, err
	}
	if contacted.Valid {
		t := contacted.Time
		l.LastContactedAt = &t
	}
	return l, nil
}

func (s *PostgresStore) UpdateLeadPhone(ctx context.Context, leadID, phone string) error {
	const q = `UPDATE leads SET phone = $2, updated_at = now() WHERE id = $1`
	return expectOne(s.db.ExecContext(ctx, q, leadID, phone))
}

func (s *PostgresStore) MarkLeadContacted(ctx context.Context, leadID string, at time.Time, transferred bool) error {
	const q = `
UPDATE leads
SET last_contacted_at = $2,
    transferred_to_human = transferred_to_human OR $3,
    updated_at = now()
WHERE id = $1
`
	return expectOne(s.db.ExecContext(ctx, q, leadID, at, transferred))
}

func (s *PostgresStore) QueuedLeadIDs(ctx context.Context, campaignID string) (map[string]struct{}, error) {
	const q = `SELECT lead_id FROM call_queue WHERE campaign_id = $1 AND status = 'queued'`
	return s.idSet(ctx, q, campaignID)
}

func (s *PostgresStore) AttemptedLeadIDs(ctx context.Context, campaignID string, statuses []calls.Status) (map[string]struct{}, error) {
	if len(statuses) == 0 {
		return map[string]struct{}{}, nil
	}
	args := []any{campaignID}
	ph := make([]string, 0, len(statuses))
	for _, st := range statuses {
		args = append(args, string(st))
		ph = append(ph, fmt.Sprintf("$%d", len(args)))
	}
	q := `SELECT DISTINCT lead_id FROM call_logs WHERE campaign_id = $1 AND call_status IN (` + strings.Join(ph, ",") + `)`
	return s.idSet(ctx, q, args...)
}

func (s *PostgresStore) idSet(ctx context.Context, q string, args ...any) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *PostgresStore) EnqueueCalls(ctx context.Context, entries []calls.QueueEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO call_queue (id, organization_id, campaign_id, lead_id, phone, status, created_at) VALUES `)
	args := make([]any, 0, len(entries)*7)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		status := e.Status
		if status == "" {
			status = calls.QueueStatusQueued
		}
		args = append(args, e.ID, e.OrganizationID, e.CampaignID, e.LeadID, e.Phone, string(status), e.CreatedAt)
	}
	b.WriteString(` ON CONFLICT (campaign_id, lead_id) WHERE status = 'queued' DO NOTHING`)

	var inserted int
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = int(n)
		return nil
	})
	return inserted, err
}

func (s *PostgresStore) PendingQueueCount(ctx context.Context, campaignID string) (int, error) {
	const q = `SELECT count(*) FROM call_queue WHERE campaign_id = $1 AND status <> 'done'`
	var n int
	if err := s.db.QueryRowContext(ctx, q, campaignID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) SetCampaignStatus(ctx context.Context, campaignID string, status Status) error {
	const q = `UPDATE campaigns SET status = $2, updated_at = now() WHERE id = $1`
	return expectOne(s.db.ExecContext(ctx, q, campaignID, string(status)))
}

func (s *PostgresStore) UpdateCampaignCounters(ctx context.Context, campaignID string, c Counters) error {
	const q = `
UPDATE campaigns
SET total_calls = $2, transferred_calls = $3, conversion_rate = $4, updated_at = now()
WHERE id = $1
`
	return expectOne(s.db.ExecContext(ctx, q, campaignID, c.TotalCalls, c.TransferredCalls, c.ConversionRate))
}

func (s *PostgresStore) CampaignCallStats(ctx context.Context, campaignID string) (Counters, error) {
	const q = `
SELECT count(*),
       count(*) FILTER (WHERE transferred OR call_status = 'transferred')
FROM call_logs
WHERE campaign_id = $1 AND call_status NOT IN ('in_progress', 'ringing')
`
	var c Counters
	if err := s.db.QueryRowContext(ctx, q, campaignID).Scan(&c.TotalCalls, &c.TransferredCalls); err != nil {
		return Counters{}, err
	}
	c.ConversionRate = conversionRate(c.TotalCalls, c.TransferredCalls)
	return c, nil
}

func (s *PostgresStore) CreateCallLog(ctx context.Context, l calls.Log) error {
	const q = `
INSERT INTO call_logs (
  id, organization_id, campaign_id, lead_id, call_sid, call_status, transferred,
  duration, conversation_transcript, transferred_to_user_id, transferred_to_phone,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
`
	_, err := s.db.ExecContext(ctx, q,
		l.ID,
		l.OrganizationID,
		l.CampaignID,
		l.LeadID,
		l.CallSID,
		string(l.Status),
		l.Transferred,
		l.DurationSeconds,
		l.Transcript,
		nullable(l.TransferredToUserID),
		nullable(l.TransferredToPhone),
		l.CreatedAt,
		l.UpdatedAt,
	)
	return err
}

const callLogColumns = `
id, organization_id, campaign_id, lead_id, call_sid, call_status, transferred,
duration, COALESCE(conversation_transcript, ''), COALESCE(transferred_to_user_id, ''),
COALESCE(transferred_to_phone, ''), created_at, updated_at
`

func scanCallLog(r rowScanner) (calls.Log, error) {
	var l calls.Log
	err := r.Scan(
		&l.ID,
		&l.OrganizationID,
		&l.CampaignID,
		&l.LeadID,
		&l.CallSID,
		&l.Status,
		&l.Transferred,
		&l.DurationSeconds,
		&l.Transcript,
		&l.TransferredToUserID,
		&l.TransferredToPhone,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

func (s *PostgresStore) GetCallLogBySID(ctx context.Context, callSID string) (calls.Log, error) {
	q := `SELECT ` + callLogColumns + ` FROM call_logs WHERE call_sid = $1 ORDER BY created_at DESC LIMIT 1`
	l, err := scanCallLog(s.db.QueryRowContext(ctx, q, callSID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calls.Log{}, ErrNotFound
		}
		return calls.Log{}, err
	}
	return l, nil
}

func (s *PostgresStore) UpdateCallLog(ctx context.Context, callSID string, u CallLogUpdate) (calls.Log, error) {
	q := `
UPDATE call_logs
SET call_status = COALESCE(NULLIF($2, ''), call_status),
    conversation_transcript = COALESCE($3, conversation_transcript),
    duration = COALESCE($4, duration),
    transferred = COALESCE($5, transferred),
    transferred_to_user_id = COALESCE(NULLIF($6, ''), transferred_to_user_id),
    transferred_to_phone = COALESCE(NULLIF($7, ''), transferred_to_phone),
    updated_at = now()
WHERE call_sid = $1
RETURNING ` + callLogColumns

	var transcript, duration, transferred any
	if u.Transcript != nil {
		transcript = *u.Transcript
	}
	if u.DurationSeconds != nil {
		duration = *u.DurationSeconds
	}
	if u.Transferred != nil {
		transferred = *u.Transferred
	}

	l, err := scanCallLog(s.db.QueryRowContext(ctx, q,
		callSID,
		string(u.Status),
		transcript,
		duration,
		transferred,
		u.TransferredToUserID,
		u.TransferredToPhone,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calls.Log{}, ErrNotFound
		}
		return calls.Log{}, err
	}
	return l, nil
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
