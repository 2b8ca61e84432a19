package reporting

import (
	"context"
	"database/sql"
	"time"

	"propdial/internal/calls"
)

// PostgresRepo reads call_logs for reports.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCallLogs(ctx context.Context, orgID, campaignID string, from, to time.Time) ([]calls.Log, error) {
	const q = `
SELECT id, organization_id, campaign_id, lead_id, call_sid, call_status, transferred,
       duration, COALESCE(conversation_transcript, ''), created_at, updated_at
FROM call_logs
WHERE organization_id = $1 AND campaign_id = $2
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at < $4)
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, orgID, campaignID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.Log
	for rows.Next() {
		var l calls.Log
		if err := rows.Scan(
			&l.ID,
			&l.OrganizationID,
			&l.CampaignID,
			&l.LeadID,
			&l.CallSID,
			&l.Status,
			&l.Transferred,
			&l.DurationSeconds,
			&l.Transcript,
			&l.CreatedAt,
			&l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
