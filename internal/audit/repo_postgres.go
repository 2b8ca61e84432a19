package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo writes to the audit_events table (INSERT-only).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, organization_id, type, actor_user_id, actor_role, ip_address,
  campaign_id, lead_id, call_sid, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.OrganizationID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.CampaignID,
		e.LeadID,
		e.CallSID,
		e.Message,
		nullableJSON(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func nullableJSON(s string) any {
	if s == "" {
		return nil
	}
	return s
}
