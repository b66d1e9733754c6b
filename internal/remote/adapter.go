package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"qservice/api/internal/report"
)

// Adapter mirrors the local collection to a remote table. The disabled
// variant turns every call into a no-op.
type Adapter interface {
	Enabled() bool
	Hydrate(ctx context.Context) ([]report.Report, error)
	Upsert(ctx context.Context, r report.Report) error
	Ping(ctx context.Context) error
}

// Disabled is used when no database is configured.
func Disabled() Adapter { return disabled{} }

type disabled struct{}

func (disabled) Enabled() bool { return false }
func (disabled) Hydrate(context.Context) ([]report.Report, error) { return nil, nil }
func (disabled) Upsert(context.Context, report.Report) error { return nil }
func (disabled) Ping(context.Context) error { return nil }

type Postgres struct {
	db *sql.DB
}

func New(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Enabled() bool { return true }

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Hydrate returns every stored report, newest first. Rows whose payload no
// longer decodes are skipped.
func (p *Postgres) Hydrate(ctx context.Context) ([]report.Report, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, report_data FROM damage_reports ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query damage_reports: %w", err)
	}
	defer rows.Close()

	var out []report.Report
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan damage_reports: %w", err)
		}
		r, err := decodePayload(id, payload)
		if err != nil {
			log.Printf("remote: skip report %s: %v", id, err)
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate damage_reports: %w", err)
	}
	return out, nil
}

// Upsert writes the flat columns and the full payload. Last write wins.
func (p *Postgres) Upsert(ctx context.Context, r report.Report) error {
	row, err := toRow(r)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO damage_reports (id, project_title, client, address, status, assigned_to, date, drying_started, report_data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			project_title = EXCLUDED.project_title,
			client = EXCLUDED.client,
			address = EXCLUDED.address,
			status = EXCLUDED.status,
			assigned_to = EXCLUDED.assigned_to,
			date = EXCLUDED.date,
			drying_started = EXCLUDED.drying_started,
			report_data = EXCLUDED.report_data,
			updated_at = NOW()
	`, row.ID, row.ProjectTitle, row.Client, row.Address, row.Status, row.AssignedTo, row.Date, row.DryingStarted, row.Payload)
	if err != nil {
		return fmt.Errorf("upsert report %s: %w", r.ID, err)
	}
	return nil
}

type reportRow struct {
	ID            string
	ProjectTitle  string
	Client        string
	Address       string
	Status        string
	AssignedTo    string
	Date          string
	DryingStarted string
	Payload       []byte
}

func toRow(r report.Report) (reportRow, error) {
	if r.ID == "" {
		return reportRow{}, fmt.Errorf("report without id")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return reportRow{}, fmt.Errorf("encode report %s: %w", r.ID, err)
	}
	address := r.Address
	if address == "" {
		address = report.JoinAddress(r.Street, r.Zip, r.City)
	}
	return reportRow{
		ID:            r.ID,
		ProjectTitle:  r.ProjectTitle,
		Client:        r.Client,
		Address:       address,
		Status:        string(r.Status),
		AssignedTo:    r.AssignedTo,
		Date:          r.Date,
		DryingStarted: r.DryingStarted,
		Payload:       payload,
	}, nil
}

func decodePayload(id string, payload []byte) (report.Report, error) {
	var r report.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return report.Report{}, err
	}
	if r.ID == "" {
		r.ID = id
	}
	return r, nil
}
