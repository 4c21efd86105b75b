package storage

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Diagnostic struct {
	ID            int64
	Kind          string
	Operation     string
	Cause         string
	StatusCode    int64
	TransactionID string
	SearchTerm    string
	RequestID     string
	OccurredAt    time.Time
	CreatedAt     time.Time
}

const createDiagnostic = `-- name: CreateDiagnostic :one
INSERT INTO diagnostics (kind, operation, cause, status_code, transaction_id, search_term, request_id, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id, kind, operation, cause, status_code, transaction_id, search_term, request_id, occurred_at, created_at
`

type CreateDiagnosticParams struct {
	Kind          string
	Operation     string
	Cause         string
	StatusCode    int64
	TransactionID string
	SearchTerm    string
	RequestID     string
	OccurredAt    time.Time
}

func (q *Queries) CreateDiagnostic(ctx context.Context, arg CreateDiagnosticParams) (Diagnostic, error) {
	row := q.db.QueryRowContext(ctx, createDiagnostic,
		arg.Kind,
		arg.Operation,
		arg.Cause,
		arg.StatusCode,
		arg.TransactionID,
		arg.SearchTerm,
		arg.RequestID,
		arg.OccurredAt,
	)
	var i Diagnostic
	err := row.Scan(
		&i.ID,
		&i.Kind,
		&i.Operation,
		&i.Cause,
		&i.StatusCode,
		&i.TransactionID,
		&i.SearchTerm,
		&i.RequestID,
		&i.OccurredAt,
		&i.CreatedAt,
	)
	return i, err
}

const listRecentDiagnostics = `-- name: ListRecentDiagnostics :many
SELECT id, kind, operation, cause, status_code, transaction_id, search_term, request_id, occurred_at, created_at
FROM diagnostics
ORDER BY occurred_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListRecentDiagnostics(ctx context.Context, limit int64) ([]Diagnostic, error) {
	rows, err := q.db.QueryContext(ctx, listRecentDiagnostics, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Diagnostic
	for rows.Next() {
		var i Diagnostic
		if err := rows.Scan(
			&i.ID,
			&i.Kind,
			&i.Operation,
			&i.Cause,
			&i.StatusCode,
			&i.TransactionID,
			&i.SearchTerm,
			&i.RequestID,
			&i.OccurredAt,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countDiagnosticsByOperation = `-- name: CountDiagnosticsByOperation :many
SELECT operation, COUNT(*) AS total
FROM diagnostics
GROUP BY operation
ORDER BY operation
`

type CountDiagnosticsByOperationRow struct {
	Operation string
	Total     int64
}

func (q *Queries) CountDiagnosticsByOperation(ctx context.Context) ([]CountDiagnosticsByOperationRow, error) {
	rows, err := q.db.QueryContext(ctx, countDiagnosticsByOperation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountDiagnosticsByOperationRow
	for rows.Next() {
		var i CountDiagnosticsByOperationRow
		if err := rows.Scan(&i.Operation, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteDiagnosticsBefore = `-- name: DeleteDiagnosticsBefore :execrows
DELETE FROM diagnostics WHERE occurred_at < ?
`

func (q *Queries) DeleteDiagnosticsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDiagnosticsBefore, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
