package importlogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convites-app/backend/internal/models"
)

// ErrNotFound is returned when no import log matches.
var ErrNotFound = errors.New("import log not found")

const logColumns = `id, event_id, user_id, total_registros, registros_importados, registros_falha, erros, arquivo_key, created_at`

// Repository handles import_logs persistence. Rows are only ever inserted.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an import logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record appends one import attempt and fills in its ID and timestamp.
func (r *Repository) Record(ctx context.Context, l *models.ImportLog) error {
	if l.TotalRegistros != l.RegistrosImportados+l.RegistrosFalha {
		return fmt.Errorf("import log counts do not add up: total=%d imported=%d failed=%d",
			l.TotalRegistros, l.RegistrosImportados, l.RegistrosFalha)
	}
	erros := l.Erros
	if erros == nil {
		erros = []models.ImportFailure{}
	}
	detail, err := json.Marshal(erros)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}
	const q = `INSERT INTO import_logs (id, event_id, user_id, total_registros, registros_importados, registros_falha, erros, arquivo_key)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.EventID, l.UserID, l.TotalRegistros, l.RegistrosImportados, l.RegistrosFalha, detail, l.ArquivoKey).
		Scan(&l.ID, &l.CreatedAt)
}

// ListByEvent returns import attempts for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.ImportLog, error) {
	const q = `SELECT ` + logColumns + `
		FROM import_logs
		WHERE event_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.ImportLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// GetByID returns one import attempt.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ImportLog, error) {
	l, err := scanLog(r.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM import_logs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

func scanLog(row pgx.Row) (*models.ImportLog, error) {
	var (
		l      models.ImportLog
		detail []byte
		key    *string
	)
	if err := row.Scan(&l.ID, &l.EventID, &l.UserID, &l.TotalRegistros, &l.RegistrosImportados, &l.RegistrosFalha, &detail, &key, &l.CreatedAt); err != nil {
		return nil, err
	}
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &l.Erros); err != nil {
			return nil, fmt.Errorf("decode failures of import %s: %w", l.ID, err)
		}
	}
	if key != nil {
		l.ArquivoKey = *key
	}
	return &l, nil
}
