package convites

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/pgutils"
)

var (
	// ErrNotFound is returned when no convite matches.
	ErrNotFound = errors.New("convite not found")
	// ErrDuplicatePhone is returned when the event already has a guest with the phone.
	ErrDuplicatePhone = errors.New("phone already invited to this event")
	// ErrMissingReference is returned when the event or the responsible user vanished before the insert.
	ErrMissingReference = errors.New("event or responsible user does not exist")
)

// insertChunk bounds the rows per INSERT statement so parameters stay under the protocol limit.
const insertChunk = 1000

const conviteColumns = `id, event_id, nome_convidado, telefone, observacao, status, resposta,
	enviado_em, respondido_em, responsavel_id, created_at, updated_at`

// Repository handles convite persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a convite repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanConvite(row pgx.Row) (*models.Convite, error) {
	var c models.Convite
	var status string
	err := row.Scan(&c.ID, &c.EventID, &c.NomeConvidado, &c.Telefone, &c.Observacao, &status, &c.Resposta,
		&c.EnviadoEm, &c.RespondidoEm, &c.ResponsavelID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = models.ConviteStatus(status)
	return &c, nil
}

// InsertConvites writes all records in one transaction: either every row lands or none does.
// A unique violation on (event_id, telefone) is returned unchanged so callers can classify it.
func (r *Repository) InsertConvites(ctx context.Context, records []models.Convite) ([]models.Convite, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created := make([]models.Convite, 0, len(records))
	for start := 0; start < len(records); start += insertChunk {
		end := start + insertChunk
		if end > len(records) {
			end = len(records)
		}
		q, args := buildInsert(records[start:end])
		rows, err := tx.Query(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			c, err := scanConvite(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			created = append(created, *c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func buildInsert(records []models.Convite) (string, []interface{}) {
	const perRow = 6
	var b strings.Builder
	b.WriteString(`INSERT INTO convites (event_id, nome_convidado, telefone, observacao, status, responsavel_id) VALUES `)
	args := make([]interface{}, 0, len(records)*perRow)
	for i, c := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * perRow
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		status := c.Status
		if status == "" {
			status = models.ConvitePending
		}
		args = append(args, c.EventID, c.NomeConvidado, c.Telefone, c.Observacao, string(status), c.ResponsavelID)
	}
	b.WriteString(` RETURNING ` + conviteColumns)
	return b.String(), args
}

// ExistingPhones returns which of phones already belong to a convite of the event.
func (r *Repository) ExistingPhones(ctx context.Context, eventID uuid.UUID, phones []string) ([]string, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT telefone FROM convites WHERE event_id = $1 AND telefone = ANY($2)`, eventID, phones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var found []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		found = append(found, p)
	}
	return found, rows.Err()
}

// Create inserts a single convite.
func (r *Repository) Create(ctx context.Context, c *models.Convite) error {
	created, err := r.InsertConvites(ctx, []models.Convite{*c})
	if err != nil {
		return createError(err)
	}
	*c = created[0]
	return nil
}

func createError(err error) error {
	switch {
	case pgutils.IsUniqueViolation(err):
		return ErrDuplicatePhone
	case pgutils.IsForeignKeyViolation(err):
		return fmt.Errorf("%w (%s)", ErrMissingReference, pgutils.ConstraintName(err))
	}
	return err
}

// GetByID returns a convite by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Convite, error) {
	c, err := scanConvite(r.pool.QueryRow(ctx, `SELECT `+conviteColumns+` FROM convites WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListByEvent returns the event's convites ordered by guest name. An empty status lists all.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID, status models.ConviteStatus) ([]models.Convite, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+conviteColumns+` FROM convites
		WHERE event_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY nome_convidado, created_at`, eventID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Convite{}
	for rows.Next() {
		c, err := scanConvite(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// Stats counts the event's convites per status.
func (r *Repository) Stats(ctx context.Context, eventID uuid.UUID) (*models.ConviteStats, error) {
	const q = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE status = 'confirmed'),
		COUNT(*) FILTER (WHERE status = 'declined'),
		COUNT(*) FILTER (WHERE status = 'wants_to_talk'),
		COUNT(enviado_em),
		COUNT(respondido_em)
		FROM convites WHERE event_id = $1`
	var s models.ConviteStats
	err := r.pool.QueryRow(ctx, q, eventID).Scan(&s.Total, &s.Pending, &s.Confirmed, &s.Declined, &s.WantsToTalk, &s.Sent, &s.Responded)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Respond stores a guest's answer.
func (r *Repository) Respond(ctx context.Context, id uuid.UUID, status models.ConviteStatus, resposta *string) (*models.Convite, error) {
	c, err := scanConvite(r.pool.QueryRow(ctx, `UPDATE convites
		SET status = $2, resposta = $3, respondido_em = NOW(), updated_at = NOW()
		WHERE id = $1 RETURNING `+conviteColumns, id, string(status), resposta))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// MarkSent stamps the delivery time of the invitation.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) (*models.Convite, error) {
	c, err := scanConvite(r.pool.QueryRow(ctx, `UPDATE convites
		SET enviado_em = NOW(), updated_at = NOW()
		WHERE id = $1 RETURNING `+conviteColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListUnsentIDs returns the convites of the event that were never delivered.
func (r *Repository) ListUnsentIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM convites WHERE event_id = $1 AND enviado_em IS NULL ORDER BY nome_convidado`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
