package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/caldershaw/ragd/internal/model"
	"github.com/caldershaw/ragd/internal/pkg/dbutil"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

type ConversationRecord struct {
	ID    string
	Title string
	Ctime int64
	Mtime int64
}

func (r *ConversationRepo) Create(ctx context.Context, id, title string) error {
	now := time.Now().UnixMilli()
	data := map[string]interface{}{
		"id":    id,
		"title": title,
		"ctime": now,
		"mtime": now,
	}
	sqlStr, args, err := builder.BuildInsert("conversations", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if dbutil.IsConflict(err) {
		return nil
	}
	return err
}

func (r *ConversationRepo) Get(ctx context.Context, id string) (*ConversationRecord, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("conversations", where, []string{"id", "title", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var rec ConversationRecord
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Ctime, &rec.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// AppendTurn inserts the turn with the next sequence number and bumps the
// conversation mtime, in one transaction. The (conversation_id, seq) unique
// constraint is the backstop for the per-conversation serialization done by
// the store layer.
func (r *ConversationRepo) AppendTurn(ctx context.Context, conversationID string, turn *model.ConversationTurn) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var sourcesBlob []byte
	if len(turn.Sources) > 0 {
		sourcesBlob, err = json.Marshal(turn.Sources)
		if err != nil {
			return err
		}
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	const insertQuery = `
		INSERT INTO conversation_turns (conversation_id, seq, role, content, sources, ctime)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4::jsonb, $5
		FROM conversation_turns WHERE conversation_id = $1
	`
	if _, err := tx.ExecContext(ctx, insertQuery,
		conversationID, turn.Role, turn.Content, nullableJSON(sourcesBlob), createdAt.UnixMilli()); err != nil {
		return err
	}
	const touchQuery = `UPDATE conversations SET mtime = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, touchQuery, time.Now().UnixMilli(), conversationID); err != nil {
		return err
	}
	return tx.Commit()
}

// History returns the most recent limit turns, oldest first. limit <= 0
// returns all turns.
func (r *ConversationRepo) History(ctx context.Context, conversationID string, limit int) ([]model.ConversationTurn, error) {
	query := `
		SELECT role, content, sources, ctime
		FROM conversation_turns
		WHERE conversation_id = $1
		ORDER BY seq DESC
	`
	args := []interface{}{conversationID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var turns []model.ConversationTurn
	for rows.Next() {
		var turn model.ConversationTurn
		var sourcesBlob []byte
		var ctime int64
		if err := rows.Scan(&turn.Role, &turn.Content, &sourcesBlob, &ctime); err != nil {
			return nil, err
		}
		if len(sourcesBlob) > 0 {
			if err := json.Unmarshal(sourcesBlob, &turn.Sources); err != nil {
				return nil, err
			}
		}
		turn.CreatedAt = time.UnixMilli(ctime)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// rows arrive newest-first; flip into chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (r *ConversationRepo) List(ctx context.Context) ([]model.ConversationSummary, error) {
	const query = `
		SELECT c.id, c.title, c.mtime, COUNT(t.id)
		FROM conversations c
		LEFT JOIN conversation_turns t ON t.conversation_id = c.id
		GROUP BY c.id, c.title, c.mtime
		ORDER BY c.mtime DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var summaries []model.ConversationSummary
	for rows.Next() {
		var s model.ConversationSummary
		var mtime int64
		if err := rows.Scan(&s.ID, &s.Title, &mtime, &s.TurnCount); err != nil {
			return nil, err
		}
		s.LastUpdated = time.UnixMilli(mtime)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *ConversationRepo) SetTitleIfEmpty(ctx context.Context, id, title string) error {
	const query = `UPDATE conversations SET title = $1 WHERE id = $2 AND title = ''`
	_, err := r.db.ExecContext(ctx, query, title, id)
	return err
}

func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_turns WHERE conversation_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ConversationRepo) DeleteAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_turns`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return err
	}
	return tx.Commit()
}

// nullableJSON passes jsonb params as text so the driver does not send them
// as bytea.
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
