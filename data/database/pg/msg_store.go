package pg

import (
	"context"
	"time"

	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	sender_id   TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	text        TEXT NOT NULL DEFAULT '',
	image       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_pair_created
	ON messages (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id), created_at DESC);
`

const insertSQL = `
INSERT INTO messages (id, sender_id, receiver_id, text, image, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

// newest first; the caller reverses
const listSQL = `
SELECT id, sender_id, receiver_id, text, image, created_at, updated_at
FROM messages
WHERE LEAST(sender_id, receiver_id) = $1 AND GREATEST(sender_id, receiver_id) = $2
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC, id DESC
LIMIT $4`

type Config struct {
	DSN      string
	MaxConns int32
}

// MessageStore keeps messages in PostgreSQL.
type MessageStore struct {
	pool *pgxpool.Pool
}

// Open connects, pings and migrates the schema.
func Open(ctx context.Context, cfg Config) (*MessageStore, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("parse postgres dsn", "err", err.Error())
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("connect postgres", "err", err.Error())
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.ErrStorage.WrapMsg("ping postgres", "err", err.Error())
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errs.ErrStorage.WrapMsg("migrate", "err", err.Error())
	}
	return &MessageStore{pool: pool}, nil
}

func (s *MessageStore) Append(ctx context.Context, m *model.Message) error {
	_, err := s.pool.Exec(ctx, insertSQL, m.ID, m.SenderID, m.ReceiverID, m.Text, m.Image, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return errs.ErrStorage.WrapMsg("insert message", "id", m.ID, "err", err.Error())
	}
	return nil
}

func (s *MessageStore) ListBetween(ctx context.Context, a, b string, opts model.ListOptions) ([]*model.Message, error) {
	opts = opts.Norm()
	lo, hi := model.PairKey(a, b)
	var before *time.Time
	if !opts.Before.IsZero() {
		before = &opts.Before
	}

	rows, err := s.pool.Query(ctx, listSQL, lo, hi, before, opts.Limit)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("query messages", "err", err.Error())
	}
	out, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("scan messages", "err", err.Error())
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if out == nil {
		out = []*model.Message{}
	}
	return out, nil
}

func scanMessage(row pgx.CollectableRow) (*model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func (s *MessageStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}
