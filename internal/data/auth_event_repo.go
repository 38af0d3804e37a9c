package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/mktdata/admin-console/internal/data/pgxutil"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	apperrors "github.com/mktdata/admin-console/internal/errors"
	"github.com/mktdata/admin-console/internal/ports"
)

var _ ports.AuthEventRepository = (*AuthEventRepo)(nil)

const (
	authEventColumns     = `id, user_id, event_type, action, metadata, created_at`
	defaultAuthEventList = 100
	maxAuthEventList     = 1000
)

// ErrAuthEventIDRequired is returned when inserting an event without an id.
var ErrAuthEventIDRequired = errors.New("auth event id is required")

// AuthEventRepo stores console audit events in PostgreSQL.
type AuthEventRepo struct {
	DB    *sql.DB
	clock clockwork.Clock
}

// NewAuthEventRepo creates a new AuthEventRepo with the given database connection.
func NewAuthEventRepo(db *sql.DB) *AuthEventRepo {
	return NewAuthEventRepoWithClock(db, clockwork.NewRealClock())
}

// NewAuthEventRepoWithClock is NewAuthEventRepo with an injected clock for events without a timestamp.
func NewAuthEventRepoWithClock(db *sql.DB, clock clockwork.Clock) *AuthEventRepo {
	return &AuthEventRepo{DB: db, clock: clock}
}

// Insert writes one event. Empty UserID is stored as NULL.
func (r *AuthEventRepo) Insert(ctx context.Context, ev domainauth.Event) error {
	if strings.TrimSpace(ev.ID) == "" {
		return ErrAuthEventIDRequired
	}
	if !ev.Type.Valid() {
		return apperrors.ValidationField("event_type", fmt.Sprintf("unknown event type %q", ev.Type))
	}

	md := ev.Metadata
	if md == nil {
		md = map[string]string{}
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	at := ev.OccurredAt
	if at.IsZero() {
		at = r.clock.Now()
	}

	var userID *string
	if ev.UserID != "" {
		userID = &ev.UserID
	}

	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, `
			INSERT INTO auth_events (`+authEventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ev.ID, userID, string(ev.Type), ev.Action, mdJSON, at.UTC())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert auth event: %w", apperrors.MapDBError(err))
	}
	return nil
}

// List returns events newest first, filtered by q. Limit defaults to 100 and is capped at 1000.
func (r *AuthEventRepo) List(ctx context.Context, q ports.AuthEventQuery) ([]domainauth.Event, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 4)
	next := func() int { return len(args) + 1 }
	if q.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", next()))
		args = append(args, q.UserID)
	}
	if q.Type != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", next()))
		args = append(args, string(q.Type))
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", next()))
		args = append(args, q.Since.UTC())
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultAuthEventList
	}
	limit = min(limit, maxAuthEventList)
	query := fmt.Sprintf(`SELECT %s FROM auth_events %s ORDER BY created_at DESC, id LIMIT $%d`,
		authEventColumns, where, next())
	args = append(args, limit)

	var out []domainauth.Event
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, scanAuthEvent)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Prune deletes events older than cutoff and reports how many were removed.
func (r *AuthEventRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM auth_events WHERE created_at < $1`, cutoff.UTC())
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune auth events: %w", apperrors.MapDBError(err))
	}
	return n, nil
}

func scanAuthEvent(row pgx.CollectableRow) (domainauth.Event, error) {
	var (
		ev     domainauth.Event
		userID *string
		typ    string
		mdJSON []byte
	)
	if err := row.Scan(&ev.ID, &userID, &typ, &ev.Action, &mdJSON, &ev.OccurredAt); err != nil {
		return domainauth.Event{}, err
	}
	if userID != nil {
		ev.UserID = *userID
	}
	ev.Type = domainauth.EventType(typ)
	if len(mdJSON) > 0 {
		if err := json.Unmarshal(mdJSON, &ev.Metadata); err != nil {
			return domainauth.Event{}, fmt.Errorf("decode metadata for %s: %w", ev.ID, err)
		}
	}
	return ev, nil
}
