package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserScope is a pooled connection bound to one user for row level
// security, or to no user for system work. Close must always be called.
type UserScope struct {
	Conn *pgxpool.Conn
	// UserID is uuid.Nil on a system scope.
	UserID uuid.UUID
}

// System reports whether the scope sees every user's rows.
func (s *UserScope) System() bool {
	return s.UserID == uuid.Nil
}

// Close clears app.current_user_id and returns the connection to the pool.
func (s *UserScope) Close() {
	if s == nil || s.Conn == nil {
		return
	}
	if !s.System() {
		_, _ = s.Conn.Exec(context.Background(), "RESET app.current_user_id")
	}
	s.Conn.Release()
	s.Conn = nil
}

// WithUser acquires a connection with app.current_user_id set to userID.
func (db *DB) WithUser(ctx context.Context, userID uuid.UUID) (*UserScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(ctx, "SELECT set_config('app.current_user_id', $1, false)", userID.String()); err != nil {
		conn.Release()
		return nil, err
	}
	return &UserScope{Conn: conn, UserID: userID}, nil
}

// WithoutUser acquires a connection for cross-user work such as webhook
// reconciliation and mention analysis.
func (db *DB) WithoutUser(ctx context.Context) (*UserScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &UserScope{Conn: conn}, nil
}

type scopeKey struct{}

// GetUserScope returns the connection stored by SetUserScope.
func GetUserScope(ctx context.Context) (*UserScope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*UserScope)
	return scope, ok && scope != nil
}

// SetUserScope stores scope in ctx for the repositories.
func SetUserScope(ctx context.Context, scope *UserScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeProvider opens scopes for work that runs outside an HTTP request,
// such as the scheduled mention analysis.
type ScopeProvider struct {
	db *DB
}

func NewScopeProvider(db *DB) *ScopeProvider {
	return &ScopeProvider{db: db}
}

// WithUserScope returns ctx carrying a scope for userID and its release func.
func (p *ScopeProvider) WithUserScope(ctx context.Context, userID uuid.UUID) (context.Context, func(), error) {
	return p.open(ctx, func() (*UserScope, error) { return p.db.WithUser(ctx, userID) })
}

// WithSystemScope returns ctx carrying an unscoped connection and its release func.
func (p *ScopeProvider) WithSystemScope(ctx context.Context) (context.Context, func(), error) {
	return p.open(ctx, func() (*UserScope, error) { return p.db.WithoutUser(ctx) })
}

func (p *ScopeProvider) open(ctx context.Context, acquire func() (*UserScope, error)) (context.Context, func(), error) {
	scope, err := acquire()
	if err != nil {
		return nil, nil, err
	}
	return SetUserScope(ctx, scope), scope.Close, nil
}
