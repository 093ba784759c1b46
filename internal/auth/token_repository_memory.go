package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTokenRepository is an in-process RefreshTokenStore. A single mutex
// guards both indexes so every operation is atomic.
type MemoryTokenRepository struct {
	mu      sync.Mutex
	byUser  map[string]*RefreshToken
	byValue map[string]*RefreshToken
}

// NewMemoryTokenRepository creates an empty in-memory store.
func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{
		byUser:  make(map[string]*RefreshToken),
		byValue: make(map[string]*RefreshToken),
	}
}

// Len returns the number of stored records.
func (m *MemoryTokenRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser)
}

func (m *MemoryTokenRepository) FindByUser(ctx context.Context, userID string) (*RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byUser[userID]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryTokenRepository) FindByValue(ctx context.Context, value string) (*RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byValue[value]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryTokenRepository) Insert(ctx context.Context, rec *RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byUser[rec.UserID]; exists {
		return fmt.Errorf("creating refresh token: user %s already has a record", rec.UserID)
	}
	if rec.ID == "" {
		rec.ID = newRefreshTokenID()
	}
	m.put(rec)
	return nil
}

// UpdateByID rewrites the record with the given id. Like the SQL stores'
// UNIQUE constraints, it refuses a user or token value held by another
// record.
func (m *MemoryTokenRepository) UpdateByID(ctx context.Context, id string, rec *RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var cur *RefreshToken
	for _, r := range m.byUser {
		if r.ID == id {
			cur = r
			break
		}
	}
	if cur == nil {
		return ErrRefreshTokenNotFound
	}
	if other, ok := m.byUser[rec.UserID]; ok && other.ID != id {
		return fmt.Errorf("updating refresh token: user %s already has a record", rec.UserID)
	}
	if other, ok := m.byValue[rec.Token]; ok && other.ID != id {
		return errors.New("updating refresh token: value already in use")
	}

	delete(m.byValue, cur.Token)
	delete(m.byUser, cur.UserID)
	updated := *rec
	updated.ID = id
	updated.CreatedAt = cur.CreatedAt
	m.put(&updated)
	return nil
}

func (m *MemoryTokenRepository) DeleteByValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byValue[value]
	if !ok {
		return ErrRefreshTokenNotFound
	}
	delete(m.byValue, value)
	delete(m.byUser, rec.UserID)
	return nil
}

func (m *MemoryTokenRepository) Upsert(ctx context.Context, userID, value string, at time.Time) (*RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	at = at.UTC()
	rec := &RefreshToken{ID: newRefreshTokenID(), UserID: userID, Token: value, CreatedAt: at, UpdatedAt: at}
	if cur, ok := m.byUser[userID]; ok {
		delete(m.byValue, cur.Token)
		rec.ID = cur.ID
		rec.CreatedAt = cur.CreatedAt
	}
	m.put(rec)
	cp := *rec
	return &cp, nil
}

func (m *MemoryTokenRepository) Replace(ctx context.Context, oldValue, newValue string, at time.Time) (*RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byValue[oldValue]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	delete(m.byValue, oldValue)
	rec := &RefreshToken{ID: cur.ID, UserID: cur.UserID, Token: newValue, CreatedAt: cur.CreatedAt, UpdatedAt: at.UTC()}
	m.put(rec)
	cp := *rec
	return &cp, nil
}

// put indexes rec under both keys. Callers hold m.mu.
func (m *MemoryTokenRepository) put(rec *RefreshToken) {
	m.byUser[rec.UserID] = rec
	m.byValue[rec.Token] = rec
}

// newRefreshTokenID returns a record id in the rt-<uuid prefix> form.
func newRefreshTokenID() string {
	return "rt-" + uuid.NewString()[:16]
}
