package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mktdata/admin-console/internal/domain/gate"
	"github.com/mktdata/admin-console/internal/ports"
)

// GateStorageKey is the tab storage key holding the login throttle record.
const GateStorageKey = "admin_login_gate"

// persistedGate is the stored JSON shape; lockedUntil is unix milliseconds.
type persistedGate struct {
	Attempts    int    `json:"attempts"`
	LockedUntil *int64 `json:"lockedUntil"`
}

// GateStore persists one tab's throttle record. Every failure degrades to the zero
// record: an unreadable store means "not locked out".
type GateStore struct {
	storage ports.TabStorage
	tabID   string
	logger  *slog.Logger
}

// NewGateStore binds storage to tabID.
func NewGateStore(storage ports.TabStorage, tabID string, logger *slog.Logger) *GateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GateStore{
		storage: storage,
		tabID:   tabID,
		logger:  logger.With("component", "gate_store", "tab_id", tabID),
	}
}

// Read returns the stored record, or the zero record if it is absent, corrupt or unreadable.
func (s *GateStore) Read(ctx context.Context) gate.Record {
	raw, err := s.storage.Get(ctx, s.tabID, GateStorageKey)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.WarnContext(ctx, "gate record read failed, treating as unlocked", "error", err)
		}
		return gate.Record{}
	}

	var p persistedGate
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.WarnContext(ctx, "gate record corrupt, treating as unlocked", "error", err)
		return gate.Record{}
	}
	if p.Attempts < 0 {
		return gate.Record{}
	}

	rec := gate.Record{Attempts: p.Attempts}
	if p.LockedUntil != nil {
		until := time.UnixMilli(*p.LockedUntil)
		rec.LockedUntil = &until
	}
	return rec
}

// Write stores rec. Failures are logged and swallowed.
func (s *GateStore) Write(ctx context.Context, rec gate.Record) {
	p := persistedGate{Attempts: rec.Attempts}
	if rec.LockedUntil != nil {
		ms := rec.LockedUntil.UnixMilli()
		p.LockedUntil = &ms
	}
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.WarnContext(ctx, "gate record encode failed", "error", err)
		return
	}
	if err := s.storage.Set(ctx, s.tabID, GateStorageKey, string(data)); err != nil {
		s.logger.WarnContext(ctx, "gate record write failed", "error", err)
	}
}

// Clear removes the record. Failures are logged and swallowed.
func (s *GateStore) Clear(ctx context.Context) {
	if err := s.storage.Delete(ctx, s.tabID, GateStorageKey); err != nil {
		s.logger.WarnContext(ctx, "gate record clear failed", "error", err)
	}
}
