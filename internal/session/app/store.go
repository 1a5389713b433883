package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	"github.com/dwikikusuma/shoping-storefront/internal/session/domain"
	"github.com/dwikikusuma/shoping-storefront/internal/storage"
)

const refreshKey = "refresh"

// Store owns the one live session. Every other component reads tokens
// through it and only the store writes them.
type Store struct {
	kv     storage.KV
	issuer TokenIssuer
	log    *slog.Logger

	mu      sync.RWMutex
	current domain.Session
	// gen moves on every replace or clear; a refresh only commits over
	// the generation it started from.
	gen uint64

	flight singleflight.Group
}

// NewStore restores a persisted session, if any. An unreadable record is
// dropped and the user starts logged out.
func NewStore(ctx context.Context, kv storage.KV, issuer TokenIssuer, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{kv: kv, issuer: issuer, log: log}

	raw, err := kv.Get(ctx, storage.KeySession)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil || !sess.Valid() {
		log.Warn("discarding unreadable session record")
		if err := kv.Delete(ctx, storage.KeySession); err != nil {
			return nil, fmt.Errorf("dropping session: %w", err)
		}
		return s, nil
	}
	s.current = sess
	return s, nil
}

func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.current.Valid() {
		return "", false
	}
	return s.current.AccessToken, true
}

func (s *Store) Session() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.Valid()
}

// SetSession persists the pair first and only then publishes it, so a
// reader never sees a session that is not on disk.
func (s *Store) SetSession(ctx context.Context, sess domain.Session) error {
	if !sess.Valid() {
		return apperr.Validation("session.set", "access and refresh tokens are required")
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publish(ctx, sess, raw)
}

// publish must be called with s.mu held.
func (s *Store) publish(ctx context.Context, sess domain.Session, raw []byte) error {
	if err := s.kv.Set(ctx, storage.KeySession, raw); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	s.current = sess
	s.gen++
	return nil
}

// Clear removes both tokens, the cached identity and the staged cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(ctx)
}

// clear must be called with s.mu held.
func (s *Store) clear(ctx context.Context) error {
	s.current = domain.Session{}
	s.gen++

	return errors.Join(
		s.kv.Delete(ctx, storage.KeySession),
		s.kv.Delete(ctx, storage.KeyCartSnapshot),
	)
}

func (s *Store) snapshot() (domain.Session, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.gen
}

func (s *Store) Login(ctx context.Context, username, password string) (domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Session{}, apperr.Validation("session.login", "username and password are required")
	}

	pair, err := s.issuer.Obtain(ctx, username, password)
	if err != nil {
		return domain.Session{}, err
	}
	sess := domain.Session{AccessToken: pair.Access, RefreshToken: pair.Refresh, Username: username}
	if !sess.Valid() {
		return domain.Session{}, apperr.New(apperr.ErrTransport, "session.login", "token response is missing a token")
	}
	if err := s.SetSession(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	s.log.Info("logged in", slog.String("username", username))
	return sess, nil
}

func (s *Store) Logout(ctx context.Context) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	s.log.Info("logged out")
	return nil
}

func (s *Store) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return apperr.Validation("session.register", "username and password are required")
	}
	if len(password) < 6 {
		return apperr.Validation("session.register", "password must be at least 6 characters long")
	}
	return s.issuer.Register(ctx, username, password)
}

// Status reports the identity and, for JWT access tokens, their expiry.
// The token is not verified; the backend remains the authority.
func (s *Store) Status() domain.Status {
	sess, ok := s.Session()
	if !ok {
		return domain.Status{}
	}
	st := domain.Status{LoggedIn: true, Username: sess.Username}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(sess.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			st.AccessExpiresAt = exp.Time
		}
	}
	return st
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share a single backend call.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	return s.RefreshAfter(ctx, "")
}

// RefreshAfter is Refresh for a caller whose request was rejected with
// the given access token. If the session already moved past that token a
// sibling has refreshed and the current token is returned without another
// backend call.
func (s *Store) RefreshAfter(ctx context.Context, rejected string) (string, error) {
	if rejected != "" {
		if cur, ok := s.AccessToken(); ok && cur != rejected {
			return cur, nil
		}
	}

	ch := s.flight.DoChan(refreshKey, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", apperr.Wrap(apperr.ErrTransport, "session.refresh", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Store) refresh(ctx context.Context) (string, error) {
	const op = "session.refresh"

	sess, gen := s.snapshot()
	if !sess.Valid() {
		return "", apperr.Unauthenticated(op)
	}

	s.log.Info("refreshing access token", slog.String("username", sess.Username))
	pair, err := s.issuer.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if errors.Is(err, apperr.ErrTransport) {
			s.log.Warn("token refresh unreachable, keeping session", slog.Any("err", err))
			return "", err
		}
		s.log.Warn("refresh token rejected, clearing session", slog.Any("err", err))
		if clearErr := s.clearIf(ctx, gen); clearErr != nil {
			s.log.Error("clearing session failed", slog.Any("err", clearErr))
		}
		return "", apperr.SessionExpired(op, err)
	}
	if pair.Access == "" {
		return "", apperr.New(apperr.ErrTransport, op, "refresh response has no access token")
	}

	next := sess
	next.AccessToken = pair.Access
	if pair.Refresh != "" {
		next.RefreshToken = pair.Refresh
	}
	return s.commitRefresh(ctx, op, gen, next)
}

// commitRefresh stores next only if nothing replaced or cleared the
// session while the refresh was in flight. A logout wins over the refresh;
// a newer login is handed back as is.
func (s *Store) commitRefresh(ctx context.Context, op string, gen uint64, next domain.Session) (string, error) {
	raw, err := json.Marshal(next)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.log.Info("session changed during refresh, dropping refreshed token")
		if !s.current.Valid() {
			return "", apperr.Unauthenticated(op)
		}
		return s.current.AccessToken, nil
	}
	if err := s.publish(ctx, next, raw); err != nil {
		return "", err
	}
	return next.AccessToken, nil
}

// clearIf tears the session down only if it is still the generation the
// failed refresh was working from.
func (s *Store) clearIf(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	return s.clear(ctx)
}
