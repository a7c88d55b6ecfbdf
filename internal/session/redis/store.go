package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/session"
)

const (
	sessionKeyPrefix = "qrdoc:session:"
	maxUpdateRetries = 5
)

var errConcurrentUpdate = errors.New("session modified concurrently")

// Store is a session.Store shared by every replica. Update uses WATCH/MULTI so
// two replicas cannot both move the same session into Submitting.
type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

var _ session.Store = (*Store)(nil)

func NewStore(client goredis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func key(id string) string {
	return sessionKeyPrefix + id
}

func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	sess.UpdatedAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, key(sess.ID), data, s.ttl).Result()
	if err != nil {
		return internal.NewInternalError("failed to store session", err)
	}
	if !ok {
		return internal.NewConflictError("session already exists", internal.ErrCodeSessionExists)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, internal.ErrSessionNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to load session", err)
	}
	return decode(data)
}

func (s *Store) Update(ctx context.Context, id string, fn session.MutateFunc) (*session.Session, error) {
	k := key(id)

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		var updated *session.Session

		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			data, err := tx.Get(ctx, k).Bytes()
			if errors.Is(err, goredis.Nil) {
				return internal.ErrSessionNotFound
			}
			if err != nil {
				return internal.NewInternalError("failed to load session", err)
			}

			sess, err := decode(data)
			if err != nil {
				return err
			}
			if err := fn(sess); err != nil {
				return err
			}
			sess.UpdatedAt = time.Now()

			encoded, err := json.Marshal(sess)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, k, encoded, s.ttl)
				return nil
			})
			if err != nil {
				return err
			}
			updated = sess
			return nil
		}, k)

		if errors.Is(err, goredis.TxFailedErr) {
			s.logger.Debug("session update raced, retrying", "session_id", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	return nil, internal.NewInternalError("failed to update session", errConcurrentUpdate)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, key(id)).Result()
	if err != nil {
		return internal.NewInternalError("failed to delete session", err)
	}
	if n == 0 {
		return internal.ErrSessionNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decode(data []byte) (*session.Session, error) {
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, internal.NewInternalError("stored session is corrupt", err)
	}
	return &sess, nil
}
