package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"auto-order/internal/apperr"
	"auto-order/internal/checkout"
	"auto-order/internal/util"
)

const (
	sessionLockTTL   = 10 * time.Second
	sessionLockRetry = 25 * time.Millisecond
)

// SessionStore keeps checkout sessions in Redis so that several bot
// replicas share them. A zero ttl keeps sessions until deleted.
type SessionStore struct {
	client  *Client
	ttl     time.Duration
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewSessionStore creates a Redis-backed checkout.SessionStore
func NewSessionStore(client *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:  client,
		ttl:     ttl,
		lockTTL: sessionLockTTL,
		logger:  util.GetLogger(),
	}
}

var _ checkout.SessionStore = (*SessionStore)(nil)

func sessionKey(userID int64) string {
	return "checkout:session:" + strconv.FormatInt(userID, 10)
}

func sessionLockKey(userID int64) string {
	return "checkout:" + strconv.FormatInt(userID, 10)
}

// Lock waits for the per-user lock until ctx is done. The lock is renewed
// in the background until released, so a slow order commit keeps it.
func (s *SessionStore) Lock(ctx context.Context, userID int64) (func(), error) {
	key := sessionLockKey(userID)
	ticker := time.NewTicker(sessionLockRetry)
	defer ticker.Stop()

	for {
		token, err := s.client.AcquireLock(ctx, key, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if token != "" {
			stop := make(chan struct{})
			done := make(chan struct{})
			go s.renew(userID, key, token, stop, done)

			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					// release with a fresh context so a cancelled request still frees the lock
					rctx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					if err := s.client.ReleaseLock(rctx, key, token); err != nil {
						s.logger.Warn("Failed to release session lock", zap.Int64("user_id", userID), zap.Error(err))
					}
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// renew extends the held lock every third of its TTL until stop is closed
func (s *SessionStore) renew(userID int64, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.lockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL/3)
		ok, err := s.client.ExtendLock(ctx, key, token, s.lockTTL)
		cancel()
		if err != nil {
			s.logger.Warn("Failed to extend session lock", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		if !ok {
			s.logger.Warn("Session lock lost", zap.Int64("user_id", userID))
			return
		}
	}
}

// Get loads the user's session
func (s *SessionStore) Get(ctx context.Context, userID int64) (*checkout.Session, error) {
	raw, err := s.client.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound.New("no checkout in progress, pick a product from the catalog")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess checkout.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Put saves the session, replacing any previous one of the user
func (s *SessionStore) Put(ctx context.Context, sess *checkout.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.client.rdb.Set(ctx, sessionKey(sess.UserID), raw, s.ttl).Err()
}

// Delete drops the user's session
func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	return s.client.rdb.Del(ctx, sessionKey(userID)).Err()
}
