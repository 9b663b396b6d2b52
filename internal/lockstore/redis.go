package lockstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes a lock key only if its value still matches the
// token this instance wrote when it acquired it, so a coordinator never
// deletes a lock a peer re-acquired after TTL expiry.
//
// Grounded on the compare-and-delete Lua script used by the pack's
// Redis-backed distributed lock (Nuulab-GoFlow pkg/queue/lock.go).
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

const (
	// defaultJobPrefix and defaultErrorPrefix match spec.md §6's
	// documented REDIS_JOB_KEY_PREFIX/REDIS_ERROR_KEY_PREFIX defaults;
	// used only when RedisConfig leaves the corresponding field empty.
	defaultJobPrefix   = "jobman/jobs:"
	defaultErrorPrefix = "jobman/errors:"
	scanBatch          = 200
)

// RedisStore is the production Store backend.
type RedisStore struct {
	client      *redis.Client
	jobPrefix   string
	errorPrefix string
	errorExpiry time.Duration
	log         *zap.Logger

	mu   sync.Mutex
	held map[string]string // job path -> token this instance wrote
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Host        string
	Port        int
	DB          int
	JobPrefix   string
	ErrorPrefix string
	ErrorExpiry time.Duration
}

// NewRedisStore dials Redis and returns a ready Store.
func NewRedisStore(cfg RedisConfig, log *zap.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DB:   cfg.DB,
	})
	if log == nil {
		log = zap.NewNop()
	}
	jobPrefix := cfg.JobPrefix
	if jobPrefix == "" {
		jobPrefix = defaultJobPrefix
	}
	errorPrefix := cfg.ErrorPrefix
	if errorPrefix == "" {
		errorPrefix = defaultErrorPrefix
	}
	return &RedisStore{
		client:      client,
		jobPrefix:   jobPrefix,
		errorPrefix: errorPrefix,
		errorExpiry: cfg.ErrorExpiry,
		log:         log,
		held:        make(map[string]string),
	}
}

func (s *RedisStore) TryLock(ctx context.Context, job string, ttl time.Duration) (bool, error) {
	token := uuid.NewString() + ":" + time.Now().UTC().Format(time.RFC3339Nano)
	ok, err := s.client.SetNX(ctx, s.jobPrefix+job, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: try_lock %q: %v", ErrTransport, job, err)
	}
	if ok {
		s.mu.Lock()
		s.held[job] = token
		s.mu.Unlock()
	}
	return ok, nil
}

func (s *RedisStore) Unlock(ctx context.Context, job string) error {
	s.mu.Lock()
	token, ok := s.held[job]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if _, err := releaseScript.Run(ctx, s.client, []string{s.jobPrefix + job}, token).Result(); err != nil {
		return fmt.Errorf("%w: unlock %q: %v", ErrTransport, job, err)
	}

	s.mu.Lock()
	delete(s.held, job)
	s.mu.Unlock()
	return nil
}

func (s *RedisStore) ForceUnlock(ctx context.Context, job string) error {
	if err := s.client.Del(ctx, s.jobPrefix+job).Err(); err != nil {
		return fmt.Errorf("%w: force_unlock %q: %v", ErrTransport, job, err)
	}
	s.mu.Lock()
	delete(s.held, job)
	s.mu.Unlock()
	return nil
}

func (s *RedisStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	jobs := make([]string, 0, len(s.held))
	for j := range s.held {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	var result *multierror.Error
	for _, j := range jobs {
		if err := s.Unlock(ctx, j); err != nil {
			result = multierror.Append(result, err)
			s.log.Warn("cleanup failed to release lock", zap.String("job", j), zap.Error(err))
		}
	}
	return result.ErrorOrNil()
}

func (s *RedisStore) Jobs(ctx context.Context) ([]string, error) {
	keys, err := s.scan(ctx, s.jobPrefix+"*")
	if err != nil {
		return nil, err
	}
	jobs := make([]string, 0, len(keys))
	for _, k := range keys {
		jobs = append(jobs, strings.TrimPrefix(k, s.jobPrefix))
	}
	return jobs, nil
}

func (s *RedisStore) GetError(ctx context.Context, job string) (*JobError, error) {
	raw, err := s.client.Get(ctx, s.errorPrefix+job).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get_error %q: %v", ErrTransport, job, err)
	}
	parsed := parseError(raw)
	return &parsed, nil
}

func (s *RedisStore) SetError(ctx context.Context, job string, status int, message string) error {
	err := s.client.Set(ctx, s.errorPrefix+job, formatError(status, message), s.errorExpiry).Err()
	if err != nil {
		return fmt.Errorf("%w: set_error %q: %v", ErrTransport, job, err)
	}
	return nil
}

func (s *RedisStore) Errors(ctx context.Context) (map[string]JobError, error) {
	keys, err := s.scan(ctx, s.errorPrefix+"*")
	if err != nil {
		return nil, err
	}

	out := make(map[string]JobError, len(keys))
	for _, k := range keys {
		raw, err := s.client.Get(ctx, k).Result()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("%w: errors get %q: %v", ErrTransport, k, err)
		}
		out[strings.TrimPrefix(k, s.errorPrefix)] = parseError(raw)
	}
	return out, nil
}

func (s *RedisStore) ClearErrors(ctx context.Context) error {
	keys, err := s.scan(ctx, s.errorPrefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: clear_errors: %v", ErrTransport, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// scan walks the keyspace with SCAN rather than KEYS so a large keyspace
// never blocks the Redis event loop — see SPEC_FULL.md's REDESIGN FLAGS.
func (s *RedisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: scan %q: %v", ErrTransport, pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
