package vocabulary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCacheTTL        = 10 * time.Minute
	defaultRegisterTimeout = 15 * time.Second
)

// Source is the remote option vocabulary
type Source interface {
	ListOptionNames(ctx context.Context) ([]string, error)
	ListOptionValues(ctx context.Context, name string) ([]string, error)
	RegisterOptionName(ctx context.Context, name string) error
	RegisterOptionValue(ctx context.Context, name, value string) error
}

// Service serves option names and values with a two-level cache in front of
// the remote vocabulary. Lookups never fail hard: on error they return an empty
// list along with the error so callers can notify the admin.
type Service struct {
	source   Source
	cache    *cache.CacheLayer
	ttl      time.Duration
	storeID  string
	logger   *logrus.Entry
	inflight sync.WaitGroup
}

type Config struct {
	StoreID  string
	CacheTTL time.Duration
	Logger   *logrus.Entry
}

func NewService(source Source, redisClient *redis.Client, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Service{
		source:  source,
		ttl:     cfg.CacheTTL,
		storeID: cfg.StoreID,
		logger:  logger.WithField("component", "vocabulary"),
	}

	if redisClient != nil {
		s.cache = cache.NewCacheLayerFromClient(redisClient, cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 1000,
			L1TTL:      30 * time.Second,
			DefaultTTL: cfg.CacheTTL,
			KeyPrefix:  "tesseract:catalog-admin:",
		})
	}

	return s
}

func (s *Service) namesKey() string {
	return fmt.Sprintf("vocabulary:names:%s", s.storeID)
}

func (s *Service) valuesKey(name string) string {
	return fmt.Sprintf("vocabulary:values:%s:%s", s.storeID, strings.ToLower(name))
}

// ListOptionNames returns every known option name
func (s *Service) ListOptionNames(ctx context.Context) ([]string, error) {
	names, err := s.cached(ctx, s.namesKey(), func() ([]string, error) {
		return s.source.ListOptionNames(ctx)
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to list option names, continuing with an empty list")
		return []string{}, err
	}
	return names, nil
}

// ListOptionValues returns every known value for name
func (s *Service) ListOptionValues(ctx context.Context, name string) ([]string, error) {
	values, err := s.cached(ctx, s.valuesKey(name), func() ([]string, error) {
		return s.source.ListOptionValues(ctx, name)
	})
	if err != nil {
		s.logger.WithError(err).WithField("option_name", name).Warn("Failed to list option values, continuing with an empty list")
		return []string{}, err
	}
	return values, nil
}

func (s *Service) cached(ctx context.Context, key string, load func() ([]string, error)) ([]string, error) {
	if s.cache == nil {
		values, err := load()
		if values == nil && err == nil {
			values = []string{}
		}
		return values, err
	}

	var values []string
	err := s.cache.GetOrSetJSON(ctx, key, &values, s.ttl, func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = []string{}
		}
		return v, nil
	})
	if values == nil && err == nil {
		values = []string{}
	}
	return values, err
}

// RegisterOptionName stores name remotely in the background. done, when set,
// receives the outcome; the caller's local state has already been updated.
func (s *Service) RegisterOptionName(ctx context.Context, name string, done func(error)) {
	s.background(ctx, done, func(ctx context.Context) error {
		if err := s.source.RegisterOptionName(ctx, name); err != nil {
			s.logger.WithError(err).WithField("option_name", name).Warn("Failed to register option name")
			return err
		}
		s.invalidate(ctx, s.namesKey())
		return nil
	})
}

// RegisterOptionValue stores value for name remotely in the background
func (s *Service) RegisterOptionValue(ctx context.Context, name, value string, done func(error)) {
	s.background(ctx, done, func(ctx context.Context) error {
		if err := s.source.RegisterOptionValue(ctx, name, value); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"option_name":  name,
				"option_value": value,
			}).Warn("Failed to register option value")
			return err
		}
		s.invalidate(ctx, s.valuesKey(name))
		return nil
	})
}

func (s *Service) background(ctx context.Context, done func(error), fn func(context.Context) error) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRegisterTimeout)
		defer cancel()

		err := fn(ctx)
		if done != nil {
			done(err)
		}
	}()
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, keys...)
}

// Wait blocks until every background registration has finished
func (s *Service) Wait() {
	s.inflight.Wait()
}
