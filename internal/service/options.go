package service

import (
	"time"

	"github.com/dunelink/dunelink/internal/archive"
	"github.com/dunelink/dunelink/internal/cache"
	"github.com/dunelink/dunelink/internal/store"
)

type Option func(s *QueryService)

// WithStore records every execution in the history store.
func WithStore(st store.Store) Option {
	return func(s *QueryService) {
		s.store = st
	}
}

// WithCache serves latest results from c for ttl. A zero ttl disables caching.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *QueryService) {
		if ttl > 0 {
			s.cache = c
			s.cacheTTL = ttl
		}
	}
}

func WithArchiver(a archive.Archiver) Option {
	return func(s *QueryService) {
		s.archiver = a
	}
}
