package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// HNSW construction parameters for chunk indexes. Collections are small
// enough that tuning per collection is not worth the surface.
const (
	hnswM           = 32
	hnswEFConstruct = 400
)

// CreateIndex creates the FT index for a collection's chunks.
func (s *Store) CreateIndex(ctx context.Context, indexID string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dim)
	}

	args := []string{
		s.indexName(indexID),
		"ON", "HASH",
		"PREFIX", "1", s.chunkKeyPrefix(indexID),
		"SCHEMA",
		"content", "TEXT",
		"source", "TAG", "SEPARATOR", ";",
		"knowledge", "TAG",
		"kind", "TAG",
		"vector", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(hnswM),
		"EF_CONSTRUCTION", strconv.Itoa(hnswEFConstruct),
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index %s: %w", indexID, err)
	}
	return nil
}

// DropIndex removes the FT index and deletes its chunk documents (DD).
func (s *Store) DropIndex(ctx context.Context, indexID string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(s.indexName(indexID), "DD").Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return fmt.Errorf("drop index %s: %w", indexID, domain.ErrIndexNotFound)
		}
		return fmt.Errorf("drop index %s: %w", indexID, err)
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, indexID string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(s.indexName(indexID)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return false, nil
		}
		return false, fmt.Errorf("index info %s: %w", indexID, err)
	}
	return true, nil
}
