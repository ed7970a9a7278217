package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

const columnsSeparator = ", "

// AddChunks stores chunks with their embeddings in a single pipelined
// round-trip. vectors[i] belongs to chunks[i].
func (s *Store) AddChunks(
	ctx context.Context, indexID string, chunks []domain.Chunk, vectors [][]float32,
) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(chunks))
	for i, c := range chunks {
		cmd := s.b().Hset().Key(s.chunkKey(indexID, c.ID)).FieldValue().
			FieldValue("content", c.Content).
			FieldValue("source", c.Meta.Source).
			FieldValue("kind", string(c.Meta.Kind)).
			FieldValue("knowledge", c.Meta.Knowledge).
			FieldValue("vector", vectorToBytes(vectors[i]))
		if c.Meta.Page > 0 {
			cmd = cmd.FieldValue("page", strconv.Itoa(c.Meta.Page))
		}
		if c.Meta.Description != "" {
			cmd = cmd.FieldValue("description", c.Meta.Description)
		}
		if len(c.Meta.Columns) > 0 {
			cmd = cmd.FieldValue("columns", strings.Join(c.Meta.Columns, columnsSeparator))
		}
		cmds[i] = cmd.Build()
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("store chunk %s: %w", chunks[i].ID, err)
		}
	}
	return nil
}

// ListSources collects the distinct source identifiers stored in an index by
// scanning its chunk keys and reading each chunk's source field pipelined.
func (s *Store) ListSources(ctx context.Context, indexID string) (map[string]struct{}, error) {
	keys, err := s.scanChunkKeys(ctx, indexID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return map[string]struct{}{}, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hget().Key(key).Field("source").Build()
	}

	sources := make(map[string]struct{})
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		src, err := res.ToString()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("read source of %s: %w", keys[i], err)
		}
		if src != "" {
			sources[src] = struct{}{}
		}
	}
	return sources, nil
}

// CountChunks returns the number of chunks in an index via a zero-window
// FT.SEARCH.
func (s *Store) CountChunks(ctx context.Context, indexID string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(s.indexName(indexID), "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return 0, fmt.Errorf("count chunks %s: %w", indexID, domain.ErrIndexNotFound)
		}
		return 0, fmt.Errorf("count chunks %s: %w", indexID, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func (s *Store) scanChunkKeys(ctx context.Context, indexID string) ([]string, error) {
	pattern := s.chunkKeyPrefix(indexID) + "*"

	var keys []string
	var cursor uint64
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
