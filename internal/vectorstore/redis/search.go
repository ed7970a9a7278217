package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// SearchKNN runs a KNN query against a collection index and returns matches
// sorted by similarity, best first.
func (s *Store) SearchKNN(
	ctx context.Context, indexID string, vector []float32, k int,
) ([]domain.RetrievedDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	query := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", k)
	args := []string{
		s.indexName(indexID),
		query,
		"RETURN", "8",
		"content", "source", "kind", "knowledge", "page", "description", "columns", "__vector_score",
		"SORTBY", "__vector_score",
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return nil, fmt.Errorf("search %s: %w", indexID, domain.ErrIndexNotFound)
		}
		return nil, fmt.Errorf("search %s: %w", indexID, err)
	}

	docs, err := s.parseKNNResult(indexID, raw)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", indexID, err)
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	return docs, nil
}

// parseKNNResult decodes the RESP2 FT.SEARCH reply.
// 2-stride: [total, key1, fields1, key2, fields2, ...]
func (s *Store) parseKNNResult(indexID string, raw []rueidis.RedisMessage) ([]domain.RetrievedDocument, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	keyPrefix := s.chunkKeyPrefix(indexID)
	docs := make([]domain.RetrievedDocument, 0, total)

	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldArr, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldArr)

		doc := domain.RetrievedDocument{
			ID:        strings.TrimPrefix(key, keyPrefix),
			Content:   fields["content"],
			Knowledge: fields["knowledge"],
			Meta: domain.ChunkMeta{
				Source:      fields["source"],
				Kind:        domain.Kind(fields["kind"]),
				Knowledge:   fields["knowledge"],
				Description: fields["description"],
			},
		}
		if p := fields["page"]; p != "" {
			if page, err := strconv.Atoi(p); err == nil {
				doc.Meta.Page = page
			}
		}
		if cols := fields["columns"]; cols != "" {
			doc.Meta.Columns = strings.Split(cols, columnsSeparator)
		}
		if scoreStr, ok := fields["__vector_score"]; ok {
			if dist, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				// cosine distance to similarity, clamped to [0,1]
				doc.Score = max(0, 1.0-dist)
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// vectorToBytes encodes a float32 vector as the little-endian byte blob
// RediSearch expects for FLOAT32 vector fields.
func vectorToBytes(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return string(buf)
}
