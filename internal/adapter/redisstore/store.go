// Package redisstore is a FeatureStore backed by Redis. Each collection is a
// hash of id to JSON-encoded feature; each setting is a plain string key.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Store implements domain.FeatureStore, domain.SyncCommitter and
// domain.RecordPruner.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New wraps an existing client. All keys are namespaced under prefix.
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open connects to a single Redis instance and verifies it answers.
func Open(ctx context.Context, addr, password string, db int, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(client, prefix), nil
}

// Ping reports whether Redis is reachable. It satisfies the readiness
// checker contract.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) collectionKey(name string) string { return s.prefix + "collection:" + name }
func (s *Store) settingKey(name string) string    { return s.prefix + "setting:" + name }

// GetAllRecords returns the collection's records ordered by id.
func (s *Store) GetAllRecords(ctx context.Context, collection string) ([]domain.NormalizedFeature, error) {
	raw, err := s.client.HGetAll(ctx, s.collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", collection, err)
	}
	out := make([]domain.NormalizedFeature, 0, len(raw))
	for id, v := range raw {
		var f domain.NormalizedFeature
		if err := json.Unmarshal([]byte(v), &f); err != nil {
			return nil, fmt.Errorf("decode record %s/%s: %w", collection, id, err)
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) BatchUpsertRecords(ctx context.Context, collection string, records []domain.NormalizedFeature) error {
	if len(records) == 0 {
		return nil
	}
	fields, err := encodeRecords(records)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.collectionKey(collection), fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", collection, err)
	}
	return nil
}

func (s *Store) GetNamedSetting(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.settingKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) SetNamedSetting(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.settingKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// CommitSync writes the records and the version setting in one MULTI/EXEC
// block, so readers never see a version without its features.
func (s *Store) CommitSync(ctx context.Context, collection string, records []domain.NormalizedFeature, versionKey string, version []byte) error {
	fields, err := encodeRecords(records)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(fields) > 0 {
			p.HSet(ctx, s.collectionKey(collection), fields)
		}
		p.Set(ctx, s.settingKey(versionKey), version, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit sync %s: %w", collection, err)
	}
	return nil
}

func (s *Store) DeleteRecords(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.collectionKey(collection), ids...).Err(); err != nil {
		return fmt.Errorf("hdel %s: %w", collection, err)
	}
	return nil
}

func encodeRecords(records []domain.NormalizedFeature) (map[string]any, error) {
	fields := make(map[string]any, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", r.ID, err)
		}
		fields[r.ID] = data
	}
	return fields, nil
}
