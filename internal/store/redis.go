package store

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisRegistry keeps one hash per chat name at "{prefix}:documents:{chat}".
type RedisRegistry struct {
	rdb    *goredis.Client
	prefix string
}

func NewRedisRegistry(cfg RedisConfig) (*RedisRegistry, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisRegistry(rdb, cfg.KeyPrefix), nil
}

func newRedisRegistry(rdb *goredis.Client, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "docchat"
	}
	return &RedisRegistry{rdb: rdb, prefix: prefix}
}

func (r *RedisRegistry) Close() error {
	return r.rdb.Close()
}

func (r *RedisRegistry) key(chatName string) string {
	return r.prefix + ":documents:" + chatName
}

// PutDocument replaces the hash for rec.ChatName in one transaction so a
// reader never sees fields from two uploads.
func (r *RedisRegistry) PutDocument(ctx context.Context, rec DocumentRecord) error {
	if rec.ChatName == "" {
		return fmt.Errorf("chat name required")
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
	key := r.key(rec.ChatName)
	_, err := r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"chat_name", rec.ChatName,
			"vector_id", rec.VectorID,
			"file_name", rec.SourceFileName,
			"uploaded_at", rec.UploadedAt.Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store document record: %w", err)
	}
	return nil
}

// GetDocument returns the record for chatName, or nil if there is none.
func (r *RedisRegistry) GetDocument(ctx context.Context, chatName string) (*DocumentRecord, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(chatName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query document record: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil // Not found
	}

	rec := &DocumentRecord{
		ChatName:       chatName,
		VectorID:       fields["vector_id"],
		SourceFileName: fields["file_name"],
	}
	if ts := fields["uploaded_at"]; ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.UploadedAt = t
		}
	}
	return rec, nil
}
