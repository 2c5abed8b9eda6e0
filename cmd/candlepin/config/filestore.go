package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/zachmann/go-utils/duration"

	"github.com/candlepin/candlepin-sub033/manifest/filestore"
)

// Stored manifest backends
const (
	FileStoreBadger = "badger"
	FileStoreRedis  = "redis"
)

// fileStoreConf configures where uploaded and exported manifests are kept
// until they are consumed or expire
type fileStoreConf struct {
	Backend   string `yaml:"backend"`
	BadgerDir string `yaml:"badger_dir" split_words:"true"`
	RedisAddr string `yaml:"redis_addr" split_words:"true"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	RedisDB   int    `yaml:"redis_db" split_words:"true"`
	// TTL is read from the file only
	TTL duration.DurationOption `yaml:"ttl" ignored:"true"`
}

var defaultFileStoreConf = fileStoreConf{
	Backend: FileStoreBadger,
	TTL:     duration.DurationOption(24 * time.Hour),
}

func (c *fileStoreConf) validate() error {
	switch c.Backend {
	case FileStoreBadger:
	case FileStoreRedis:
		if c.RedisAddr == "" {
			return errors.New("redis_addr must be specified for the redis backend")
		}
	default:
		return errors.Errorf("unknown backend '%s'", c.Backend)
	}
	if c.TTL.Duration() <= 0 {
		return errors.New("ttl must be positive")
	}
	return nil
}

// OpenFileStore opens the configured manifest file store. An empty badger
// directory keeps the files in memory.
func OpenFileStore(ctx context.Context, conf Config) (filestore.Store, error) {
	c := conf.FileStore
	if c.Backend == FileStoreRedis {
		return filestore.NewRedisStore(
			ctx, &redis.Options{
				Addr:     c.RedisAddr,
				Username: c.Username,
				Password: c.Password,
				DB:       c.RedisDB,
			}, c.TTL.Duration(),
		)
	}
	return filestore.NewBadgerStore(c.BadgerDir, c.TTL.Duration())
}
