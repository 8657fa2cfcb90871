package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"cryptopay/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

var Client *redis.Client

func Init(cfg Config) error {
	// redis options
	opts := redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password, // empty means no password
		DB:       cfg.DB,       // 0 is Redis's default DB
	}

	// Create Redis client
	rdb := redis.NewClient(&opts)

	// Test connection with Ping
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return err
	}

	// Set global Client variable
	Client = rdb
	logger.Info("Connected to Redis successfully", zap.String("host", cfg.Host))
	return nil
}

func Get(ctx context.Context, key string) (string, error) {
	val, err := Client.Get(ctx, key).Result()
	if err == redis.Nil { // Key does not exist
		return "", nil
	} else if err != nil {
		logger.Error("Failed to get key from Redis", zap.String("key", key), zap.Error(err))
		return "", err
	}
	return val, nil
}

func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	err := Client.Set(ctx, key, value, expiration).Err()
	if err != nil {
		logger.Error("Failed to set key in Redis", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func Delete(ctx context.Context, keys ...string) (int64, error) {
	res, err := Client.Del(ctx, keys...).Result()
	if err != nil {
		logger.Error("Failed to delete keys from Redis", zap.Strings("keys", keys), zap.Error(err))
		return 0, err
	}
	return res, nil
}

func Exists(ctx context.Context, key string) (bool, error) {
	res, err := Client.Exists(ctx, key).Result()
	if err != nil {
		logger.Error("Failed to check existence of key in Redis", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return res > 0, nil
}

func SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	// Set if Not eXists - returns true if set, false if key exists (prevents race conditions)
	set, err := Client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		logger.Error("Failed to set NX key in Redis", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return set, nil
}

func Incr(ctx context.Context, key string) (int64, error) {
	res, err := Client.Incr(ctx, key).Result()
	if err != nil {
		logger.Error("Failed to increment key in Redis", zap.String("key", key), zap.Error(err))
		return 0, err
	}
	return res, nil
}

// SAdd adds members to the set at key.
func SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := Client.SAdd(ctx, key, args...).Err(); err != nil {
		logger.Error("Failed to add members to set", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// SRem removes members from the set at key.
func SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := Client.SRem(ctx, key, args...).Err(); err != nil {
		logger.Error("Failed to remove members from set", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// SMembers returns every member of the set at key.
func SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := Client.SMembers(ctx, key).Result()
	if err != nil {
		logger.Error("Failed to read set members", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return members, nil
}

func Expire(ctx context.Context, key string, expiration time.Duration) error {
	// Set expiration on existing key
	err := Client.Expire(ctx, key, expiration).Err()
	if err != nil {
		logger.Error("Failed to set expiration on key in Redis", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// releaseIfOwnerScript is the classic Redis compare-and-delete lock release:
// only the holder of the exact owner token may release the lock. A blind
// DEL would let a worker release a lock it no longer owns (e.g. its TTL
// already expired and someone else acquired it in the meantime).
var releaseIfOwnerScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// AcquireLock attempts to take a distributed mutex at key for ttl, returning
// a crypto-random owner token on success. The token must be passed to
// ReleaseLock so that only the acquirer can release it.
func AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	tokenBytes := make([]byte, 16)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", false, err
	}
	token = hex.EncodeToString(tokenBytes)

	ok, err = SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a lock acquired via AcquireLock, but only if token
// still matches what's stored — a stale worker whose lock already expired
// and was reacquired by someone else cannot delete the new owner's lock.
func ReleaseLock(ctx context.Context, key, token string) error {
	err := releaseIfOwnerScript.Run(ctx, Client, []string{key}, token).Err()
	if err != nil && err != redis.Nil {
		logger.Error("Failed to release lock", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Ping tests the Redis connection
func Ping(ctx context.Context) error {
	return Client.Ping(ctx).Err()
}

// Close closes the Redis connection
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}
