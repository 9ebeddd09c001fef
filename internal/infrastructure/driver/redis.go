package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient .
type RedisClient struct {
	conn *redis.Client
}

var (
	_ KeyValueDB = &RedisClient{}
	_ MessageBus = &RedisClient{}
)

// NewRedisClient create a redis client
func NewRedisClient(host string, port int, password string) *RedisClient {
	conn := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		Password:    password,
		DialTimeout: 5 * time.Second,
	})
	return &RedisClient{
		conn: conn,
	}
}

// SetEX implement KeyValueDB
func (rdb *RedisClient) SetEX(key string, value string, expiration time.Duration) error {
	return rdb.conn.Set(context.Background(), key, value, expiration).Err()
}

// Get implement KeyValueDB
func (rdb *RedisClient) Get(key string) (string, error) {
	return rdb.conn.Get(context.Background(), key).Result()
}

// Exists implement KeyValueDB
func (rdb *RedisClient) Exists(key string) (bool, error) {
	n, err := rdb.conn.Exists(context.Background(), key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Ping implement KeyValueDB
func (rdb *RedisClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return rdb.conn.Ping(ctx).Err()
}

// Close release the underlying pool
func (rdb *RedisClient) Close() error {
	return rdb.conn.Close()
}

// Publish implement MessageBus
func (rdb *RedisClient) Publish(ctx context.Context, channel string, payload []byte) error {
	return rdb.conn.Publish(ctx, channel, payload).Err()
}

// Subscribe implement MessageBus, it returns once redis confirmed the subscription
func (rdb *RedisClient) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := rdb.conn.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan []byte),
		done: make(chan struct{}),
	}
	go sub.pump(ps.Channel())
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{} // closed by Close, unblocks a pending send
	once sync.Once
}

func (rs *redisSubscription) pump(in <-chan *redis.Message) {
	defer close(rs.out)
	for msg := range in {
		select {
		case rs.out <- []byte(msg.Payload):
		case <-rs.done:
			return
		}
	}
}

func (rs *redisSubscription) Messages() <-chan []byte {
	return rs.out
}

func (rs *redisSubscription) Close() error {
	rs.stop()
	return rs.ps.Close()
}

func (rs *redisSubscription) stop() {
	rs.once.Do(func() { close(rs.done) })
}
