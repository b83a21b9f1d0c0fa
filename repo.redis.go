package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HBooks     string = "books"
	HBooksISBN string = "books:isbn"
)

type redisBookStorage struct {
	logger *zap.Logger
	client *redis.Client
}

// NewRedisBookStorage provides an instance of redis-based book storage.
func NewRedisBookStorage(logger *zap.Logger, client *redis.Client) BookStorage {
	return &redisBookStorage{
		logger: logger,
		client: client,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.Redis.DialTimeout+time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", client.Options().Addr, err)
	}
	return client, nil
}

// putBookScript stores a book and claims its isbn atomically. It returns 0
// when the isbn already belongs to another book. The previous isbn of the
// book, when different, is released.
//
// KEYS: books hash, isbn index. ARGV: id, isbn key, json, previous isbn key.
var putBookScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[2], ARGV[2])
if ARGV[2] ~= '' and owner and owner ~= ARGV[1] then
	return 0
end
if ARGV[2] ~= '' then
	redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
if ARGV[4] ~= '' and ARGV[4] ~= ARGV[2] and redis.call('HGET', KEYS[2], ARGV[4]) == ARGV[1] then
	redis.call('HDEL', KEYS[2], ARGV[4])
end
return 1
`)

// deleteBookScript removes a book and releases the isbn it owns. It returns
// 0 when the book does not exist.
//
// KEYS: books hash, isbn index. ARGV: id, isbn key.
var deleteBookScript = redis.NewScript(`
if redis.call('HDEL', KEYS[1], ARGV[1]) == 0 then
	return 0
end
if ARGV[2] ~= '' and redis.call('HGET', KEYS[2], ARGV[2]) == ARGV[1] then
	redis.call('HDEL', KEYS[2], ARGV[2])
end
return 1
`)

func isbnKey(isbn string) string {
	if isbn == "" {
		return ""
	}
	return NormalizeISBN(isbn)
}

func (rs *redisBookStorage) put(ctx context.Context, id string, book Book, previousISBN string) error {
	data, err := json.Marshal(book)
	if err != nil {
		return err
	}
	stored, err := putBookScript.Run(ctx, rs.client, []string{HBooks, HBooksISBN},
		id, isbnKey(book.ISBN), data, isbnKey(previousISBN)).Int()
	if err != nil {
		return fmt.Errorf("redis: put book: %w", err)
	}
	if stored == 0 {
		return ErrDuplicateBook
	}
	return nil
}

// Add inserts a new book record.
func (rs *redisBookStorage) Add(ctx context.Context, id string, book Book) error {
	return rs.put(ctx, id, book, "")
}

// GetOne retrieves a book record based on its ID.
func (rs *redisBookStorage) GetOne(ctx context.Context, id string) (Book, error) {
	var book Book
	data, err := rs.client.HGet(ctx, HBooks, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return book, ErrBookNotFound
	}
	if err != nil {
		return book, err
	}
	err = json.Unmarshal(data, &book)
	return book, err
}

// Delete removes a book record based on its ID and releases its isbn.
func (rs *redisBookStorage) Delete(ctx context.Context, id string) error {
	book, err := rs.GetOne(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := deleteBookScript.Run(ctx, rs.client, []string{HBooks, HBooksISBN}, id, isbnKey(book.ISBN)).Int()
	if err != nil {
		return fmt.Errorf("redis: delete book: %w", err)
	}
	if deleted == 0 {
		return ErrBookNotFound
	}
	return nil
}

// Update replaces existing book record data or inserts a new book if does not exist.
func (rs *redisBookStorage) Update(ctx context.Context, id string, book Book) (Book, error) {
	previous, err := rs.GetOne(ctx, id)
	if err != nil && !errors.Is(err, ErrBookNotFound) {
		return book, err
	}
	if err = rs.put(ctx, id, book, previous.ISBN); err != nil {
		rs.logger.Debug("redis: book update rejected", zap.String("book.id", id), zap.Error(err))
		return book, err
	}
	return book, nil
}

// GetAll retrieves a list of all books stored in the redis database.
func (rs *redisBookStorage) GetAll(ctx context.Context) ([]Book, error) {
	values, err := rs.client.HVals(ctx, HBooks).Result()
	if err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(values))
	for _, v := range values {
		var book Book
		if err = json.Unmarshal([]byte(v), &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

// DeleteAll removes all books and the isbn index.
func (rs *redisBookStorage) DeleteAll(ctx context.Context) error {
	return rs.client.Del(ctx, HBooks, HBooksISBN).Err()
}
