package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// GetBoltDBClient opens the database file and makes sure every configured
// bucket exists.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("boltdb: open %s: %w", config.BoltDB.FilePath, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{config.BoltDB.BucketName, config.BoltDB.NotificationBucketName} {
			if name == "" {
				continue
			}
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltdb: setup buckets: %w", err)
	}
	return db, nil
}

// boltBucket stores json encoded records of type T under their id.
type boltBucket[T any] struct {
	db       *bolt.DB
	name     []byte
	notFound error
}

func (b boltBucket[T]) put(id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).Put([]byte(id), data)
	})
}

func (b boltBucket[T]) get(id string) (T, error) {
	var v T
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(b.name).Get([]byte(id))
		if data == nil {
			return b.notFound
		}
		return json.Unmarshal(data, &v)
	})
	return v, err
}

func (b boltBucket[T]) remove(id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).Delete([]byte(id))
	})
}

// list returns all records in key order.
func (b boltBucket[T]) list() ([]T, error) {
	out := []T{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).ForEach(func(_, data []byte) error {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reset drops then recreates the bucket in one transaction.
func (b boltBucket[T]) reset() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(b.name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(b.name)
		return err
	})
}

// boltBookStorage is the replica of the books fed by the queue consumer.
type boltBookStorage struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
	books  boltBucket[Book]
}

// NewBoltBookStorage provides an instance of bolt-based book storage.
func NewBoltBookStorage(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) BookStorage {
	return &boltBookStorage{
		logger: logger,
		client: client,
		config: boltConfig,
		books:  boltBucket[Book]{db: client, name: []byte(boltConfig.BucketName), notFound: ErrBookNotFound},
	}
}

func (bs *boltBookStorage) Close() error {
	return bs.client.Close()
}

func (bs *boltBookStorage) Add(_ context.Context, id string, book Book) error {
	return bs.books.put(id, book)
}

func (bs *boltBookStorage) GetOne(_ context.Context, id string) (Book, error) {
	return bs.books.get(id)
}

func (bs *boltBookStorage) Delete(_ context.Context, id string) error {
	return bs.books.remove(id)
}

// Update upserts: the replica may receive an update before its creation.
func (bs *boltBookStorage) Update(_ context.Context, id string, book Book) (Book, error) {
	return book, bs.books.put(id, book)
}

func (bs *boltBookStorage) GetAll(_ context.Context) ([]Book, error) {
	return bs.books.list()
}

func (bs *boltBookStorage) DeleteAll(_ context.Context) error {
	bs.logger.Warn("boltdb: dropping all replicated books", zap.String("bucket", bs.config.BucketName))
	return bs.books.reset()
}

type boltNotificationStorage struct {
	notifications boltBucket[Notification]
}

// NewBoltNotificationStorage provides a bolt-based archive of notifications.
func NewBoltNotificationStorage(boltConfig *BoltDBConfig, client *bolt.DB) NotificationStorage {
	return &boltNotificationStorage{
		notifications: boltBucket[Notification]{
			db:       client,
			name:     []byte(boltConfig.NotificationBucketName),
			notFound: ErrNotificationNotFound,
		},
	}
}

// Save inserts or replaces a notification record.
func (ns *boltNotificationStorage) Save(_ context.Context, n Notification) error {
	return ns.notifications.put(n.ID, n)
}

func (ns *boltNotificationStorage) Get(_ context.Context, id string) (Notification, error) {
	return ns.notifications.get(id)
}

// GetAll lists archived notifications, most recent first.
func (ns *boltNotificationStorage) GetAll(_ context.Context) ([]Notification, error) {
	list, err := ns.notifications.list()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt > list[j].CreatedAt
	})
	return list, nil
}
