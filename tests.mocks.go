package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// This file contains mocks definitions needed to perform unit tests.

type MockBookStorage struct {
	AddFunc       func(ctx context.Context, id string, book Book) error
	GetOneFunc    func(ctx context.Context, id string) (Book, error)
	DeleteFunc    func(ctx context.Context, id string) error
	UpdateFunc    func(ctx context.Context, id string, book Book) (Book, error)
	GetAllFunc    func(ctx context.Context) ([]Book, error)
	DeleteAllFunc func(ctx context.Context) error
}

// Add mocks the behavior of book creation by the repository.
func (m *MockBookStorage) Add(ctx context.Context, id string, book Book) error {
	return m.AddFunc(ctx, id, book)
}

// GetOne mocks the behavior of retrieving a book by the repository.
func (m *MockBookStorage) GetOne(ctx context.Context, id string) (Book, error) {
	return m.GetOneFunc(ctx, id)
}

// Delete mocks the behavior of deleting a book by the repository.
func (m *MockBookStorage) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

// Update mocks the behavior of updating a book by the repository.
func (m *MockBookStorage) Update(ctx context.Context, id string, book Book) (Book, error) {
	return m.UpdateFunc(ctx, id, book)
}

// GetAll mocks the behavior of retrieving all books by the repository.
func (m *MockBookStorage) GetAll(ctx context.Context) ([]Book, error) {
	return m.GetAllFunc(ctx)
}

// DeleteAll mocks the behavior of removing all books by the repository.
func (m *MockBookStorage) DeleteAll(ctx context.Context) error {
	return m.DeleteAllFunc(ctx)
}

// MockCatalogStorage mocks the relational catalog repository.
type MockCatalogStorage struct {
	AddCategoryFunc      func(ctx context.Context, category Category, event OutboxEvent) error
	GetCategoryFunc      func(ctx context.Context, id string) (Category, error)
	GetAllCategoriesFunc func(ctx context.Context) ([]Category, error)
	AddProductFunc       func(ctx context.Context, product Product, event OutboxEvent) error
	GetProductFunc       func(ctx context.Context, id string) (Product, error)
	UpdateProductFunc    func(ctx context.Context, product Product, event OutboxEvent) (Product, error)
	DeleteProductFunc    func(ctx context.Context, id string, event OutboxEvent) error
	SearchProductsFunc   func(ctx context.Context, filter ProductFilter) ([]Product, error)
}

func (m *MockCatalogStorage) AddCategory(ctx context.Context, category Category, event OutboxEvent) error {
	return m.AddCategoryFunc(ctx, category, event)
}

func (m *MockCatalogStorage) GetCategory(ctx context.Context, id string) (Category, error) {
	return m.GetCategoryFunc(ctx, id)
}

func (m *MockCatalogStorage) GetAllCategories(ctx context.Context) ([]Category, error) {
	return m.GetAllCategoriesFunc(ctx)
}

func (m *MockCatalogStorage) AddProduct(ctx context.Context, product Product, event OutboxEvent) error {
	return m.AddProductFunc(ctx, product, event)
}

func (m *MockCatalogStorage) GetProduct(ctx context.Context, id string) (Product, error) {
	return m.GetProductFunc(ctx, id)
}

func (m *MockCatalogStorage) UpdateProduct(ctx context.Context, product Product, event OutboxEvent) (Product, error) {
	return m.UpdateProductFunc(ctx, product, event)
}

func (m *MockCatalogStorage) DeleteProduct(ctx context.Context, id string, event OutboxEvent) error {
	return m.DeleteProductFunc(ctx, id, event)
}

func (m *MockCatalogStorage) SearchProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return m.SearchProductsFunc(ctx, filter)
}

// MockReviewStorage mocks the relational review repository.
type MockReviewStorage struct {
	AddReviewFunc           func(ctx context.Context, review Review, event OutboxEvent) error
	GetReviewsByProductFunc func(ctx context.Context, productID string) ([]Review, error)
}

func (m *MockReviewStorage) AddReview(ctx context.Context, review Review, event OutboxEvent) error {
	return m.AddReviewFunc(ctx, review, event)
}

func (m *MockReviewStorage) GetReviewsByProduct(ctx context.Context, productID string) ([]Review, error) {
	return m.GetReviewsByProductFunc(ctx, productID)
}

// MockReviewCache is an in-memory ReviewCache which counts its calls.
type MockReviewCache struct {
	mu          sync.Mutex
	items       map[string][]Review
	GetErr      error
	Gets        int
	Sets        int
	Invalidated []string
}

func NewMockReviewCache() *MockReviewCache {
	return &MockReviewCache{items: make(map[string][]Review)}
}

func (m *MockReviewCache) Get(_ context.Context, productID string) ([]Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.items[productID], nil
}

func (m *MockReviewCache) Set(_ context.Context, productID string, reviews []Review, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	if reviews == nil {
		reviews = []Review{}
	}
	m.items[productID] = reviews
	return nil
}

func (m *MockReviewCache) Invalidate(_ context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, productID)
	m.Invalidated = append(m.Invalidated, productID)
	return nil
}

// MockNotificationStorage keeps saved notifications in memory.
type MockNotificationStorage struct {
	mu      sync.Mutex
	items   map[string]Notification
	SaveErr error
	Saves   int
}

func NewMockNotificationStorage() *MockNotificationStorage {
	return &MockNotificationStorage{items: make(map[string]Notification)}
}

func (m *MockNotificationStorage) Save(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.items[n.ID] = n
	return nil
}

func (m *MockNotificationStorage) Get(_ context.Context, id string) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return n, ErrNotificationNotFound
	}
	return n, nil
}

func (m *MockNotificationStorage) GetAll(_ context.Context) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Notification, 0, len(m.items))
	for _, n := range m.items {
		all = append(all, n)
	}
	return all, nil
}

// MockSender records the notifications it was asked to send.
type MockSender struct {
	mu      sync.Mutex
	channel string
	Err     error
	Sent    []Notification
}

func NewMockSender(channel string, err error) *MockSender {
	return &MockSender{channel: channel, Err: err}
}

func (m *MockSender) Channel() string { return m.channel }

func (m *MockSender) Send(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return m.Err
}

// queued is an item pushed onto a MockQueue.
type queued struct {
	qid  string
	data interface{}
}

// MockQueue implements Queuer. Pushed values are recorded and never popped
// unless PopFunc is set.
type MockQueue struct {
	mu      sync.Mutex
	Items   []queued
	PushErr error
	PopFunc func(ctx context.Context, qids ...string) (string, []byte, error)
}

func (m *MockQueue) Push(_ context.Context, qid string, v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PushErr != nil {
		return m.PushErr
	}
	m.Items = append(m.Items, queued{qid: qid, data: v})
	return nil
}

func (m *MockQueue) Pop(ctx context.Context, qids ...string) (string, []byte, error) {
	if m.PopFunc != nil {
		return m.PopFunc(ctx, qids...)
	}
	<-ctx.Done()
	return "", nil, ctx.Err()
}

func (m *MockQueue) Len(_ context.Context, qid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, it := range m.Items {
		if it.qid == qid {
			n++
		}
	}
	return n, nil
}

// Pushed returns the ids of the queues that received an item, in order.
func (m *MockQueue) Pushed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	qids := make([]string, 0, len(m.Items))
	for _, it := range m.Items {
		qids = append(qids, it.qid)
	}
	return qids
}

// MockOutboxStorage keeps outbox events in memory.
type MockOutboxStorage struct {
	mu           sync.Mutex
	Events       []OutboxEvent
	FetchErr     error
	PurgedBefore time.Time
}

func (m *MockOutboxStorage) FetchUnpublished(_ context.Context, limit int) ([]OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	var pending []OutboxEvent
	for _, e := range m.Events {
		if e.PublishedAt == nil && len(pending) < limit {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (m *MockOutboxStorage) MarkPublished(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Events {
		if m.Events[i].ID == id {
			t := at
			m.Events[i].PublishedAt = &t
		}
	}
	return nil
}

func (m *MockOutboxStorage) IncrementAttempts(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Events {
		if m.Events[i].ID == id {
			m.Events[i].Attempts++
		}
	}
	return nil
}

func (m *MockOutboxStorage) PurgePublished(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PurgedBefore = before
	kept := m.Events[:0]
	var n int64
	for _, e := range m.Events {
		if e.PublishedAt != nil && e.PublishedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.Events = kept
	return n, nil
}

// MockAuthService mocks the token issuer and validator.
type MockAuthService struct {
	AuthenticateFunc     func(username, password string) (AuthToken, error)
	ValidateFunc         func(tokenString string) (*jwt.RegisteredClaims, error)
	TokenFromRequestFunc func(r *http.Request) (string, error)
}

func (m *MockAuthService) Authenticate(username, password string) (AuthToken, error) {
	return m.AuthenticateFunc(username, password)
}

func (m *MockAuthService) Validate(tokenString string) (*jwt.RegisteredClaims, error) {
	return m.ValidateFunc(tokenString)
}

func (m *MockAuthService) TokenFromRequest(r *http.Request) (string, error) {
	return m.TokenFromRequestFunc(r)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
// equals to `2023-07-02 00:00:00 +0000 UTC` in String format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// NewTicker returns a real ticker so that periodic workers can be driven in tests.
func (mck *MockClocker) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}
