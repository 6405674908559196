package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/vitos/crypto_watch/internal/domain"
)

var errStoreDown = errors.New("store down")

type memStore struct {
	mu      sync.Mutex
	data       map[string]string
	failSet    bool
	failKey    string
	failDelete bool
}

func newMemStore(kv map[string]string) *memStore {
	data := make(map[string]string, len(kv))
	for k, v := range kv {
		data[k] = v
	}
	return &memStore{data: data}
}

func (m *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet || key == m.failKey {
		return errStoreDown
	}
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return errStoreDown
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type fakeAuth struct {
	users map[string]string
	err   error
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.users[email] != password {
		return nil, &domain.APIError{StatusCode: 401, Message: "Invalid email or password"}
	}
	return &domain.Identity{UserID: "u-" + email, Email: email, Token: "tok-" + email}, nil
}

func (f *fakeAuth) Register(ctx context.Context, email, password string) (*domain.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.users[email]; ok {
		return nil, &domain.APIError{StatusCode: 400, Message: "User already exists"}
	}
	f.users[email] = password
	return &domain.Identity{UserID: "u-" + email, Email: email, Token: "tok-" + email}, nil
}

// fakeRemote is an in-memory FavoritesBackend with failure injection.
type fakeRemote struct {
	mu      sync.Mutex
	records map[string]domain.FavoriteRecord
	err     error
	gate    chan struct{}
	entered chan string
	adds    int

	// List takes its copy first, then signals listed and waits on listGate.
	listGate chan struct{}
	listed   chan struct{}
}

func newFakeRemote(ids ...string) *fakeRemote {
	r := &fakeRemote{records: make(map[string]domain.FavoriteRecord)}
	for _, id := range ids {
		r.records[id] = domain.FavoriteRecord{CryptoID: id, Name: id}
	}
	return r
}

func (f *fakeRemote) wait(id string) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if entered != nil {
		entered <- id
	}
	if gate != nil {
		<-gate
	}
}

func (f *fakeRemote) List(ctx context.Context) ([]domain.FavoriteRecord, error) {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return nil, f.err
	}
	out := make([]domain.FavoriteRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	gate, listed := f.listGate, f.listed
	f.mu.Unlock()

	if listed != nil {
		listed <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return out, nil
}

func (f *fakeRemote) Add(ctx context.Context, record domain.FavoriteRecord) error {
	f.wait(record.CryptoID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	if f.err != nil {
		return f.err
	}
	if _, ok := f.records[record.CryptoID]; ok {
		return domain.ErrConflict
	}
	f.records[record.CryptoID] = record
	return nil
}

func (f *fakeRemote) Remove(ctx context.Context, cryptoID string) error {
	f.wait(cryptoID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.records[cryptoID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.records, cryptoID)
	return nil
}

func (f *fakeRemote) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRemote) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[id]
	return ok
}

type staticIdentity struct {
	mu sync.Mutex
	id *domain.Identity
}

func (s *staticIdentity) Current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *staticIdentity) set(id *domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}
