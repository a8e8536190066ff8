package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakif/social-host/internal/apperror"
	"github.com/sakif/social-host/internal/model"
	"github.com/sakif/social-host/internal/repository"
)

// mockRepo is an in-memory repository.AccountRepository. It enforces the
// same uniqueness rules as the real stores.
type mockRepo struct {
	mu       sync.Mutex
	byID     map[string]*model.Account
	nextID   int
	failNext map[string]error // method name → error returned once
}

var _ repository.AccountRepository = (*mockRepo)(nil)

func newMockRepo() *mockRepo {
	return &mockRepo{
		byID:     make(map[string]*model.Account),
		failNext: make(map[string]error),
	}
}

func (m *mockRepo) fail(method string) error {
	if err, ok := m.failNext[method]; ok {
		delete(m.failNext, method)
		return err
	}
	return nil
}

func (m *mockRepo) find(pred func(*model.Account) bool) *model.Account {
	for _, a := range m.byID {
		if pred(a) {
			return a
		}
	}
	return nil
}

func notFound() error {
	return apperror.NotFound(apperror.CodeAccountNotFound, "File not found")
}

func (m *mockRepo) Create(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Create"); err != nil {
		return err
	}
	if m.find(func(x *model.Account) bool { return x.Nickname == a.Nickname }) != nil {
		return apperror.Conflict(apperror.CodeNicknameTaken, fmt.Sprintf("Nickname '%s' is already taken", a.Nickname))
	}
	if m.find(func(x *model.Account) bool { return x.VFileToken == a.VFileToken }) != nil {
		return apperror.Conflict(apperror.CodeTokenCollision, "vfile token already in use")
	}
	m.nextID++
	a.ID = fmt.Sprintf("mock-%d", m.nextID)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.UpdatedAt = a.CreatedAt
	if a.LastAccessedAt.IsZero() {
		a.LastAccessedAt = a.CreatedAt
	}
	stored := *a
	m.byID[a.ID] = &stored
	return nil
}

func (m *mockRepo) GetByNickname(_ context.Context, nickname string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetByNickname"); err != nil {
		return nil, err
	}
	a := m.find(func(x *model.Account) bool { return x.Nickname == nickname })
	if a == nil {
		return nil, notFound()
	}
	result := *a
	return &result, nil
}

func (m *mockRepo) GetByToken(_ context.Context, token string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetByToken"); err != nil {
		return nil, err
	}
	a := m.find(func(x *model.Account) bool { return x.VFileToken == token })
	if a == nil {
		return nil, notFound()
	}
	result := *a
	return &result, nil
}

func (m *mockRepo) UpdateContent(_ context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return notFound()
	}
	a.Content = content
	a.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepo) UpdateRedirect(_ context.Context, id, redirectURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return notFound()
	}
	a.RedirectURL = redirectURL
	a.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepo) Touch(_ context.Context, nickname string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Touch"); err != nil {
		return err
	}
	a := m.find(func(x *model.Account) bool { return x.Nickname == nickname })
	if a == nil {
		return notFound()
	}
	a.LastAccessedAt = at
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return notFound()
	}
	delete(m.byID, id)
	return nil
}

func (m *mockRepo) ListStale(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListStale"); err != nil {
		return nil, err
	}
	var out []string
	for _, a := range m.byID {
		if a.LastAccessedAt.Before(cutoff) {
			out = append(out, a.Nickname)
		}
	}
	return out, nil
}

func (m *mockRepo) DeleteIfStale(_ context.Context, nickname string, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteIfStale:" + nickname); err != nil {
		return false, err
	}
	a := m.find(func(x *model.Account) bool { return x.Nickname == nickname })
	if a == nil || !a.LastAccessedAt.Before(cutoff) {
		return false, nil
	}
	delete(m.byID, a.ID)
	return true, nil
}

func (m *mockRepo) Ping(context.Context) error {
	return nil
}

// count returns how many accounts exist.
func (m *mockRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// backdate moves an account's last access into the past.
func (m *mockRepo) backdate(nickname string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(func(x *model.Account) bool { return x.Nickname == nickname }); a != nil {
		a.LastAccessedAt = at
	}
}

var errStoreDown = errors.New("store unavailable")

// gatedRepo pauses one GetByNickname after it has read the row, until the
// test closes release. Use arm to pick which call is held.
type gatedRepo struct {
	*mockRepo
	armed   atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{
		mockRepo: newMockRepo(),
		loaded:   make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (g *gatedRepo) arm() {
	g.armed.Store(true)
}

func (g *gatedRepo) GetByNickname(ctx context.Context, nickname string) (*model.Account, error) {
	a, err := g.mockRepo.GetByNickname(ctx, nickname)
	if g.armed.CompareAndSwap(true, false) {
		close(g.loaded)
		<-g.release
	}
	return a, err
}
