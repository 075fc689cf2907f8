package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/taskboard/api/internal/domain/entities"
	"github.com/taskboard/api/internal/ports"
)

var errStoreDown = errors.New("connection refused")

type fakeTaskRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*entities.Task
	clock  time.Time
	err    error
	calls  int

	// afterCount runs once CountByStatus has read the rows, outside the lock
	afterCount func()
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{
		tasks: make(map[int64]*entities.Task),
		clock: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (r *fakeTaskRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeTaskRepo) Create(_ context.Context, task *entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.nextID++
	task.ID = r.nextID
	task.CreatedAt = r.tick()
	task.UpdatedAt = task.CreatedAt
	stored := *task
	r.tasks[task.ID] = &stored
	return nil
}

func (r *fakeTaskRepo) FindOne(_ context.Context, lookup ports.TaskLookup) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.tasks[lookup.ID]
	if !ok || t.UserID != lookup.UserID || (t.IsDeleted && !lookup.IncludeDeleted) {
		return nil, entities.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	existing, ok := r.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return entities.ErrTaskNotFound
	}
	task.UpdatedAt = r.tick()
	stored := *task
	r.tasks[task.ID] = &stored
	return nil
}

func (r *fakeTaskRepo) SoftDelete(_ context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID || t.IsDeleted {
		return entities.ErrTaskNotFound
	}
	t.IsDeleted = true
	t.UpdatedAt = r.tick()
	return nil
}

func (r *fakeTaskRepo) ListActive(_ context.Context, userID int64) ([]*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	var out []*entities.Task
	for _, t := range r.tasks {
		if t.UserID == userID && !t.IsDeleted {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeTaskRepo) CountByStatus(_ context.Context, userID int64) (map[entities.TaskStatus]int, error) {
	r.mu.Lock()
	r.calls++
	if r.err != nil {
		r.mu.Unlock()
		return nil, r.err
	}
	counts := make(map[entities.TaskStatus]int)
	for _, t := range r.tasks {
		if t.UserID == userID {
			counts[t.Status]++
		}
	}
	hook := r.afterCount
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return counts, nil
}

// put stores a row directly, bypassing validation
func (r *fakeTaskRepo) put(task entities.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	task.ID = r.nextID
	task.CreatedAt = r.tick()
	r.tasks[task.ID] = &task
}

type fakeStatsCache struct {
	entries     map[int64]entities.TaskStats
	generations map[int64]int64
	invalidated []int64
	err         error
}

func newFakeStatsCache() *fakeStatsCache {
	return &fakeStatsCache{
		entries:     make(map[int64]entities.TaskStats),
		generations: make(map[int64]int64),
	}
}

func (c *fakeStatsCache) Generation(_ context.Context, userID int64) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.generations[userID], nil
}

func (c *fakeStatsCache) Get(_ context.Context, userID int64) (*entities.TaskStats, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	s, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *fakeStatsCache) Set(_ context.Context, userID, generation int64, stats entities.TaskStats) error {
	if c.err != nil {
		return c.err
	}
	if c.generations[userID] != generation {
		return nil
	}
	c.entries[userID] = stats
	return nil
}

func (c *fakeStatsCache) Invalidate(_ context.Context, userID int64) error {
	c.invalidated = append(c.invalidated, userID)
	if c.err != nil {
		return c.err
	}
	c.generations[userID]++
	delete(c.entries, userID)
	return nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*entities.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*entities.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

type fakeAuthRepo struct {
	mu     sync.Mutex
	tokens map[string]*entities.RefreshToken
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{tokens: make(map[string]*entities.RefreshToken)}
}

func (r *fakeAuthRepo) CreateRefreshToken(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenHash] = &entities.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (r *fakeAuthRepo) GetRefreshToken(_ context.Context, tokenHash string) (*entities.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, entities.ErrInvalidToken
	}
	cp := *t
	return &cp, nil
}

func (r *fakeAuthRepo) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[tokenHash]; ok {
		now := time.Now()
		t.RevokedAt = &now
	}
	return nil
}

func (r *fakeAuthRepo) RevokeAllUserTokens(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}
