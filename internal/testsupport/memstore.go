// Package testsupport provides in-memory stand-ins for the ClickHouse event
// store and the Postgres user store, plus fixtures shared by package tests.
package testsupport

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"componentlab/api/models"
	"componentlab/api/store"
)

// EventStore is an in-memory append-only event log. Setting Err makes every
// read fail with it; setting AppendErr makes Append fail.
type EventStore struct {
	mu        sync.RWMutex
	events    []models.InteractionEvent
	Err       error
	AppendErr error
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) Append(_ context.Context, event *models.InteractionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *EventStore) CountAll(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return uint64(len(s.events)), nil
}

func (s *EventStore) sorted() []models.InteractionEvent {
	out := make([]models.InteractionEvent, len(s.events))
	copy(out, s.events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (s *EventStore) FindPage(_ context.Context, skip, limit int) ([]models.InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	all := s.sorted()
	if skip >= len(all) {
		return []models.InteractionEvent{}, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

func (s *EventStore) FindAll(_ context.Context) ([]models.InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.sorted(), nil
}

func (s *EventStore) CountByComponent(_ context.Context, limit int) ([]models.ComponentCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	counts := map[string]uint64{}
	for _, e := range s.events {
		counts[e.ComponentName]++
	}
	out := make([]models.ComponentCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.ComponentCount{Component: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *EventStore) CountByAction(_ context.Context) ([]models.ActionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	counts := map[models.ComponentAction]uint64{}
	for _, e := range s.events {
		counts[models.ComponentAction{Component: e.ComponentName, Action: e.Action}]++
	}
	out := make([]models.ActionCount, 0, len(counts))
	for key, n := range counts {
		out = append(out, models.ActionCount{Key: key, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := strings.Compare(out[i].Key.Component, out[j].Key.Component); c != 0 {
			return c < 0
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func (s *EventStore) CountByUserType(_ context.Context) ([]models.UserTypeCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	counts := map[models.UserType]uint64{}
	for _, e := range s.events {
		counts[e.UserType]++
	}
	out := make([]models.UserTypeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, models.UserTypeCount{UserType: t, Count: n})
	}
	return out, nil
}

// Seed appends events with explicit timestamps, spaced one second apart
// starting at base, oldest first.
func (s *EventStore) Seed(base time.Time, events ...models.InteractionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range events {
		if e.ID == "" {
			e.ID = uuid.Must(uuid.NewV7()).String()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = base.Add(time.Duration(i) * time.Second)
		}
		if e.UserType == "" {
			e.UserType = models.UserTypeAnonymous
		}
		s.events = append(s.events, e)
	}
}

// UserStore is an in-memory user directory keyed by id and email.
type UserStore struct {
	mu    sync.RWMutex
	byID  map[string]*models.User
	Err   error
	clock func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:  map[string]*models.User{},
		clock: func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserStore) CreateUser(_ context.Context, name, email string, hashedPassword []byte) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.byID {
		if u.Email == email {
			return nil, store.ErrEmailTaken
		}
	}
	now := s.clock()
	u := &models.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.byID[u.ID] = u
	return u, nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *UserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) FindByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// Delete removes a user; events referencing it are left untouched.
func (s *UserStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}
