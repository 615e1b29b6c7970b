// Package tracking records component interactions and serves the read paths
// over them: aggregate statistics, the paged review view and the full export.
package tracking

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"componentlab/api/models"
)

const (
	// TopComponents bounds StatsSnapshot.ByComponent.
	TopComponents   = 10
	DefaultPageSize = 10
	MaxPageSize     = 25
)

// EventStore is the append-only log of interaction events.
type EventStore interface {
	Append(ctx context.Context, event *models.InteractionEvent) error
	CountAll(ctx context.Context) (uint64, error)
	// FindPage returns events ordered by timestamp descending.
	FindPage(ctx context.Context, skip, limit int) ([]models.InteractionEvent, error)
	// FindAll returns every event ordered by timestamp descending.
	FindAll(ctx context.Context) ([]models.InteractionEvent, error)
	CountByComponent(ctx context.Context, limit int) ([]models.ComponentCount, error)
	CountByAction(ctx context.Context) ([]models.ActionCount, error)
	CountByUserType(ctx context.Context) ([]models.UserTypeCount, error)
}

// UserDirectory resolves weak user references. Unknown ids are simply absent
// from the returned map.
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

type Service struct {
	events EventStore
	users  UserDirectory
	now    func() time.Time
	newID  func() string
}

func NewService(events EventStore, users UserDirectory) *Service {
	return &Service{
		events: events,
		users:  users,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Track validates a submission and appends it to the event store.
func (s *Service) Track(ctx context.Context, req models.TrackRequest) (*models.InteractionEvent, error) {
	event, err := s.newEvent(req)
	if err != nil {
		return nil, err
	}
	if err := s.events.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append interaction event: %w", err)
	}
	return event, nil
}

func (s *Service) newEvent(req models.TrackRequest) (*models.InteractionEvent, error) {
	verr := &ValidationError{}

	name := strings.TrimSpace(req.ComponentName)
	if name == "" {
		verr.add("nombre", "El nombre del componente es requerido")
	}
	action := strings.TrimSpace(req.Action)
	if action == "" {
		verr.add("accion", "La acción es requerida")
	}

	userRef := strings.TrimSpace(req.UserRef)
	userType := req.UserType
	if userType == "" {
		userType = models.UserTypeAnonymous
		if userRef != "" {
			userType = models.UserTypeRegistered
		}
	}

	switch {
	case !userType.Valid():
		verr.add("tipo_usuario", `tipo_usuario debe ser "anonymous" o "registered"`)
	case userType == models.UserTypeRegistered && userRef == "":
		verr.add("usuario", "El usuario es requerido para interacciones registradas")
	case userType == models.UserTypeAnonymous && userRef != "":
		verr.add("usuario", "Las interacciones anónimas no pueden referenciar un usuario")
	}
	if userRef != "" {
		if _, err := uuid.Parse(userRef); err != nil {
			verr.add("usuario", "ID de usuario inválido")
		}
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}

	event := &models.InteractionEvent{
		ID:            s.newID(),
		ComponentName: name,
		Action:        action,
		Timestamp:     s.now(),
		UserType:      userType,
	}
	if userRef != "" {
		event.UserRef = &userRef
	}
	return event, nil
}

// Stats computes a full snapshot. The four aggregate queries run concurrently
// and each may observe a slightly different point in time.
func (s *Service) Stats(ctx context.Context) (*models.StatsSnapshot, error) {
	var (
		total       uint64
		byComponent []models.ComponentCount
		byAction    []models.ActionCount
		byUserType  []models.UserTypeCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = s.events.CountAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		byComponent, err = s.events.CountByComponent(gctx, TopComponents)
		return err
	})
	g.Go(func() (err error) {
		byAction, err = s.events.CountByAction(gctx)
		return err
	})
	g.Go(func() (err error) {
		byUserType, err = s.events.CountByUserType(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatsUnavailable, err)
	}

	if len(byComponent) > TopComponents {
		byComponent = byComponent[:TopComponents]
	}

	return &models.StatsSnapshot{
		Total:       total,
		ByComponent: nonNil(byComponent),
		ByAction:    nonNil(byAction),
		ByUserType:  nonNil(byUserType),
	}, nil
}

// ClampPage normalises paging input: page >= 1 and 1 <= limit <= MaxPageSize.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

// NewPagination derives the paging metadata for a clamped page and limit.
func NewPagination(page, limit int, total uint64) models.Pagination {
	totalPages := int((total + uint64(limit) - 1) / uint64(limit))
	return models.Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// Page returns one window of events, newest first, joined with user names.
func (s *Service) Page(ctx context.Context, page, limit int) (*models.PagedEvents, error) {
	page, limit = ClampPage(page, limit)

	var (
		events []models.InteractionEvent
		total  uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	// A window whose offset does not fit in an int is past any stored event.
	if page-1 <= math.MaxInt/limit {
		skip := (page - 1) * limit
		g.Go(func() (err error) {
			events, err = s.events.FindPage(gctx, skip, limit)
			return err
		})
	}
	g.Go(func() (err error) {
		total, err = s.events.CountAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read events page: %w", err)
	}

	users, err := s.resolveUsers(ctx, events)
	if err != nil {
		return nil, err
	}

	data := make([]models.PagedEvent, 0, len(events))
	for _, e := range events {
		item := models.PagedEvent{
			ID:            e.ID,
			ComponentName: e.ComponentName,
			Action:        e.Action,
			Timestamp:     e.Timestamp,
			UserType:      e.UserType,
		}
		if e.UserRef != nil {
			if u, ok := users[*e.UserRef]; ok {
				name := u.Name
				item.UserName = &name
			}
		}
		data = append(data, item)
	}

	return &models.PagedEvents{
		Data:       data,
		Pagination: NewPagination(page, limit, total),
	}, nil
}

// Export returns every event, newest first, joined with user name and email.
func (s *Service) Export(ctx context.Context) ([]models.ExportRecord, error) {
	events, err := s.events.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read events for export: %w", err)
	}

	users, err := s.resolveUsers(ctx, events)
	if err != nil {
		return nil, err
	}

	records := make([]models.ExportRecord, 0, len(events))
	for _, e := range events {
		rec := models.ExportRecord{
			ID:            e.ID,
			ComponentName: e.ComponentName,
			Action:        e.Action,
			Timestamp:     e.Timestamp,
			UserType:      e.UserType,
		}
		if e.UserRef != nil {
			if u, ok := users[*e.UserRef]; ok {
				rec.User = &models.ExportUser{ID: u.ID, Name: u.Name, Email: u.Email}
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Service) resolveUsers(ctx context.Context, events []models.InteractionEvent) (map[string]*models.User, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range events {
		if e.UserRef == nil {
			continue
		}
		if _, ok := seen[*e.UserRef]; ok {
			continue
		}
		seen[*e.UserRef] = struct{}{}
		ids = append(ids, *e.UserRef)
	}
	if len(ids) == 0 {
		return map[string]*models.User{}, nil
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve users: %w", err)
	}
	return users, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
