// Package groups is the reconciled local cache for the Groups entity family.
// The slices here are the only mutable shared state for groups, and only the
// operations in this package mutate them, always after their own API call
// completes. Reads return copies.
package groups

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/parishops/flock/pkg/apperrors"
	"github.com/parishops/flock/pkg/logging"
	"github.com/parishops/flock/pkg/models"
	"github.com/parishops/flock/pkg/permissions"
)

// API is the slice of the remote collaborator the group cache consumes.
type API interface {
	GetAll(ctx context.Context, filter models.GroupFilter) ([]models.Group, error)
	GetUserGroups(ctx context.Context) ([]models.Group, error)
	GetOne(ctx context.Context, id string) (*models.Group, error)
	Create(ctx context.Context, data *models.Group) (*models.Group, error)
	Update(ctx context.Context, id string, data *models.Group) (*models.Group, error)
	Delete(ctx context.Context, id string) error
	GetMembers(ctx context.Context, groupID string) ([]models.GroupMember, error)
	AddMember(ctx context.Context, groupID, userID, role string) (*models.Group, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
	GetSubgroups(ctx context.Context, groupID string) ([]models.Group, error)
	CreateSubgroup(ctx context.Context, groupID string, data *models.Group) (*models.Group, error)
	UpdateSubgroup(ctx context.Context, groupID, subgroupID string, data *models.Group) (*models.Group, error)
	DeleteSubgroup(ctx context.Context, groupID, subgroupID string) error
	GetStats(ctx context.Context) (*models.GroupStats, error)
}

// SessionSource supplies the current identity for permission-scoped calls.
type SessionSource interface {
	Identity() *models.Identity
}

// Service caches the current user's groups, the all-groups view, the focused
// group, and aggregate statistics.
type Service struct {
	api     API
	session SessionSource
	logger  *zap.Logger

	mu         sync.Mutex
	userGroups []models.Group
	allGroups  []models.Group
	current    *models.Group
	stats      models.GroupStats
	inflight   int
	lastErr    string

	sf   singleflight.Group
	cron *cron.Cron
}

// NewService wires the group cache. Register Clear with the session's logout
// hooks so per-session state dies with the session.
func NewService(api API, session SessionSource, logger *zap.Logger) *Service {
	return &Service{
		api:     api,
		session: session,
		logger:  logger.Named("groups"),
	}
}

// begin marks an operation in flight. The returned func must be deferred so
// the loading flag clears on every exit path.
func (s *Service) begin() func() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

// Loading reports whether any cache operation is in flight.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// LastError returns the most recent read failure, or "".
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// setErr records a read failure without touching cached data.
func (s *Service) setErr(msg string, err error) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	s.logger.Error(msg, zap.String("error", logging.SanitizeError(err)))
}

func (s *Service) clearErr() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// live reports whether the session that started an operation is still the one
// consuming its result. Late results after logout are discarded.
func (s *Service) live(started *models.Identity) bool {
	now := s.session.Identity()
	return started != nil && now != nil && now.ID == started.ID
}

// Clear drops all per-session cache state. Wired to session logout.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userGroups = nil
	s.allGroups = nil
	s.current = nil
	s.stats = models.GroupStats{}
	s.lastErr = ""
}

// UserGroups returns a copy of the current user's groups.
func (s *Service) UserGroups() []models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Group(nil), s.userGroups...)
}

// AllGroups returns a copy of the all-groups slice.
func (s *Service) AllGroups() []models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Group(nil), s.allGroups...)
}

// Current returns the focused group, or nil.
func (s *Service) Current() *models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Stats returns the cached aggregate statistics.
func (s *Service) Stats() models.GroupStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// FetchUserGroups replaces the user-groups slice wholesale. On failure the
// prior slice stays available and the error is recorded.
func (s *Service) FetchUserGroups(ctx context.Context) error {
	identity := s.session.Identity()
	if identity == nil {
		return nil
	}
	done := s.begin()
	defer done()

	groups, err := s.api.GetUserGroups(ctx)
	if err != nil {
		s.setErr("Failed to fetch your groups", err)
		return err
	}
	if !s.live(identity) {
		return nil
	}
	s.mu.Lock()
	s.userGroups = groups
	s.mu.Unlock()
	s.clearErr()
	return nil
}

// FetchAllGroups replaces the all-groups slice wholesale.
func (s *Service) FetchAllGroups(ctx context.Context, filter models.GroupFilter) error {
	identity := s.session.Identity()
	done := s.begin()
	defer done()

	groups, err := s.api.GetAll(ctx, filter)
	if err != nil {
		s.setErr("Failed to fetch groups", err)
		return err
	}
	if identity != nil && !s.live(identity) {
		return nil
	}
	s.mu.Lock()
	s.allGroups = groups
	s.mu.Unlock()
	s.clearErr()
	return nil
}

// FetchStats refreshes the aggregate statistics. Failures are logged but do
// not disturb the cached values.
func (s *Service) FetchStats(ctx context.Context) error {
	done := s.begin()
	defer done()

	stats, err := s.api.GetStats(ctx)
	if err != nil {
		s.logger.Warn("Failed to fetch group stats", zap.String("error", logging.SanitizeError(err)))
		return err
	}
	s.mu.Lock()
	s.stats = *stats
	s.mu.Unlock()
	return nil
}

// FetchGroup loads one group, permission-checks view access, and focuses it.
// On denial the focused group is untouched and the error propagates.
// Concurrent fetches of the same id are coalesced.
func (s *Service) FetchGroup(ctx context.Context, id string) (*models.Group, error) {
	identity := s.session.Identity()
	done := s.begin()
	defer done()

	v, err, _ := s.sf.Do(id, func() (any, error) {
		return s.api.GetOne(ctx, id)
	})
	if err != nil {
		s.setErr("Failed to fetch group details", err)
		return nil, err
	}
	group := v.(*models.Group)

	if !permissions.CheckGroup(identity, permissions.GroupView, group) {
		return nil, permissions.Denied(permissions.GroupView)
	}
	if !s.live(identity) {
		return group, nil
	}
	s.mu.Lock()
	s.current = group
	s.mu.Unlock()
	s.clearErr()
	return group, nil
}

// Create validates locally, then creates the group and appends it to both the
// all-groups and user-groups slices. An empty name aborts before any network
// call.
func (s *Service) Create(ctx context.Context, data *models.Group) (*models.Group, error) {
	if data == nil || data.Name == "" {
		return nil, apperrors.ValidationError{"name": "Group name is required"}
	}
	identity := s.session.Identity()
	done := s.begin()
	defer done()

	created, err := s.api.Create(ctx, data)
	if err != nil {
		s.setErr("Failed to create group", err)
		return nil, err
	}
	if s.live(identity) {
		s.mu.Lock()
		s.allGroups = append(s.allGroups, *created)
		s.userGroups = append(s.userGroups, *created)
		s.mu.Unlock()
		s.clearErr()
	}
	return created, nil
}

// Update permission-checks edit against the freshly fetched group, then
// replaces the entity by id in every slice that holds it. Never a partial
// merge; stale subfields must not survive.
func (s *Service) Update(ctx context.Context, id string, data *models.Group) (*models.Group, error) {
	identity := s.session.Identity()
	done := s.begin()
	defer done()

	group, err := s.api.GetOne(ctx, id)
	if err != nil {
		s.setErr("Failed to update group", err)
		return nil, err
	}
	if !permissions.CheckGroup(identity, permissions.GroupEdit, group) {
		return nil, permissions.Denied(permissions.GroupEdit)
	}

	updated, err := s.api.Update(ctx, id, data)
	if err != nil {
		s.setErr("Failed to update group", err)
		return nil, err
	}
	if s.live(identity) {
		s.replaceEverywhere(updated)
		s.clearErr()
	}
	return updated, nil
}

// replaceEverywhere swaps the updated entity into every cache slice holding
// its id, including the focused group.
func (s *Service) replaceEverywhere(updated *models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.allGroups {
		if s.allGroups[i].ID == updated.ID {
			s.allGroups[i] = *updated
		}
	}
	for i := range s.userGroups {
		if s.userGroups[i].ID == updated.ID {
			s.userGroups[i] = *updated
		}
	}
	if s.current != nil && s.current.ID == updated.ID {
		cp := *updated
		s.current = &cp
	}
}

// Delete permission-checks delete, then removes the entity from every slice
// and clears the focused group if it was the deleted one.
func (s *Service) Delete(ctx context.Context, id string) error {
	identity := s.session.Identity()
	done := s.begin()
	defer done()

	group, err := s.api.GetOne(ctx, id)
	if err != nil {
		s.setErr("Failed to delete group", err)
		return err
	}
	if !permissions.CheckGroup(identity, permissions.GroupDelete, group) {
		return permissions.Denied(permissions.GroupDelete)
	}

	if err := s.api.Delete(ctx, id); err != nil {
		s.setErr("Failed to delete group", err)
		return err
	}
	if !s.live(identity) {
		return nil
	}
	s.mu.Lock()
	s.allGroups = removeByID(s.allGroups, id)
	s.userGroups = removeByID(s.userGroups, id)
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	s.mu.Unlock()
	s.clearErr()
	return nil
}

func removeByID(groups []models.Group, id string) []models.Group {
	out := groups[:0]
	for _, g := range groups {
		if g.ID != id {
			out = append(out, g)
		}
	}
	return out
}

// Join adds the current user to the group as a member, then forces a re-fetch
// of the user's groups; membership-derived fields are not inferable locally.
// The focused group is patched in place when it matches.
func (s *Service) Join(ctx context.Context, id string) error {
	identity := s.session.Identity()
	if identity == nil {
		return apperrors.ErrUnauthorized
	}
	done := s.begin()
	defer done()

	updated, err := s.api.AddMember(ctx, id, identity.ID, models.GroupRoleMember)
	if err != nil {
		s.setErr("Failed to join group", err)
		return err
	}
	if err := s.FetchUserGroups(ctx); err != nil {
		return err
	}
	if s.live(identity) {
		s.replaceEverywhere(updated)
		s.clearErr()
	}
	return nil
}

// Leave removes the current user from the group, re-fetches the user's
// groups, and refreshes the focused group when it matches.
func (s *Service) Leave(ctx context.Context, id string) error {
	identity := s.session.Identity()
	if identity == nil {
		return apperrors.ErrUnauthorized
	}
	done := s.begin()
	defer done()

	if err := s.api.RemoveMember(ctx, id, identity.ID); err != nil {
		s.setErr("Failed to leave group", err)
		return err
	}
	if err := s.FetchUserGroups(ctx); err != nil {
		return err
	}
	if s.currentIs(id) {
		// FetchGroup manages the error state itself; a failed refresh must
		// stay visible.
		if _, err := s.FetchGroup(ctx, id); err != nil {
			s.logger.Warn("Failed to refresh group after leaving",
				zap.String("group_id", id),
				zap.String("error", logging.SanitizeError(err)))
		}
	}
	return nil
}

func (s *Service) currentIs(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.ID == id
}

// refetchIfCurrent re-fetches the parent group after a nested mutation.
// Member and subgroup lists are nested and error-prone to patch manually.
func (s *Service) refetchIfCurrent(ctx context.Context, id string) {
	if !s.currentIs(id) {
		return
	}
	if _, err := s.FetchGroup(ctx, id); err != nil {
		s.logger.Warn("Failed to refresh group after mutation",
			zap.String("group_id", id),
			zap.String("error", logging.SanitizeError(err)))
	}
}

// checkParent fetches the parent group and verifies action against it.
func (s *Service) checkParent(ctx context.Context, groupID string, action permissions.GroupAction) error {
	group, err := s.api.GetOne(ctx, groupID)
	if err != nil {
		return fmt.Errorf("fetch group %s: %w", groupID, err)
	}
	if !permissions.CheckGroup(s.session.Identity(), action, group) {
		return permissions.Denied(action)
	}
	return nil
}

// Members returns the member list of a group.
func (s *Service) Members(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	return s.api.GetMembers(ctx, groupID)
}

// AddMember adds a member to the group after checking permission against the
// parent, then re-fetches the parent when focused.
func (s *Service) AddMember(ctx context.Context, groupID, userID, role string) error {
	done := s.begin()
	defer done()

	if role == "" {
		role = models.GroupRoleMember
	}
	if err := s.checkParent(ctx, groupID, permissions.GroupAddMember); err != nil {
		return err
	}
	if _, err := s.api.AddMember(ctx, groupID, userID, role); err != nil {
		return err
	}
	s.refetchIfCurrent(ctx, groupID)
	return nil
}

// RemoveMember removes a member after checking permission against the parent.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID string) error {
	done := s.begin()
	defer done()

	if err := s.checkParent(ctx, groupID, permissions.GroupRemoveMember); err != nil {
		return err
	}
	if err := s.api.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.refetchIfCurrent(ctx, groupID)
	return nil
}

// Subgroups returns the subgroup list of a group.
func (s *Service) Subgroups(ctx context.Context, groupID string) ([]models.Group, error) {
	return s.api.GetSubgroups(ctx, groupID)
}

// CreateSubgroup creates a subgroup under the parent after a permission check
// against the parent group.
func (s *Service) CreateSubgroup(ctx context.Context, groupID string, data *models.Group) (*models.Group, error) {
	if data == nil || data.Name == "" {
		return nil, apperrors.ValidationError{"name": "Subgroup name is required"}
	}
	done := s.begin()
	defer done()

	if err := s.checkParent(ctx, groupID, permissions.GroupCreateSubgroup); err != nil {
		return nil, err
	}
	created, err := s.api.CreateSubgroup(ctx, groupID, data)
	if err != nil {
		return nil, err
	}
	s.refetchIfCurrent(ctx, groupID)
	return created, nil
}

// UpdateSubgroup edits a subgroup; permission is checked against the parent.
func (s *Service) UpdateSubgroup(ctx context.Context, groupID, subgroupID string, data *models.Group) (*models.Group, error) {
	done := s.begin()
	defer done()

	if err := s.checkParent(ctx, groupID, permissions.GroupEdit); err != nil {
		return nil, err
	}
	updated, err := s.api.UpdateSubgroup(ctx, groupID, subgroupID, data)
	if err != nil {
		return nil, err
	}
	s.refetchIfCurrent(ctx, groupID)
	return updated, nil
}

// DeleteSubgroup deletes a subgroup; permission is checked against the parent.
func (s *Service) DeleteSubgroup(ctx context.Context, groupID, subgroupID string) error {
	done := s.begin()
	defer done()

	if err := s.checkParent(ctx, groupID, permissions.GroupDelete); err != nil {
		return err
	}
	if err := s.api.DeleteSubgroup(ctx, groupID, subgroupID); err != nil {
		return err
	}
	s.refetchIfCurrent(ctx, groupID)
	return nil
}

// StartAutoRefresh begins the periodic re-fetch of the user's groups and
// statistics. Stop must be called on view teardown; no orphaned timers may
// keep firing.
func (s *Service) StartAutoRefresh(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	c := cron.New()
	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if err := s.FetchUserGroups(ctx); err != nil {
			return
		}
		_ = s.FetchStats(ctx)
	}))
	c.Start()
	s.cron = c
}

// Stop cancels the auto-refresh job.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}
