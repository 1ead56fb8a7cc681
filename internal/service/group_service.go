package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/circles/internal/directory"
	"github.com/mmynk/circles/internal/metrics"
	"github.com/mmynk/circles/internal/models"
	"github.com/mmynk/circles/internal/passcode"
)

const (
	// CirclesCollection is the directory collection holding circles.
	CirclesCollection = "circles"

	fieldPasscode = "passcode"
	fieldMembers  = "members"

	// DefaultPasscodeAttempts bounds how often CreateGroup regenerates a
	// passcode that collides with an existing circle.
	DefaultPasscodeAttempts = 5
)

// GroupService manages circles: creation, lookup by passcode and joining.
type GroupService struct {
	store    directory.Store
	codes    *passcode.Generator
	attempts int
}

// NewGroupService creates a new GroupService with the given directory backend.
func NewGroupService(store directory.Store, codes *passcode.Generator) *GroupService {
	return &GroupService{store: store, codes: codes, attempts: DefaultPasscodeAttempts}
}

// WithPasscodeAttempts overrides DefaultPasscodeAttempts.
func (s *GroupService) WithPasscodeAttempts(n int) *GroupService {
	if n > 0 {
		s.attempts = n
	}
	return s
}

// Init installs the unique passcode index.
func (s *GroupService) Init(ctx context.Context) error {
	if err := s.store.EnsureUnique(ctx, CirclesCollection, fieldPasscode); err != nil {
		return fmt.Errorf("failed to index circle passcodes: %w", err)
	}
	return nil
}

// GeneratePasscode returns a fresh passcode without creating anything.
// Pass it to CreateGroupWithPasscode to create a circle under that code.
func (s *GroupService) GeneratePasscode() string {
	return s.codes.Generate()
}

// CreateGroup creates a circle whose only member is creatorName.
func (s *GroupService) CreateGroup(ctx context.Context, name, creatorName string) (*models.Group, error) {
	return s.CreateGroupWithPasscode(ctx, name, creatorName, "")
}

// CreateGroupWithPasscode is CreateGroup with a preferred passcode, usually
// one shown earlier by GeneratePasscode. The preferred code is tried first;
// if another circle already holds it, a fresh one is generated. An empty
// preferred code behaves like CreateGroup.
func (s *GroupService) CreateGroupWithPasscode(ctx context.Context, name, creatorName, preferred string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "please enter a valid circle name")
	}
	if creatorName == "" {
		return nil, invalid("creator", "required")
	}
	preferred = strings.TrimSpace(preferred)
	if preferred != "" && !passcode.Valid(preferred) {
		return nil, invalid("passcode", "must be 6 letters or digits")
	}

	slog.Info("CreateGroup request received", "name", name, "creator", creatorName)

	group := &models.Group{
		Name:      name,
		Members:   []string{creatorName},
		CreatedAt: time.Now().Unix(),
	}

	for attempt := 1; ; attempt++ {
		if attempt == 1 && preferred != "" {
			group.Passcode = preferred
		} else {
			group.Passcode = s.codes.Generate()
		}

		id, err := s.store.Insert(ctx, CirclesCollection, group)
		if err == nil {
			group.ID = id
			break
		}
		if errors.Is(err, directory.ErrDuplicate) && attempt < s.attempts {
			metrics.PasscodeCollisions.Inc()
			slog.Warn("Passcode collision, regenerating", "attempt", attempt)
			continue
		}
		slog.Error("CreateGroup failed", "name", name, "error", err)
		return nil, persistence("create circle", err)
	}

	metrics.CirclesCreated.Inc()
	slog.Info("Group created", "group_id", group.ID)

	return group, nil
}

// FindGroupByPasscode returns the circle with the given passcode.
// If several circles share the passcode, the oldest one wins.
func (s *GroupService) FindGroupByPasscode(ctx context.Context, code string) (*models.Group, error) {
	code = strings.TrimSpace(code)
	if len(code) < passcode.Length {
		return nil, invalid("passcode", "please enter a valid code")
	}

	records, err := s.store.QueryEquals(ctx, CirclesCollection, fieldPasscode, code)
	if err != nil {
		slog.Error("FindGroupByPasscode failed", "error", err)
		return nil, persistence("find circle", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("circle with code %q: %w", code, ErrNotFound)
	}
	if len(records) > 1 {
		slog.Warn("Passcode matches several circles, using the oldest", "matches", len(records))
	}

	return decodeGroup(records[0])
}

// JoinGroup adds joiningUserName to the circle with the given passcode.
// Joining twice fails with ErrAlreadyMember and writes nothing.
func (s *GroupService) JoinGroup(ctx context.Context, code, joiningUserName string) (*models.Group, error) {
	if joiningUserName == "" {
		metrics.CircleJoins.WithLabelValues("invalid").Inc()
		return nil, invalid("member", "required")
	}

	group, err := s.FindGroupByPasscode(ctx, code)
	if err != nil {
		metrics.CircleJoins.WithLabelValues(joinResult(err)).Inc()
		return nil, err
	}

	if group.HasMember(joiningUserName) {
		metrics.CircleJoins.WithLabelValues("already_member").Inc()
		return nil, ErrAlreadyMember
	}

	// The append is atomic in the directory, so concurrent joins of
	// different users cannot overwrite each other.
	added, err := s.store.AppendUnique(ctx, CirclesCollection, group.ID, fieldMembers, joiningUserName)
	if err != nil {
		metrics.CircleJoins.WithLabelValues("error").Inc()
		slog.Error("JoinGroup failed", "group_id", group.ID, "error", err)
		return nil, persistence("join circle", err)
	}
	if !added {
		metrics.CircleJoins.WithLabelValues("already_member").Inc()
		return nil, ErrAlreadyMember
	}

	group.Members = append(group.Members, joiningUserName)
	metrics.CircleJoins.WithLabelValues("joined").Inc()
	slog.Info("Member joined group", "group_id", group.ID, "members_count", len(group.Members))

	return group, nil
}

// ListGroupsForUser returns every circle userName belongs to, in directory order.
func (s *GroupService) ListGroupsForUser(ctx context.Context, userName string) ([]*models.Group, error) {
	records, err := s.store.QueryArrayContains(ctx, CirclesCollection, fieldMembers, userName)
	if err != nil {
		slog.Error("ListGroupsForUser failed", "error", err)
		return nil, persistence("list circles", err)
	}

	groups := make([]*models.Group, 0, len(records))
	for _, rec := range records {
		g, err := decodeGroup(rec)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	slog.Debug("ListGroupsForUser successful", "count", len(groups))
	return groups, nil
}

func decodeGroup(rec directory.Record) (*models.Group, error) {
	var g models.Group
	if err := rec.Decode(&g); err != nil {
		return nil, persistence("decode circle", err)
	}
	g.ID = rec.ID
	return &g, nil
}

func joinResult(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
