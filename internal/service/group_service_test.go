package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/circles/internal/directory"
	"github.com/mmynk/circles/internal/metrics"
	"github.com/mmynk/circles/internal/models"
	"github.com/mmynk/circles/internal/passcode"
)

func TestCreateGroup(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "  Friends  ", "Alice")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	if group.ID == "" {
		t.Error("expected non-empty group ID")
	}
	if group.Name != "Friends" {
		t.Errorf("name: expected 'Friends', got '%s'", group.Name)
	}
	if !passcode.Valid(group.Passcode) {
		t.Errorf("passcode: %q is not a valid passcode", group.Passcode)
	}
	if len(group.Members) != 1 || group.Members[0] != "Alice" {
		t.Errorf("members: expected [Alice], got %v", group.Members)
	}
	if group.CreatedAt == 0 {
		t.Error("expected non-zero CreatedAt")
	}

	found, err := svc.FindGroupByPasscode(ctx, group.Passcode)
	if err != nil {
		t.Fatalf("FindGroupByPasscode failed: %v", err)
	}
	if found.ID != group.ID {
		t.Errorf("id: expected %s, got %s", group.ID, found.ID)
	}
	if found.Name != "Friends" {
		t.Errorf("name: expected 'Friends', got '%s'", found.Name)
	}
	if len(found.Members) != 1 || found.Members[0] != "Alice" {
		t.Errorf("members: expected [Alice], got %v", found.Members)
	}
}

func TestCreateGroup_InvalidNameWritesNothing(t *testing.T) {
	store := &recordingStore{Store: newTestStore(t)}
	svc := newGroupService(t, store)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := svc.CreateGroup(context.Background(), name, "Alice")

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("name %q: expected ValidationError, got %v", name, err)
		}
		if verr.Field != "name" {
			t.Errorf("name %q: expected field 'name', got '%s'", name, verr.Field)
		}
	}

	if inserts, _, _ := store.counts(); inserts != 0 {
		t.Errorf("expected no inserts, got %d", inserts)
	}
}

func TestCreateGroup_MissingCreator(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))

	_, err := svc.CreateGroup(context.Background(), "Friends", "")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "creator" {
		t.Errorf("expected ValidationError on 'creator', got %v", err)
	}
}

func TestCreateGroup_PersistenceError(t *testing.T) {
	storeErr := errors.New("disk full")
	store := &recordingStore{
		Store: newTestStore(t),
		insertHook: func(ctx context.Context, collection string, doc any) (string, error) {
			return "", storeErr
		},
	}
	svc := newGroupService(t, store)

	_, err := svc.CreateGroup(context.Background(), "Friends", "Alice")

	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("expected the store error to be wrapped, got %v", err)
	}
}

func TestCreateGroup_RegeneratesCollidingPasscode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Both services draw the same passcode sequence.
	first := NewGroupService(store, seededCodes())
	if err := first.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	second := NewGroupService(store, seededCodes())

	a, err := first.CreateGroup(ctx, "First", "Alice")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	before := testutil.ToFloat64(metrics.PasscodeCollisions)
	b, err := second.CreateGroup(ctx, "Second", "Bob")
	if err != nil {
		t.Fatalf("CreateGroup with colliding passcode failed: %v", err)
	}

	if a.Passcode == b.Passcode {
		t.Errorf("expected distinct passcodes, both are %q", a.Passcode)
	}
	if got := testutil.ToFloat64(metrics.PasscodeCollisions) - before; got < 1 {
		t.Errorf("expected at least one recorded collision, got %v", got)
	}
}

func TestCreateGroup_GivesUpAfterAttempts(t *testing.T) {
	store := &recordingStore{
		Store: newTestStore(t),
		insertHook: func(ctx context.Context, collection string, doc any) (string, error) {
			return "", fmt.Errorf("insert: %w", directory.ErrDuplicate)
		},
	}
	svc := newGroupService(t, store).WithPasscodeAttempts(3)

	_, err := svc.CreateGroup(context.Background(), "Friends", "Alice")

	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if inserts, _, _ := store.counts(); inserts != 3 {
		t.Errorf("expected 3 insert attempts, got %d", inserts)
	}
}

func TestFindGroupByPasscode_ShortCode(t *testing.T) {
	queried := false
	store := &recordingStore{
		Store: newTestStore(t),
		queryHook: func(ctx context.Context, collection, field string, value any) ([]directory.Record, error) {
			queried = true
			return nil, nil
		},
	}
	svc := newGroupService(t, store)

	for _, code := range []string{"", "abc", "abcde", "  abc  "} {
		_, err := svc.FindGroupByPasscode(context.Background(), code)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "passcode" {
			t.Errorf("code %q: expected ValidationError on 'passcode', got %v", code, err)
		}
	}

	if queried {
		t.Error("expected no directory query for invalid codes")
	}
}

func TestFindGroupByPasscode_NotFound(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))

	_, err := svc.FindGroupByPasscode(context.Background(), "ZZZZZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindGroupByPasscode_TrimsInput(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Friends", "Alice")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	found, err := svc.FindGroupByPasscode(ctx, "  "+group.Passcode+" ")
	if err != nil {
		t.Fatalf("FindGroupByPasscode failed: %v", err)
	}
	if found.ID != group.ID {
		t.Errorf("expected group %s, got %s", group.ID, found.ID)
	}
}

// Without the unique index two circles may share a passcode; the oldest wins.
func TestFindGroupByPasscode_MultipleMatchesPicksOldest(t *testing.T) {
	store := newTestStore(t)
	svc := NewGroupService(store, passcode.NewGenerator()) // no Init: no unique index
	ctx := context.Background()

	oldID, err := store.Insert(ctx, CirclesCollection, &models.Group{Name: "Old", Passcode: "SAME01", Members: []string{"Alice"}})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := store.Insert(ctx, CirclesCollection, &models.Group{Name: "New", Passcode: "SAME01", Members: []string{"Bob"}}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	found, err := svc.FindGroupByPasscode(ctx, "SAME01")
	if err != nil {
		t.Fatalf("FindGroupByPasscode failed: %v", err)
	}
	if found.ID != oldID || found.Name != "Old" {
		t.Errorf("expected the oldest circle (%s, Old), got (%s, %s)", oldID, found.ID, found.Name)
	}

	joined, err := svc.JoinGroup(ctx, "SAME01", "Carol")
	if err != nil {
		t.Fatalf("JoinGroup failed: %v", err)
	}
	if joined.ID != oldID {
		t.Errorf("expected join to target the oldest circle, got %s", joined.ID)
	}
}

func TestJoinGroup(t *testing.T) {
	store := &recordingStore{Store: newTestStore(t)}
	svc := newGroupService(t, store)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Friends", "Alice")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	joined, err := svc.JoinGroup(ctx, group.Passcode, "Bob")
	if err != nil {
		t.Fatalf("JoinGroup failed: %v", err)
	}
	assertMembers(t, joined.Members, "Alice", "Bob")

	_, appendsBefore, _ := store.counts()
	_, err = svc.JoinGroup(ctx, group.Passcode, "Bob")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if _, appendsAfter, _ := store.counts(); appendsAfter != appendsBefore {
		t.Errorf("expected no write for a duplicate join, got %d extra", appendsAfter-appendsBefore)
	}

	found, err := svc.FindGroupByPasscode(ctx, group.Passcode)
	if err != nil {
		t.Fatalf("FindGroupByPasscode failed: %v", err)
	}
	assertMembers(t, found.Members, "Alice", "Bob")

	// The creator is a member already too.
	if _, err := svc.JoinGroup(ctx, group.Passcode, "Alice"); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember for the creator, got %v", err)
	}
}

func TestJoinGroup_PropagatesLookupErrors(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))
	ctx := context.Background()

	_, err := svc.JoinGroup(ctx, "abc", "Bob")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	_, err = svc.JoinGroup(ctx, "NOPE00", "Bob")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinGroup_ConcurrentJoinsAllSurvive(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Busy", "Alice")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	names := []string{"Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi", "Ivan"}
	var wg sync.WaitGroup
	errs := make(chan error, len(names))
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := svc.JoinGroup(ctx, group.Passcode, name); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
			}
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("JoinGroup failed: %v", err)
	}

	found, err := svc.FindGroupByPasscode(ctx, group.Passcode)
	if err != nil {
		t.Fatalf("FindGroupByPasscode failed: %v", err)
	}
	if len(found.Members) != len(names)+1 {
		t.Fatalf("expected %d members, got %d: %v", len(names)+1, len(found.Members), found.Members)
	}
	if found.Members[0] != "Alice" {
		t.Errorf("expected creator first, got %v", found.Members)
	}
	for _, name := range names {
		if !found.HasMember(name) {
			t.Errorf("member %s was lost", name)
		}
	}
}

func TestListGroupsForUser(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))
	ctx := context.Background()

	a, err := svc.CreateGroup(ctx, "Group A", "Alice")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	b, err := svc.CreateGroup(ctx, "Group B", "Bob")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if _, err := svc.CreateGroup(ctx, "Group C", "Carol"); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if _, err := svc.JoinGroup(ctx, b.Passcode, "Alice"); err != nil {
		t.Fatalf("JoinGroup failed: %v", err)
	}

	groups, err := svc.ListGroupsForUser(ctx, "Alice")
	if err != nil {
		t.Fatalf("ListGroupsForUser failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	ids := map[string]bool{groups[0].ID: true, groups[1].ID: true}
	if !ids[a.ID] || !ids[b.ID] {
		t.Errorf("expected groups %s and %s, got %v", a.ID, b.ID, ids)
	}

	none, err := svc.ListGroupsForUser(ctx, "Nobody")
	if err != nil {
		t.Fatalf("ListGroupsForUser failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected 0 groups, got %d", len(none))
	}
}

func TestGeneratePasscode(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))

	if code := svc.GeneratePasscode(); !passcode.Valid(code) {
		t.Errorf("GeneratePasscode returned invalid code %q", code)
	}
}

func assertMembers(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("members: expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("members[%d]: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestCreateGroupWithPasscode_UsesPreviewedCode(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))
	ctx := context.Background()

	preview := svc.GeneratePasscode()
	group, err := svc.CreateGroupWithPasscode(ctx, "Friends", "Alice", preview)
	if err != nil {
		t.Fatalf("CreateGroupWithPasscode failed: %v", err)
	}
	if group.Passcode != preview {
		t.Errorf("passcode: expected previewed %q, got %q", preview, group.Passcode)
	}

	found, err := svc.FindGroupByPasscode(ctx, preview)
	if err != nil {
		t.Fatalf("FindGroupByPasscode failed: %v", err)
	}
	if found.ID != group.ID {
		t.Errorf("expected group %s under the previewed code, got %s", group.ID, found.ID)
	}
}

func TestCreateGroupWithPasscode_TakenCodeIsReplaced(t *testing.T) {
	svc := newGroupService(t, newTestStore(t))
	ctx := context.Background()

	first, err := svc.CreateGroupWithPasscode(ctx, "First", "Alice", "Taken1")
	if err != nil {
		t.Fatalf("CreateGroupWithPasscode failed: %v", err)
	}

	second, err := svc.CreateGroupWithPasscode(ctx, "Second", "Bob", "Taken1")
	if err != nil {
		t.Fatalf("CreateGroupWithPasscode with taken code failed: %v", err)
	}
	if second.Passcode == first.Passcode {
		t.Errorf("expected a fresh passcode, got the taken %q", second.Passcode)
	}
	if !passcode.Valid(second.Passcode) {
		t.Errorf("replacement passcode %q is invalid", second.Passcode)
	}
}

func TestCreateGroupWithPasscode_InvalidCodeWritesNothing(t *testing.T) {
	store := &recordingStore{Store: newTestStore(t)}
	svc := newGroupService(t, store)

	for _, code := range []string{"abc", "abcdefg", "ab-d3f", "äbcdef"} {
		_, err := svc.CreateGroupWithPasscode(context.Background(), "Friends", "Alice", code)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "passcode" {
			t.Errorf("code %q: expected ValidationError on 'passcode', got %v", code, err)
		}
	}

	if inserts, _, _ := store.counts(); inserts != 0 {
		t.Errorf("expected no inserts, got %d", inserts)
	}
}

func TestJoinGroup_EmptyMemberSkipsLookup(t *testing.T) {
	queried := false
	store := &recordingStore{
		Store: newTestStore(t),
		queryHook: func(ctx context.Context, collection, field string, value any) ([]directory.Record, error) {
			queried = true
			return nil, nil
		},
	}
	svc := newGroupService(t, store)

	_, err := svc.JoinGroup(context.Background(), "ABCDEF", "")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "member" {
		t.Fatalf("expected ValidationError on 'member', got %v", err)
	}
	if queried {
		t.Error("expected no directory query for an empty member name")
	}
	if _, appends, _ := store.counts(); appends != 0 {
		t.Errorf("expected no appends, got %d", appends)
	}
}
