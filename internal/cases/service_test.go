package cases

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caseflow/casework-backend/internal/labels"
	"caseflow/casework-backend/internal/statemachine"
)

// MockRepository is a mock implementation of the Repository interface.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateCase(ctx context.Context, kase *Case) error {
	args := m.Called(ctx, kase)
	return args.Error(0)
}

func (m *MockRepository) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Case), args.Error(1)
}

func (m *MockRepository) ListTransitions(ctx context.Context, caseID uuid.UUID) ([]CaseTransition, error) {
	args := m.Called(ctx, caseID)
	return args.Get(0).([]CaseTransition), args.Error(1)
}

func (m *MockRepository) StoreFor(kase *Case) statemachine.TransitionStore {
	args := m.Called(kase)
	return args.Get(0).(statemachine.TransitionStore)
}

// memStore records transitions in memory and applies state updates to the
// bound case, mimicking the gorm store without a database.
type memStore struct {
	kase    *Case
	records []*statemachine.TransitionRecord
}

func (s *memStore) Atomically(ctx context.Context, fn func(ctx context.Context, tx statemachine.TransitionStore) error) error {
	saved := *s.kase
	savedRecords := append([]*statemachine.TransitionRecord(nil), s.records...)
	if err := fn(ctx, s); err != nil {
		*s.kase = saved
		s.records = savedRecords
		return err
	}
	return nil
}

func (s *memStore) NextSortKey(context.Context) (int64, error) {
	return int64(len(s.records)+1) * 10, nil
}

func (s *memStore) UnsetMostRecent(context.Context) error {
	for _, rec := range s.records {
		rec.MostRecent = false
	}
	return nil
}

func (s *memStore) CreateTransition(_ context.Context, rec *statemachine.TransitionRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *memStore) UpdateEntityState(_ context.Context, toState, toWorkflow string) error {
	s.kase.CurrentState = toState
	s.kase.Workflow = toWorkflow
	return nil
}

// stubDirectory serves fixed users and teams.
type stubDirectory struct {
	users map[uuid.UUID]*statemachine.User
	teams map[uuid.UUID]*statemachine.Team
	roles map[uuid.UUID][]string
}

func (d *stubDirectory) FindUser(_ context.Context, id uuid.UUID) (*statemachine.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func (d *stubDirectory) FindTeam(_ context.Context, id uuid.UUID) (*statemachine.Team, error) {
	t, ok := d.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %s not found", id)
	}
	return t, nil
}

func (d *stubDirectory) RolesOfUser(_ context.Context, id uuid.UUID) ([]string, error) {
	return d.roles[id], nil
}

func (d *stubDirectory) RolesOfUserForTeam(_ context.Context, userID, _ uuid.UUID) ([]string, error) {
	return d.roles[userID], nil
}

func serviceConfigSet() statemachine.ConfigSet {
	cfg := statemachine.NewWorkflowConfig(statemachine.WorkflowConfig{
		CaseType:     "foi",
		Workflow:     "standard",
		InitialState: "unassigned",
		States:       []string{"unassigned", "awaiting_responder", "drafting"},
		Roles: map[string]statemachine.RoleStates{
			"responder": {
				"awaiting_responder": {
					"accept_responder_assignment": &statemachine.EventConfig{TransitionTo: "drafting"},
				},
			},
		},
	})
	return statemachine.ConfigSet{"foi/standard": cfg}
}

func serviceFixture(t *testing.T) (*Service, *MockRepository, *stubDirectory) {
	t.Helper()
	repo := new(MockRepository)
	user := &statemachine.User{ID: uuid.New(), Email: "responder@example.com"}
	team := &statemachine.Team{ID: uuid.New(), Name: "Responding Team", Role: "responder"}
	dir := &stubDirectory{
		users: map[uuid.UUID]*statemachine.User{user.ID: user},
		teams: map[uuid.UUID]*statemachine.Team{team.ID: team},
		roles: map[uuid.UUID][]string{user.ID: {"responder"}},
	}
	translator := labels.New(map[string]map[string]string{
		"default": {"accept_responder_assignment": "Accept responder assignment"},
	})
	service := NewService(repo, dir, serviceConfigSet(), statemachine.NewRegistry(), translator, zap.NewNop())
	return service, repo, dir
}

func fixtureActors(dir *stubDirectory) (*statemachine.User, *statemachine.Team) {
	var user *statemachine.User
	for _, u := range dir.users {
		user = u
	}
	var team *statemachine.Team
	for _, tm := range dir.teams {
		team = tm
	}
	return user, team
}

func TestCreateCaseUsesConfiguredInitialState(t *testing.T) {
	service, repo, _ := serviceFixture(t)
	repo.On("CreateCase", mock.Anything, mock.AnythingOfType("*cases.Case")).Return(nil)

	kase, err := service.CreateCase(context.Background(), CreateCaseRequest{
		Number: "250901-001",
		Type:   "foi",
	})
	require.NoError(t, err)
	assert.Equal(t, "unassigned", kase.CurrentState)
	assert.Equal(t, "standard", kase.Workflow)
	repo.AssertExpectations(t)
}

func TestCreateCaseUnknownType(t *testing.T) {
	service, _, _ := serviceFixture(t)

	_, err := service.CreateCase(context.Background(), CreateCaseRequest{
		Number: "250901-002",
		Type:   "ico_appeal",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ico_appeal")
}

func TestTriggerEventUpdatesCase(t *testing.T) {
	kase := &Case{
		ID:           uuid.New(),
		Number:       "250901-003",
		Type:         "foi",
		CurrentState: "awaiting_responder",
		Workflow:     "standard",
	}
	service, repo, dir := serviceFixture(t)
	store := &memStore{kase: kase}
	repo.On("GetCase", mock.Anything, kase.ID).Return(kase, nil)
	repo.On("StoreFor", kase).Return(store)

	user, team := fixtureActors(dir)
	md := &statemachine.Metadata{ActingUser: user, ActingTeam: team}
	updated, err := service.TriggerEvent(context.Background(), kase.ID, "accept_responder_assignment", md)
	require.NoError(t, err)

	assert.Equal(t, "drafting", updated.CurrentState)
	require.Len(t, store.records, 1)
	assert.True(t, store.records[0].MostRecent)
	repo.AssertExpectations(t)
}

func TestTriggerEventNotPermitted(t *testing.T) {
	kase := &Case{
		ID:           uuid.New(),
		Number:       "250901-004",
		Type:         "foi",
		CurrentState: "drafting",
		Workflow:     "standard",
	}
	service, repo, dir := serviceFixture(t)
	store := &memStore{kase: kase}
	repo.On("GetCase", mock.Anything, kase.ID).Return(kase, nil)
	repo.On("StoreFor", kase).Return(store)

	user, team := fixtureActors(dir)
	md := &statemachine.Metadata{ActingUser: user, ActingTeam: team}
	_, err := service.TriggerEvent(context.Background(), kase.ID, "accept_responder_assignment", md)
	require.Error(t, err)
	assert.ErrorIs(t, err, statemachine.ErrInvalidEvent)
	assert.Equal(t, "drafting", kase.CurrentState)
	assert.Empty(t, store.records)
}

func TestPermittedEventsWithLabels(t *testing.T) {
	kase := &Case{
		ID:           uuid.New(),
		Number:       "250901-005",
		Type:         "foi",
		CurrentState: "awaiting_responder",
		Workflow:     "standard",
	}
	service, repo, dir := serviceFixture(t)
	repo.On("GetCase", mock.Anything, kase.ID).Return(kase, nil)
	repo.On("StoreFor", kase).Return(&memStore{kase: kase})

	user, _ := fixtureActors(dir)
	events, err := service.PermittedEvents(context.Background(), kase.ID, user.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "accept_responder_assignment", events[0].Name)
	assert.Equal(t, "Accept responder assignment", events[0].Label)
}

func TestCanTrigger(t *testing.T) {
	kase := &Case{
		ID:           uuid.New(),
		Number:       "250901-006",
		Type:         "foi",
		CurrentState: "awaiting_responder",
		Workflow:     "standard",
	}
	service, repo, dir := serviceFixture(t)
	repo.On("GetCase", mock.Anything, kase.ID).Return(kase, nil)
	repo.On("StoreFor", kase).Return(&memStore{kase: kase})

	user, team := fixtureActors(dir)
	can, err := service.CanTrigger(context.Background(), kase.ID,
		"accept_responder_assignment", &statemachine.Metadata{ActingUser: user, ActingTeam: team})
	require.NoError(t, err)
	assert.True(t, can)
}
