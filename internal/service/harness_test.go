package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/repository"
	"github.com/fleetdesk/leaveguard/internal/testutil"
	"github.com/stretchr/testify/require"
)

var (
	// Friday morning; the leave day is the following Monday.
	submittedAt = testutil.Date(2026, time.February, 27, 9, 0)
	leaveDay    = testutil.Date(2026, time.March, 2, 0, 0)
	tuesday     = testutil.Date(2026, time.March, 3, 0, 0)
)

type harness struct {
	t           *testing.T
	ctx         context.Context
	db          *sql.DB
	clock       *testutil.FixedClock
	fleet       *repository.SQLiteFleet
	leaves      *repository.SQLiteLeaveRequestRepo
	conflicts   *repository.SQLiteConflictRepo
	suggestions *repository.SQLiteSuggestionRepo
	sink        *testutil.RecordingSink
	assignments *testutil.CountingAssignments
	collab      app.Collaborators
	locks       *Locks
	settings    Settings

	leaveSvc   LeaveService
	suggestSvc SuggestionService
}

type harnessConfig struct {
	settings Settings
	wrap     func(app.Collaborators) app.Collaborators
}

type harnessOption func(*harnessConfig)

func withSettings(fn func(*Settings)) harnessOption {
	return func(c *harnessConfig) { fn(&c.settings) }
}

func withCollaborators(fn func(app.Collaborators) app.Collaborators) harnessOption {
	return func(c *harnessConfig) { c.wrap = fn }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{settings: DefaultSettings()}
	for _, opt := range opts {
		opt(&cfg)
	}

	database := testutil.NewTestDB(t)
	clock := testutil.NewFixedClock(submittedAt)
	fleet := repository.NewSQLiteFleet(database, clock)
	assignments := &testutil.CountingAssignments{AssignmentWriter: fleet}
	collab := fleet.Collaborators()
	collab.Assignments = assignments
	if cfg.wrap != nil {
		collab = cfg.wrap(collab)
	}

	h := &harness{
		t:           t,
		ctx:         context.Background(),
		db:          database,
		clock:       clock,
		fleet:       fleet,
		leaves:      repository.NewSQLiteLeaveRequestRepo(database),
		conflicts:   repository.NewSQLiteConflictRepo(database),
		suggestions: repository.NewSQLiteSuggestionRepo(database),
		sink:        &testutil.RecordingSink{},
		assignments: assignments,
		collab:      collab,
		locks:       NewLocks(),
		settings:    cfg.settings,
	}
	h.leaveSvc, h.suggestSvc = h.services(testutil.NewTestUoW(database))
	return h
}

// services builds another service pair over the same store and locks.
func (h *harness) services(uow db.UnitOfWork, opts ...LeaveOption) (LeaveService, SuggestionService) {
	h.t.Helper()
	leaves, suggestions, err := New(Deps{
		Leaves:      h.leaves,
		Conflicts:   h.conflicts,
		Suggestions: h.suggestions,
		UoW:         uow,
		Fleet:       h.collab,
		Events:      h.sink,
		Clock:       h.clock,
		Locks:       h.locks,
	}, h.settings, opts...)
	require.NoError(h.t, err)
	return leaves, suggestions
}

// seedFleet stores drivers d-1..d-3 and vehicles v-1 (30 seats), v-2 (30)
// and v-3 (10). d-2 has driven route r-1 four times, three of them on time.
func (h *harness) seedFleet() {
	h.t.Helper()
	for _, id := range []string{"d-1", "d-2", "d-3"} {
		require.NoError(h.t, h.fleet.UpsertDriver(h.ctx, testutil.NewTestDriver(id)))
	}
	for _, v := range []domain.Vehicle{
		testutil.NewTestVehicle("v-1", 30),
		testutil.NewTestVehicle("v-2", 30),
		testutil.NewTestVehicle("v-3", 10),
	} {
		require.NoError(h.t, h.fleet.UpsertVehicle(h.ctx, v))
	}
	for i := 0; i < 4; i++ {
		require.NoError(h.t, h.fleet.AddHistory(h.ctx, repository.HistoryEntry{
			DriverID:    "d-2",
			RouteID:     "r-1",
			CompletedAt: testutil.Date(2026, time.February, 2+i, 8, 0),
			OnTime:      i != 0,
		}))
	}
}

// seedTrip stores a one-hour morning trip of driverID on vehicleID at day 07:00.
func (h *harness) seedTrip(driverID, vehicleID string, day time.Time, opts ...testutil.ObligationOption) domain.TripObligation {
	h.t.Helper()
	ob := testutil.NewTestObligation(driverID, vehicleID, day.Add(7*time.Hour), time.Hour, opts...)
	require.NoError(h.t, h.fleet.UpsertObligation(h.ctx, ob))
	return ob
}

func (h *harness) createLeave(driverID string, start, end time.Time) *domain.LeaveRequest {
	h.t.Helper()
	res, err := h.leaveSvc.CreateLeaveRequest(h.ctx, app.CreateLeaveInput{
		DriverID:  driverID,
		LeaveType: domain.LeaveSick,
		StartDate: start,
		EndDate:   end,
		Reason:    "flu",
	})
	require.NoError(h.t, err)
	return res.Leave
}

func (h *harness) generate(leaveID string) *app.GenerateResult {
	h.t.Helper()
	res, err := h.suggestSvc.GenerateSuggestions(h.ctx, leaveID)
	require.NoError(h.t, err)
	return res
}

func (h *harness) approve(leaveID string) *app.ApproveResult {
	h.t.Helper()
	res, err := h.leaveSvc.ApproveLeaveRequest(h.ctx, app.ApproveLeaveInput{LeaveRequestID: leaveID, AdminID: "admin-1"})
	require.NoError(h.t, err)
	return res
}

func (h *harness) accept(view app.ConflictView, rank int) (*app.AcceptResult, error) {
	h.t.Helper()
	require.GreaterOrEqual(h.t, len(view.Suggestions), rank)
	return h.suggestSvc.AcceptSuggestion(h.ctx, app.AcceptSuggestionInput{
		ConflictID:   view.Conflict.ID,
		SuggestionID: view.Suggestions[rank-1].ID,
		AdminID:      "admin-1",
	})
}

func (h *harness) conflict(id string) *domain.Conflict {
	h.t.Helper()
	c, err := h.conflicts.GetByID(h.ctx, id)
	require.NoError(h.t, err)
	return c
}

func (h *harness) leave(id string) *domain.LeaveRequest {
	h.t.Helper()
	l, err := h.leaves.GetByID(h.ctx, id)
	require.NoError(h.t, err)
	return l
}

func (h *harness) activeAssignments() []string {
	h.t.Helper()
	_, ids, err := h.fleet.ActiveAssignments(h.ctx)
	require.NoError(h.t, err)
	return ids
}

// pairsOf strips identity fields so runs can be compared.
func pairsOf(view app.ConflictView) []domain.CandidatePair {
	out := make([]domain.CandidatePair, len(view.Suggestions))
	for i, p := range view.Suggestions {
		p.ID = ""
		p.CreatedAt = time.Time{}
		out[i] = p
	}
	return out
}
