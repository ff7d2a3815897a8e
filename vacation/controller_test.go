package vacation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-desk/generic"
	"github.com/warp/vacation-desk/store/memory"
	"github.com/warp/vacation-desk/vacation"
)

// =============================================================================
// FIXTURES
// =============================================================================

// newController returns a controller on a fresh memory store with a clock
// that advances one second per call and sequential ids.
func newController(t *testing.T, store vacation.Store) *vacation.Controller {
	t.Helper()
	c := vacation.NewController(store)

	var mu sync.Mutex
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	c.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	c.NewID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("req-%d", seq)
	}
	return c
}

func seedProfile(t *testing.T, store vacation.Store, id vacation.UserID, annual, remaining string) {
	t.Helper()
	require.NoError(t, store.InsertProfile(context.Background(), vacation.Profile{
		ID:                     id,
		Email:                  string(id) + "@example.com",
		FullName:               "Test " + string(id),
		Role:                   vacation.RoleEmployee,
		AnnualVacationDays:     dec(annual),
		RemainingVacationDays:  dec(remaining),
		CompensationRatePerDay: dec("100"),
	}))
}

var week = vacation.VacationForm{StartDate: "2024-03-04", EndDate: "2024-03-08", Reason: "Trip"}

// =============================================================================
// PROFILE + REFRESH
// =============================================================================

func TestCreateProfile_AppliesDefaults(t *testing.T) {
	store := memory.New()
	c := newController(t, store)

	p, err := c.CreateProfile(context.Background(), "u1", "a@example.com", " Ada ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FullName)
	assert.Equal(t, vacation.RoleEmployee, p.Role)
	assert.True(t, p.AnnualVacationDays.Equal(dec("20")))
	assert.True(t, p.RemainingVacationDays.Equal(dec("20")))
	assert.True(t, p.CompensationRatePerDay.Equal(dec("100")))

	dash, err := c.Refresh(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, dash.Balance.UsedDays.IsZero())
	assert.NotNil(t, dash.VacationRequests, "empty list, not nil")
	assert.Empty(t, dash.VacationRequests)
	assert.Empty(t, dash.CompensationRequests)
}

func TestRefresh_MissingProfile(t *testing.T) {
	c := newController(t, memory.New())
	_, err := c.Refresh(context.Background(), "ghost")
	assert.ErrorIs(t, err, generic.ErrProfileUnavailable)
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmitVacation_CreatesPendingAndRefreshes(t *testing.T) {
	// GIVEN: 20 days left
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")

	// WHEN: Requesting Mon-Fri
	req, dash, err := c.SubmitVacation(context.Background(), "u1", week)

	// THEN: Pending, 5 days, and the dashboard lists it
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusPending, req.Status)
	assert.Equal(t, 5, req.DaysRequested)
	require.Len(t, dash.VacationRequests, 1)
	assert.Equal(t, req.ID, dash.VacationRequests[0].ID)

	// Balance is untouched until the external approval lands.
	assert.True(t, dash.Profile.RemainingVacationDays.Equal(dec("20")))
}

func TestSubmitVacation_OverBalanceStoresNothing(t *testing.T) {
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "3")

	_, _, err := c.SubmitVacation(context.Background(), "u1", week)

	var verr *generic.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "You only have 3 days available", verr.Message)

	list, err := store.ListVacationRequests(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubmitCompensation_ComputesTotal(t *testing.T) {
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")

	req, dash, err := c.SubmitCompensation(context.Background(), "u1", vacation.CompensationForm{
		DaysToSell: "2.5",
		RatePerDay: "100",
		Notes:      "Tuition",
	})
	require.NoError(t, err)
	assert.Equal(t, "250.00", req.TotalAmount.StringFixed(2))
	assert.True(t, req.TotalMatches())
	require.Len(t, dash.CompensationRequests, 1)
	assert.Equal(t, "Tuition", dash.CompensationRequests[0].Notes)
}

func TestCompensationDefaults_UsesProfileRate(t *testing.T) {
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")

	prefill, err := c.CompensationDefaults(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "100", prefill.Form.RatePerDay)
	assert.Equal(t, "", prefill.Form.DaysToSell)
	assert.True(t, prefill.MaxDaysToSell.Equal(dec("20")))
}

func TestRefresh_NewestFirst(t *testing.T) {
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	first, _, err := c.SubmitVacation(ctx, "u1", week)
	require.NoError(t, err)
	second, _, err := c.SubmitVacation(ctx, "u1", vacation.VacationForm{StartDate: "2024-04-01", EndDate: "2024-04-02"})
	require.NoError(t, err)

	dash, err := c.Refresh(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, dash.VacationRequests, 2)
	assert.Equal(t, second.ID, dash.VacationRequests[0].ID)
	assert.Equal(t, first.ID, dash.VacationRequests[1].ID)
}

func TestRefresh_OnlyOwnRequests(t *testing.T) {
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	seedProfile(t, store, "u2", "20", "20")
	ctx := context.Background()

	_, _, err := c.SubmitVacation(ctx, "u1", week)
	require.NoError(t, err)

	dash, err := c.Refresh(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, dash.VacationRequests)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancelVacation_Pending(t *testing.T) {
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	req, _, err := c.SubmitVacation(ctx, "u1", week)
	require.NoError(t, err)

	dash, err := c.CancelVacation(ctx, "u1", req.ID)
	require.NoError(t, err)
	require.Len(t, dash.VacationRequests, 1)
	assert.Equal(t, vacation.StatusCancelled, dash.VacationRequests[0].Status)
}

func TestCancelVacation_Twice(t *testing.T) {
	// GIVEN: An already cancelled request
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	req, _, err := c.SubmitVacation(ctx, "u1", week)
	require.NoError(t, err)
	_, err = c.CancelVacation(ctx, "u1", req.ID)
	require.NoError(t, err)

	// WHEN: Cancelling again
	_, err = c.CancelVacation(ctx, "u1", req.ID)

	// THEN: Rejected as not pending
	var terr *generic.TransitionError
	require.True(t, errors.As(err, &terr), "expected TransitionError, got %v", err)
	assert.Equal(t, "cancelled", terr.From)
	assert.ErrorIs(t, err, generic.ErrNotPending)
}

func TestCancelVacation_ApprovedIsRejected(t *testing.T) {
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	require.NoError(t, store.InsertVacationRequest(ctx, vacation.VacationRequest{
		ID:            "approved-1",
		UserID:        "u1",
		StartDate:     generic.MustParseDate("2024-03-04"),
		EndDate:       generic.MustParseDate("2024-03-04"),
		DaysRequested: 1,
		Status:        vacation.StatusApproved,
	}))

	_, err := c.CancelVacation(ctx, "u1", "approved-1")
	assert.ErrorIs(t, err, generic.ErrNotPending)

	got, err := store.GetVacationRequest(ctx, "approved-1")
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusApproved, got.Status)
}

func TestCancel_NotOwnedLooksMissing(t *testing.T) {
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	seedProfile(t, store, "u2", "20", "20")
	ctx := context.Background()

	req, _, err := c.SubmitVacation(ctx, "u1", week)
	require.NoError(t, err)

	_, err = c.CancelVacation(ctx, "u2", req.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = c.CancelCompensation(ctx, "u2", "nope")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	got, err := store.GetVacationRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusPending, got.Status, "other owner's cancel changed nothing")
}

func TestCancelCompensation_Pending(t *testing.T) {
	store := memory.New()
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	req, _, err := c.SubmitCompensation(ctx, "u1", vacation.CompensationForm{DaysToSell: "1", RatePerDay: "100"})
	require.NoError(t, err)

	dash, err := c.CancelCompensation(ctx, "u1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusCancelled, dash.CompensationRequests[0].Status)
}

// racingStore approves a request between the controller's read and its
// conditional update, like the external approval process would.
type racingStore struct {
	*memory.Memory
}

func (s racingStore) UpdateVacationStatus(ctx context.Context, id string, from, to vacation.Status) (bool, error) {
	if _, err := s.Memory.UpdateVacationStatus(ctx, id, vacation.StatusPending, vacation.StatusApproved); err != nil {
		return false, err
	}
	return s.Memory.UpdateVacationStatus(ctx, id, from, to)
}

func TestCancelVacation_ConcurrentApproval(t *testing.T) {
	mem := memory.New()
	store := racingStore{mem}
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	req, _, err := c.SubmitVacation(ctx, "u1", week)
	require.NoError(t, err)

	_, err = c.CancelVacation(ctx, "u1", req.ID)

	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.True(t, generic.IsRetryable(err))
	var terr *generic.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "approved", terr.From)

	got, err := mem.GetVacationRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusApproved, got.Status)
}

// =============================================================================
// IN-FLIGHT GUARD
// =============================================================================

// parkedStore parks the store call named by key until release is closed.
// Keys are a method name, plus ":<id>" for status updates.
type parkedStore struct {
	*memory.Memory
	key     string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newParkedStore(key string) *parkedStore {
	return &parkedStore{
		Memory:  memory.New(),
		key:     key,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *parkedStore) park(key string) {
	if key != s.key {
		return
	}
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
}

func (s *parkedStore) InsertVacationRequest(ctx context.Context, r vacation.VacationRequest) error {
	s.park("InsertVacationRequest")
	return s.Memory.InsertVacationRequest(ctx, r)
}

func (s *parkedStore) InsertCompensationRequest(ctx context.Context, r vacation.CompensationRequest) error {
	s.park("InsertCompensationRequest")
	return s.Memory.InsertCompensationRequest(ctx, r)
}

func (s *parkedStore) UpdateVacationStatus(ctx context.Context, id string, from, to vacation.Status) (bool, error) {
	s.park("UpdateVacationStatus:" + id)
	return s.Memory.UpdateVacationStatus(ctx, id, from, to)
}

func (s *parkedStore) UpdateCompensationStatus(ctx context.Context, id string, from, to vacation.Status) (bool, error) {
	s.park("UpdateCompensationStatus:" + id)
	return s.Memory.UpdateCompensationStatus(ctx, id, from, to)
}

// inBackground runs fn and returns its error on the channel.
func inBackground(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}

var oneDay = vacation.CompensationForm{DaysToSell: "1", RatePerDay: "100"}

func TestSubmitVacation_InFlight(t *testing.T) {
	// GIVEN: A submission parked inside the store
	store := newParkedStore("InsertVacationRequest")
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	done := inBackground(func() error {
		_, _, err := c.SubmitVacation(ctx, "u1", week)
		return err
	})
	<-store.entered

	// WHEN: The same owner submits again
	_, _, err := c.SubmitVacation(ctx, "u1", week)

	// THEN: Refused, while other controls stay usable
	assert.ErrorIs(t, err, generic.ErrSubmissionInFlight)
	assert.True(t, generic.IsConflict(err))

	_, _, err = c.SubmitCompensation(ctx, "u1", oneDay)
	assert.NoError(t, err, "compensation control is independent")

	_, _, err = c.SubmitVacation(ctx, "u2", week)
	assert.ErrorIs(t, err, generic.ErrProfileUnavailable, "another owner's control is not blocked")

	close(store.release)
	require.NoError(t, <-done)

	list, err := store.ListVacationRequests(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "exactly one request stored")

	// Released: the control works again.
	_, _, err = c.SubmitVacation(ctx, "u1", vacation.VacationForm{StartDate: "2024-04-01", EndDate: "2024-04-01"})
	assert.NoError(t, err)
}

func TestSubmitCompensation_InFlight(t *testing.T) {
	store := newParkedStore("InsertCompensationRequest")
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	done := inBackground(func() error {
		_, _, err := c.SubmitCompensation(ctx, "u1", oneDay)
		return err
	})
	<-store.entered

	_, _, err := c.SubmitCompensation(ctx, "u1", oneDay)
	assert.ErrorIs(t, err, generic.ErrSubmissionInFlight)

	// Different controls are not serialised: both forms can be in flight.
	_, _, err = c.SubmitVacation(ctx, "u1", week)
	assert.NoError(t, err)

	close(store.release)
	require.NoError(t, <-done)

	list, err := store.ListCompensationRequests(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "exactly one compensation request stored")
}

func TestCancelVacation_InFlightSameRequest(t *testing.T) {
	// GIVEN: Two pending requests, the cancel of req-1 parked in the store
	store := newParkedStore("UpdateVacationStatus:req-1")
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	first, _, err := c.SubmitVacation(ctx, "u1", week)
	require.NoError(t, err)
	require.Equal(t, "req-1", first.ID)
	second, _, err := c.SubmitVacation(ctx, "u1", vacation.VacationForm{StartDate: "2024-04-01", EndDate: "2024-04-02"})
	require.NoError(t, err)

	done := inBackground(func() error {
		_, err := c.CancelVacation(ctx, "u1", first.ID)
		return err
	})
	<-store.entered

	// WHEN: Cancelling the same request again
	_, err = c.CancelVacation(ctx, "u1", first.ID)

	// THEN: Refused, while other requests and controls stay usable
	assert.ErrorIs(t, err, generic.ErrSubmissionInFlight)

	_, err = c.CancelVacation(ctx, "u1", second.ID)
	assert.NoError(t, err, "cancel of another request is independent")

	_, _, err = c.SubmitVacation(ctx, "u1", vacation.VacationForm{StartDate: "2024-05-06", EndDate: "2024-05-06"})
	assert.NoError(t, err, "submit is independent of cancel")

	close(store.release)
	require.NoError(t, <-done)

	got, err := store.GetVacationRequest(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusCancelled, got.Status)
}

func TestCancelCompensation_InFlightSameRequest(t *testing.T) {
	store := newParkedStore("UpdateCompensationStatus:req-1")
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	req, _, err := c.SubmitCompensation(ctx, "u1", oneDay)
	require.NoError(t, err)
	require.Equal(t, "req-1", req.ID)

	done := inBackground(func() error {
		_, err := c.CancelCompensation(ctx, "u1", req.ID)
		return err
	})
	<-store.entered

	_, err = c.CancelCompensation(ctx, "u1", req.ID)
	assert.ErrorIs(t, err, generic.ErrSubmissionInFlight)

	close(store.release)
	require.NoError(t, <-done)
}

// =============================================================================
// VANISHED ROWS
// =============================================================================

// vanishingStore deletes the request during the conditional update.
type vanishingStore struct {
	*memory.Memory
	gone bool
}

func (s *vanishingStore) UpdateVacationStatus(context.Context, string, vacation.Status, vacation.Status) (bool, error) {
	s.gone = true
	return false, nil
}

func (s *vanishingStore) GetVacationRequest(ctx context.Context, id string) (*vacation.VacationRequest, error) {
	if s.gone {
		return nil, nil
	}
	return s.Memory.GetVacationRequest(ctx, id)
}

func TestCancelVacation_RowVanished(t *testing.T) {
	store := &vanishingStore{Memory: memory.New()}
	c := newController(t, store)
	seedProfile(t, store, "u1", "20", "20")
	ctx := context.Background()

	req, _, err := c.SubmitVacation(ctx, "u1", week)
	require.NoError(t, err)

	_, err = c.CancelVacation(ctx, "u1", req.ID)

	assert.ErrorIs(t, err, generic.ErrNotFound)
	var terr *generic.TransitionError
	assert.False(t, errors.As(err, &terr), "no transition from an unknown status")
}
