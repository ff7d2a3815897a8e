/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Provides pre-built accounts that show the dashboard in specific states.
	Each scenario signs up one or more demo identities, writes their
	profiles with chosen balances and adds request history, including
	approved and rejected rows that no endpoint can produce.

AVAILABLE SCENARIOS:

	fresh-hire:   Default 20-day balance, no history
	mid-year:     Partly used balance with every request status
	out-of-sync:  Remaining days above annual days (balance drift)

HOW SCENARIOS WORK:
 1. Sign up the demo identity (email taken means already loaded)
 2. Insert the profile directly, bypassing creation rules
 3. Insert request rows with their final status

USAGE VIA API (only with -dev):

	POST /api/scenarios/load
	{"scenario_id": "mid-year"}

NOTE:

	Scenarios never delete data; loading twice is a no-op.

SEE ALSO:
  - handlers.go: Handler wiring
  - cmd/server/main.go: -seed flag
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/vacation-desk/generic"
	"github.com/warp/vacation-desk/vacation"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// DemoPassword is shared by every scenario account.
const DemoPassword = "vacation-demo"

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-hire",
		Name:        "Fresh Hire",
		Description: "Default balance of 20 days and an empty history",
	},
	{
		ID:          "mid-year",
		Name:        "Mid-Year",
		Description: "12 of 25 days left with approved, rejected, pending and cancelled requests",
	},
	{
		ID:          "out-of-sync",
		Name:        "Out of Sync",
		Description: "Remaining days exceed annual days; the bar clamps, the label does not",
	},
}

type scenarioLoader func(ctx context.Context, h *Handler, today generic.Date) ([]ScenarioAccountDTO, error)

var scenarioLoaders = map[string]scenarioLoader{
	"fresh-hire":  loadFreshHireScenario,
	"mid-year":    loadMidYearScenario,
	"out-of-sync": loadOutOfSyncScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.Seed(r.Context(), req.ScenarioID)
	if err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Seed loads a scenario by id. Used by LoadScenario and by -seed.
func (h *Handler) Seed(ctx context.Context, id string) (*LoadScenarioResponse, error) {
	load, ok := scenarioLoaders[id]
	if !ok {
		return nil, fmt.Errorf("scenario %q: %w", id, generic.ErrNotFound)
	}
	accounts, err := load(ctx, h, generic.Today())
	if err != nil {
		return nil, err
	}
	for _, s := range scenarios {
		if s.ID == id {
			log.Printf("[api] loaded scenario %s (%d accounts)", id, len(accounts))
			return &LoadScenarioResponse{Scenario: s, Accounts: accounts}, nil
		}
	}
	return nil, fmt.Errorf("scenario %q: %w", id, generic.ErrNotFound)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadFreshHireScenario(ctx context.Context, h *Handler, _ generic.Date) ([]ScenarioAccountDTO, error) {
	acct := ScenarioAccountDTO{Email: "fresh.hire@example.com", Password: DemoPassword, FullName: "Frankie Fresh"}
	_, err := h.seedAccount(ctx, acct, decimal.NewFromInt(20), decimal.NewFromInt(20), decimal.NewFromInt(100))
	if err != nil {
		return nil, err
	}
	return []ScenarioAccountDTO{acct}, nil
}

func loadMidYearScenario(ctx context.Context, h *Handler, today generic.Date) ([]ScenarioAccountDTO, error) {
	acct := ScenarioAccountDTO{Email: "mid.year@example.com", Password: DemoPassword, FullName: "Morgan Midyear"}
	owner, err := h.seedAccount(ctx, acct, decimal.NewFromInt(25), decimal.NewFromInt(12), decimal.NewFromInt(150))
	if err != nil || owner == "" {
		return []ScenarioAccountDTO{acct}, err
	}

	base := lastMonday(today)
	created := today.Time.Add(-90 * 24 * time.Hour)

	// Oldest first so created_at increases down the list.
	vacations := []struct {
		start, end generic.Date
		status     vacation.Status
		reason     string
	}{
		{base.AddDays(-84), base.AddDays(-80), vacation.StatusApproved, "Spring break"},
		{base.AddDays(-56), base.AddDays(-54), vacation.StatusApproved, "Long weekend"},
		{base.AddDays(-28), base.AddDays(-24), vacation.StatusRejected, "Conference week"},
		{base.AddDays(21), base.AddDays(25), vacation.StatusPending, "Summer trip"},
		{base.AddDays(35), base.AddDays(36), vacation.StatusCancelled, ""},
	}
	for i, v := range vacations {
		at := created.Add(time.Duration(i) * 7 * 24 * time.Hour)
		err := h.Store.InsertVacationRequest(ctx, vacation.VacationRequest{
			ID:            h.Controller.NewID(),
			UserID:        owner,
			StartDate:     v.start,
			EndDate:       v.end,
			DaysRequested: generic.BusinessDaysBetween(v.start, v.end),
			Status:        v.status,
			Reason:        v.reason,
			CreatedAt:     at,
			UpdatedAt:     at,
		})
		if err != nil {
			return nil, fmt.Errorf("seed vacation request: %w", err)
		}
	}

	rate := decimal.NewFromInt(150)
	compensations := []struct {
		days   decimal.Decimal
		status vacation.Status
		notes  string
	}{
		{decimal.NewFromInt(2), vacation.StatusRejected, "Year-end payout"},
		{decimal.RequireFromString("1.5"), vacation.StatusPending, ""},
	}
	for i, c := range compensations {
		at := created.Add(time.Duration(i) * 30 * 24 * time.Hour)
		err := h.Store.InsertCompensationRequest(ctx, vacation.CompensationRequest{
			ID:          h.Controller.NewID(),
			UserID:      owner,
			DaysToSell:  c.days,
			RatePerDay:  rate,
			TotalAmount: vacation.CompensationTotal(c.days, rate),
			Status:      c.status,
			Notes:       c.notes,
			CreatedAt:   at,
			UpdatedAt:   at,
		})
		if err != nil {
			return nil, fmt.Errorf("seed compensation request: %w", err)
		}
	}
	return []ScenarioAccountDTO{acct}, nil
}

func loadOutOfSyncScenario(ctx context.Context, h *Handler, _ generic.Date) ([]ScenarioAccountDTO, error) {
	acct := ScenarioAccountDTO{Email: "out.of.sync@example.com", Password: DemoPassword, FullName: "Sam Skew"}
	_, err := h.seedAccount(ctx, acct, decimal.NewFromInt(10), decimal.NewFromInt(14), decimal.NewFromInt(120))
	if err != nil {
		return nil, err
	}
	return []ScenarioAccountDTO{acct}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// seedAccount signs up acct and writes its profile as given. It returns an
// empty owner if the account already exists.
func (h *Handler) seedAccount(ctx context.Context, acct ScenarioAccountDTO, annual, remaining, rate decimal.Decimal) (vacation.UserID, error) {
	identity, err := h.Auth.SignUp(ctx, acct.Email, acct.Password)
	if errors.Is(err, generic.ErrEmailTaken) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("seed identity %s: %w", acct.Email, err)
	}

	now := h.Controller.Now()
	owner := vacation.UserID(identity.ID)
	err = h.Store.InsertProfile(ctx, vacation.Profile{
		ID:                     owner,
		Email:                  identity.Email,
		FullName:               acct.FullName,
		Role:                   vacation.RoleEmployee,
		AnnualVacationDays:     annual,
		RemainingVacationDays:  remaining,
		CompensationRatePerDay: rate,
		CreatedAt:              now,
		UpdatedAt:              now,
	})
	if err != nil {
		return "", fmt.Errorf("seed profile %s: %w", acct.Email, err)
	}
	return owner, nil
}

// lastMonday returns d if it is a Monday, else the Monday before it.
func lastMonday(d generic.Date) generic.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}
