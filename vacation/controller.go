package vacation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/vacation-desk/generic"
)

// =============================================================================
// CONTROLLER - validate -> persist -> refresh
// =============================================================================

// Controller mediates every mutation of an owner's requests.
//
// After each successful create or cancel it reloads the owner's profile and
// both request lists from the store and returns them. It never patches a
// previously returned Dashboard.
type Controller struct {
	Store    Store
	Defaults ProfileDefaults

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string

	mu       sync.Mutex
	inflight map[control]struct{}
}

// control identifies one submit or cancel control of one owner.
type control struct {
	owner UserID
	name  string
}

// NewController creates a controller with standard profile defaults.
func NewController(store Store) *Controller {
	return &Controller{
		Store:    store,
		Defaults: StandardDefaults(),
		Now:      func() time.Time { return time.Now().UTC() },
		NewID:    uuid.NewString,
		inflight: make(map[control]struct{}),
	}
}

// begin claims a control until the returned release func is called.
func (c *Controller) begin(owner UserID, name string) (func(), error) {
	k := control{owner: owner, name: name}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		c.inflight = make(map[control]struct{})
	}
	if _, busy := c.inflight[k]; busy {
		return nil, fmt.Errorf("%s: %w", name, generic.ErrSubmissionInFlight)
	}
	c.inflight[k] = struct{}{}

	return func() {
		c.mu.Lock()
		delete(c.inflight, k)
		c.mu.Unlock()
	}, nil
}

// =============================================================================
// PROFILE + REFRESH
// =============================================================================

// CreateProfile stores the profile for a freshly signed-up identity using
// the controller's defaults. Remaining days start equal to annual days.
func (c *Controller) CreateProfile(ctx context.Context, id UserID, email, fullName string) (*Profile, error) {
	now := c.Now()
	p := Profile{
		ID:                     id,
		Email:                  email,
		FullName:               strings.TrimSpace(fullName),
		Role:                   RoleEmployee,
		AnnualVacationDays:     c.Defaults.AnnualVacationDays,
		RemainingVacationDays:  c.Defaults.AnnualVacationDays,
		CompensationRatePerDay: c.Defaults.CompensationRatePerDay,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := c.Store.InsertProfile(ctx, p); err != nil {
		log.Printf("[vacation] create profile %s failed: %v", id, err)
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &p, nil
}

// Refresh reloads everything the owner sees.
func (c *Controller) Refresh(ctx context.Context, owner UserID) (*Dashboard, error) {
	profile, err := c.loadProfile(ctx, owner)
	if err != nil {
		return nil, err
	}

	vacations, err := c.Store.ListVacationRequests(ctx, owner)
	if err != nil {
		log.Printf("[vacation] list vacation requests for %s failed: %v", owner, err)
		return nil, fmt.Errorf("list vacation requests: %w", err)
	}
	compensations, err := c.Store.ListCompensationRequests(ctx, owner)
	if err != nil {
		log.Printf("[vacation] list compensation requests for %s failed: %v", owner, err)
		return nil, fmt.Errorf("list compensation requests: %w", err)
	}

	if vacations == nil {
		vacations = []VacationRequest{}
	}
	if compensations == nil {
		compensations = []CompensationRequest{}
	}

	return &Dashboard{
		Profile:              *profile,
		Balance:              BalanceOf(*profile),
		VacationRequests:     vacations,
		CompensationRequests: compensations,
	}, nil
}

func (c *Controller) loadProfile(ctx context.Context, owner UserID) (*Profile, error) {
	profile, err := c.Store.GetProfile(ctx, owner)
	if err != nil {
		log.Printf("[vacation] load profile %s failed: %v", owner, err)
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, generic.ErrProfileUnavailable
	}
	return profile, nil
}

// CompensationPrefill is the compensation form as first shown to an owner,
// with the most days they can sell right now.
type CompensationPrefill struct {
	Form          CompensationForm
	MaxDaysToSell decimal.Decimal
}

// CompensationDefaults returns a compensation form pre-filled with the
// owner's default rate, read from the current profile.
func (c *Controller) CompensationDefaults(ctx context.Context, owner UserID) (CompensationPrefill, error) {
	profile, err := c.loadProfile(ctx, owner)
	if err != nil {
		return CompensationPrefill{}, err
	}
	prefill := CompensationPrefill{MaxDaysToSell: profile.RemainingVacationDays}
	if profile.CompensationRatePerDay.IsPositive() {
		prefill.Form.RatePerDay = profile.CompensationRatePerDay.String()
	}
	return prefill, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitVacation validates the form against the current balance, stores a
// pending request and returns the refreshed dashboard.
func (c *Controller) SubmitVacation(ctx context.Context, owner UserID, form VacationForm) (*VacationRequest, *Dashboard, error) {
	release, err := c.begin(owner, "vacation_submit")
	if err != nil {
		return nil, nil, err
	}
	defer release()

	profile, err := c.loadProfile(ctx, owner)
	if err != nil {
		return nil, nil, err
	}

	draft, err := ValidateVacation(form, profile.RemainingVacationDays)
	if err != nil {
		return nil, nil, err
	}

	now := c.Now()
	req := VacationRequest{
		ID:            c.NewID(),
		UserID:        owner,
		StartDate:     draft.Period.Start,
		EndDate:       draft.Period.End,
		DaysRequested: draft.DaysRequested,
		Status:        StatusPending,
		Reason:        draft.Reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.Store.InsertVacationRequest(ctx, req); err != nil {
		log.Printf("[vacation] insert vacation request for %s failed: %v", owner, err)
		return nil, nil, fmt.Errorf("submit vacation request: %w", err)
	}

	dash, err := c.Refresh(ctx, owner)
	if err != nil {
		return &req, nil, err
	}
	return &req, dash, nil
}

// SubmitCompensation validates the form against the current balance, stores
// a pending request and returns the refreshed dashboard.
func (c *Controller) SubmitCompensation(ctx context.Context, owner UserID, form CompensationForm) (*CompensationRequest, *Dashboard, error) {
	release, err := c.begin(owner, "compensation_submit")
	if err != nil {
		return nil, nil, err
	}
	defer release()

	profile, err := c.loadProfile(ctx, owner)
	if err != nil {
		return nil, nil, err
	}

	draft, err := ValidateCompensation(form, profile.RemainingVacationDays)
	if err != nil {
		return nil, nil, err
	}

	now := c.Now()
	req := CompensationRequest{
		ID:          c.NewID(),
		UserID:      owner,
		DaysToSell:  draft.DaysToSell,
		RatePerDay:  draft.RatePerDay,
		TotalAmount: draft.TotalAmount,
		Status:      StatusPending,
		Notes:       draft.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.Store.InsertCompensationRequest(ctx, req); err != nil {
		log.Printf("[vacation] insert compensation request for %s failed: %v", owner, err)
		return nil, nil, fmt.Errorf("submit compensation request: %w", err)
	}

	dash, err := c.Refresh(ctx, owner)
	if err != nil {
		return &req, nil, err
	}
	return &req, dash, nil
}

// =============================================================================
// CANCEL - pending -> cancelled, owner only
// =============================================================================

// CancelVacation cancels one of the owner's pending vacation requests.
func (c *Controller) CancelVacation(ctx context.Context, owner UserID, id string) (*Dashboard, error) {
	release, err := c.begin(owner, "vacation_cancel:"+id)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := c.Store.GetVacationRequest(ctx, id)
	if err != nil {
		log.Printf("[vacation] load vacation request %s failed: %v", id, err)
		return nil, fmt.Errorf("load vacation request: %w", err)
	}
	if req == nil || req.UserID != owner {
		return nil, fmt.Errorf("vacation request %s: %w", id, generic.ErrNotFound)
	}

	if err := c.cancel(ctx, KindVacation, id, req.Status, func(ctx context.Context) (bool, error) {
		return c.Store.UpdateVacationStatus(ctx, id, StatusPending, StatusCancelled)
	}, func(ctx context.Context) (Status, error) {
		cur, err := c.Store.GetVacationRequest(ctx, id)
		if err != nil {
			return "", err
		}
		if cur == nil {
			return "", fmt.Errorf("vacation request %s: %w", id, generic.ErrNotFound)
		}
		return cur.Status, nil
	}); err != nil {
		return nil, err
	}

	return c.Refresh(ctx, owner)
}

// CancelCompensation cancels one of the owner's pending compensation requests.
func (c *Controller) CancelCompensation(ctx context.Context, owner UserID, id string) (*Dashboard, error) {
	release, err := c.begin(owner, "compensation_cancel:"+id)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := c.Store.GetCompensationRequest(ctx, id)
	if err != nil {
		log.Printf("[vacation] load compensation request %s failed: %v", id, err)
		return nil, fmt.Errorf("load compensation request: %w", err)
	}
	if req == nil || req.UserID != owner {
		return nil, fmt.Errorf("compensation request %s: %w", id, generic.ErrNotFound)
	}

	if err := c.cancel(ctx, KindCompensation, id, req.Status, func(ctx context.Context) (bool, error) {
		return c.Store.UpdateCompensationStatus(ctx, id, StatusPending, StatusCancelled)
	}, func(ctx context.Context) (Status, error) {
		cur, err := c.Store.GetCompensationRequest(ctx, id)
		if err != nil {
			return "", err
		}
		if cur == nil {
			return "", fmt.Errorf("compensation request %s: %w", id, generic.ErrNotFound)
		}
		return cur.Status, nil
	}); err != nil {
		return nil, err
	}

	return c.Refresh(ctx, owner)
}

// cancel checks the transition, runs the conditional update and, when the
// update matched nothing, re-reads the status to report what it became.
func (c *Controller) cancel(
	ctx context.Context,
	kind Kind,
	id string,
	current Status,
	update func(context.Context) (bool, error),
	reread func(context.Context) (Status, error),
) error {
	if !current.CanTransitionTo(StatusCancelled) {
		return &generic.TransitionError{Kind: string(kind), ID: id, From: string(current), To: string(StatusCancelled)}
	}

	changed, err := update(ctx)
	if err != nil {
		log.Printf("[vacation] cancel %s %s failed: %v", kind, id, err)
		return fmt.Errorf("cancel %s: %w", kind, err)
	}
	if changed {
		return nil
	}

	now, err := reread(ctx)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", kind, err)
	}
	return fmt.Errorf("%w: %w", generic.ErrConcurrentModification,
		&generic.TransitionError{Kind: string(kind), ID: id, From: string(now), To: string(StatusCancelled)})
}

// =============================================================================
// PREVIEWS - What the forms show while typing
// =============================================================================

// PreviewBusinessDays counts business days for a tentative range. Incomplete
// or inverted input previews as zero rather than failing.
func PreviewBusinessDays(start, end string) int {
	s, err := generic.ParseDate(start)
	if err != nil {
		return 0
	}
	e, err := generic.ParseDate(end)
	if err != nil {
		return 0
	}
	return generic.BusinessDaysBetween(s, e)
}

// QuoteCompensation previews days x rate. Unparseable input quotes as zero.
func QuoteCompensation(days, rate string) decimal.Decimal {
	d, err := ParseAmount(days)
	if err != nil {
		return decimal.Zero
	}
	r, err := ParseAmount(rate)
	if err != nil {
		return decimal.Zero
	}
	return CompensationTotal(d, r)
}
