package subfund

import (
	"context"

	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/plan"
	"github.com/xraph/subfund/protocol"
	"github.com/xraph/subfund/provider"
	"github.com/xraph/subfund/types"
)

// ──────────────────────────────────────────────────
// Protocol administration
// ──────────────────────────────────────────────────

// Initialize creates the protocol configuration singleton with the given
// authority. It fails if the protocol was already initialized.
func (e *Engine) Initialize(ctx context.Context, authority id.UserID) (*protocol.Config, error) {
	defer e.locks.acquire("config")()

	cfg := protocol.New(authority)
	if err := e.store.CreateConfig(ctx, cfg); err != nil {
		return nil, err
	}

	e.logger.Info("protocol initialized",
		"authority", authority,
		"fee_bps", cfg.FeeBps,
	)
	return cfg, nil
}

// Config returns the protocol configuration.
func (e *Engine) Config(ctx context.Context) (*protocol.Config, error) {
	return e.store.GetConfig(ctx)
}

// SetPaused toggles the protocol pause flag. Authority only.
func (e *Engine) SetPaused(ctx context.Context, caller id.UserID, paused bool) error {
	defer e.locks.acquire("config")()

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Authority != caller {
		return ErrUnauthorized
	}

	next := *cfg
	next.Paused = paused
	next.Touch()
	if err := e.store.UpdateConfig(ctx, &next); err != nil {
		return err
	}

	e.logger.Info("protocol pause toggled", "paused", paused)
	return nil
}

// SetFeeBps updates the protocol fee. Authority only; the fee is capped
// at MaxFeeBps.
func (e *Engine) SetFeeBps(ctx context.Context, caller id.UserID, feeBps uint16) error {
	defer e.locks.acquire("config")()

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Authority != caller {
		return ErrUnauthorized
	}
	if feeBps > protocol.MaxFeeBps {
		return ErrInvalidFee
	}

	next := *cfg
	next.FeeBps = feeBps
	next.Touch()
	if err := e.store.UpdateConfig(ctx, &next); err != nil {
		return err
	}

	e.logger.Info("protocol fee updated", "fee_bps", feeBps)
	return nil
}

// ──────────────────────────────────────────────────
// Provider registry
// ──────────────────────────────────────────────────

// RegisterProvider registers the calling user as a service provider.
// A user owns at most one provider record.
func (e *Engine) RegisterProvider(ctx context.Context, ownerID id.UserID, name, description string) (*provider.Provider, error) {
	if name == "" || len(name) > provider.MaxNameLength {
		return nil, ErrNameTooLong
	}
	if len(description) > provider.MaxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}

	defer e.locks.acquire("config", "provider/"+ownerID.String())()

	if err := e.requireUnpaused(ctx); err != nil {
		return nil, err
	}

	existing, err := e.store.ListProviders(ctx, provider.ListOpts{})
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.OwnerID == ownerID {
			return nil, ErrAlreadyExists
		}
	}

	prov := &provider.Provider{
		Entity:      types.NewEntity(),
		ID:          id.NewProviderID(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
	}
	if err := e.store.CreateProvider(ctx, prov); err != nil {
		return nil, err
	}

	e.plugins.EmitProviderRegistered(ctx, prov)
	e.logger.Info("provider registered", "provider", prov.ID, "name", name)
	return prov, nil
}

// Provider retrieves a provider by ID.
func (e *Engine) Provider(ctx context.Context, providerID id.ProviderID) (*provider.Provider, error) {
	return e.store.GetProvider(ctx, providerID)
}

// ListProviders lists registered providers.
func (e *Engine) ListProviders(ctx context.Context, opts provider.ListOpts) ([]*provider.Provider, error) {
	return e.store.ListProviders(ctx, opts)
}

// VerifyProvider marks a provider as verified. Authority only.
func (e *Engine) VerifyProvider(ctx context.Context, caller id.UserID, providerID id.ProviderID) error {
	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Authority != caller {
		return ErrUnauthorized
	}

	defer e.locks.acquire("provider/" + providerID.String())()

	prov, err := e.store.GetProvider(ctx, providerID)
	if err != nil {
		return err
	}

	next := *prov
	next.Verified = true
	next.Touch()
	return e.store.UpdateProvider(ctx, &next)
}

// ──────────────────────────────────────────────────
// Service registry
// ──────────────────────────────────────────────────

// ServiceSpec describes a new service plan to register.
type ServiceSpec struct {
	Name              string
	Description       string
	FeeUSD            types.Money
	BillingPeriodDays uint64
	ImageURL          string
	MaxSubscribers    uint64 // 0 = unlimited
}

// RegisterService lists a new service plan under the caller's provider.
// Service IDs are sequential per provider, starting at 1.
func (e *Engine) RegisterService(ctx context.Context, ownerID id.UserID, providerID id.ProviderID, spec ServiceSpec) (*plan.Plan, error) {
	if spec.Name == "" || len(spec.Name) > plan.MaxNameLength {
		return nil, ErrNameTooLong
	}
	if len(spec.Description) > plan.MaxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if len(spec.ImageURL) > plan.MaxImageURLLength {
		return nil, ErrURLTooLong
	}
	if !spec.FeeUSD.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if spec.BillingPeriodDays < plan.MinBillingPeriodDays || spec.BillingPeriodDays > plan.MaxBillingPeriodDays {
		return nil, ErrInvalidBillingPeriod
	}

	defer e.locks.acquire("config", "provider/"+providerID.String())()

	if err := e.requireUnpaused(ctx); err != nil {
		return nil, err
	}

	prov, err := e.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if prov.OwnerID != ownerID {
		return nil, ErrUnauthorized
	}

	nextProv := *prov
	nextProv.ServiceCount++
	nextProv.Touch()

	p := &plan.Plan{
		Entity:            types.NewEntity(),
		ID:                id.NewServiceID(),
		ProviderID:        providerID,
		ServiceID:         nextProv.ServiceCount,
		Name:              spec.Name,
		Description:       spec.Description,
		FeeUSD:            spec.FeeUSD,
		BillingPeriodDays: spec.BillingPeriodDays,
		ImageURL:          spec.ImageURL,
		MaxSubscribers:    spec.MaxSubscribers,
		Active:            true,
	}
	if err := e.store.CreatePlan(ctx, p); err != nil {
		return nil, err
	}
	if err := e.store.UpdateProvider(ctx, &nextProv); err != nil {
		return nil, err
	}

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	nextCfg := *cfg
	nextCfg.TotalServices++
	nextCfg.Touch()
	if err := e.store.UpdateConfig(ctx, &nextCfg); err != nil {
		return nil, err
	}

	e.plugins.EmitServiceRegistered(ctx, p)
	e.logger.Info("service registered",
		"provider", providerID,
		"service_id", p.ServiceID,
		"fee", p.FeeUSD,
		"billing_period_days", p.BillingPeriodDays,
	)
	return p, nil
}

// Service retrieves a service plan.
func (e *Engine) Service(ctx context.Context, providerID id.ProviderID, serviceID uint64) (*plan.Plan, error) {
	return e.store.GetPlan(ctx, providerID, serviceID)
}

// ListServices lists registered service plans.
func (e *Engine) ListServices(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	return e.store.ListPlans(ctx, opts)
}

// SetServiceActive toggles a plan's active flag. Provider owner only.
func (e *Engine) SetServiceActive(ctx context.Context, ownerID id.UserID, providerID id.ProviderID, serviceID uint64, active bool) error {
	defer e.locks.acquire("plan/" + providerID.String())()

	prov, err := e.store.GetProvider(ctx, providerID)
	if err != nil {
		return err
	}
	if prov.OwnerID != ownerID {
		return ErrUnauthorized
	}

	p, err := e.store.GetPlan(ctx, providerID, serviceID)
	if err != nil {
		return err
	}

	next := *p
	next.Active = active
	next.Touch()
	return e.store.UpdatePlan(ctx, &next)
}

// requireUnpaused returns ErrProtocolPaused while the protocol is paused.
// Callers hold the config key, so the flag cannot flip mid-operation.
func (e *Engine) requireUnpaused(ctx context.Context) error {
	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Paused {
		return ErrProtocolPaused
	}
	return nil
}
