// Package postgres implements the Subfund store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	subfund "github.com/xraph/subfund"
	"github.com/xraph/subfund/balance"
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/payment"
	"github.com/xraph/subfund/plan"
	"github.com/xraph/subfund/protocol"
	"github.com/xraph/subfund/provider"
	"github.com/xraph/subfund/stake"
	subfundstore "github.com/xraph/subfund/store"
	"github.com/xraph/subfund/subscription"
)

// compile-time interface check
var _ subfundstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("subfund/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("subfund/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Config Store ====================

func (s *Store) CreateConfig(ctx context.Context, cfg *protocol.Config) error {
	existing := new(configModel)
	err := s.pg.NewSelect(existing).
		Where("id = $1", configRowID).
		Scan(ctx)
	if err == nil {
		return subfund.ErrProtocolInitalized
	}
	if !isNoRows(err) {
		return err
	}

	m := toConfigModel(cfg)
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetConfig(ctx context.Context) (*protocol.Config, error) {
	m := new(configModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", configRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, subfund.ErrProtocolNotInit
		}
		return nil, err
	}
	return fromConfigModel(m)
}

func (s *Store) UpdateConfig(ctx context.Context, cfg *protocol.Config) error {
	m := toConfigModel(cfg)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subfund.ErrProtocolNotInit
	}
	return nil
}

// ==================== Provider Store ====================

func (s *Store) CreateProvider(ctx context.Context, p *provider.Provider) error {
	m := toProviderModel(p)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetProvider(ctx context.Context, providerID id.ProviderID) (*provider.Provider, error) {
	m := new(providerModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", providerID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, subfund.ErrProviderNotFound
		}
		return nil, err
	}
	return fromProviderModel(m)
}

func (s *Store) ListProviders(ctx context.Context, opts provider.ListOpts) ([]*provider.Provider, error) {
	var models []providerModel
	q := s.pg.NewSelect(&models)

	if opts.VerifiedOnly {
		q = q.Where("verified = $1", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*provider.Provider, len(models))
	for i := range models {
		p, err := fromProviderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdateProvider(ctx context.Context, p *provider.Provider) error {
	m := toProviderModel(p)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subfund.ErrProviderNotFound
	}
	return nil
}

// ==================== Plan Store ====================

func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	m := toPlanModel(p)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPlan(ctx context.Context, providerID id.ProviderID, serviceID uint64) (*plan.Plan, error) {
	m := new(planModel)
	err := s.pg.NewSelect(m).
		Where("provider_id = $1", providerID.String()).
		Where("service_id = $2", int64(serviceID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, subfund.ErrPlanNotFound
		}
		return nil, err
	}
	return fromPlanModel(m)
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel
	q := s.pg.NewSelect(&models)

	if opts.ActiveOnly {
		q = q.Where("active = $1", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		p, err := fromPlanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	m := toPlanModel(p)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subfund.ErrPlanNotFound
	}
	return nil
}

// ==================== Balance Store ====================

func (s *Store) CreateBalance(ctx context.Context, b *balance.Balance) error {
	m := toBalanceModel(b)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetBalance(ctx context.Context, userID id.UserID) (*balance.Balance, error) {
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("user_id = $1", userID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, subfund.ErrBalanceNotFound
		}
		return nil, err
	}
	return fromBalanceModel(m)
}

func (s *Store) UpdateBalance(ctx context.Context, b *balance.Balance) error {
	m := toBalanceModel(b)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subfund.ErrBalanceNotFound
	}
	return nil
}

// ==================== Stake Store ====================

func (s *Store) CreateStake(ctx context.Context, pos *stake.Position) error {
	m := toStakeModel(pos)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetStake(ctx context.Context, userID id.UserID) (*stake.Position, error) {
	m := new(stakeModel)
	err := s.pg.NewSelect(m).
		Where("user_id = $1", userID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, subfund.ErrStakeNotFound
		}
		return nil, err
	}
	return fromStakeModel(m)
}

func (s *Store) UpdateStake(ctx context.Context, pos *stake.Position) error {
	m := toStakeModel(pos)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subfund.ErrStakeNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, key subscription.Key) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("user_id = $1", key.UserID.String()).
		Where("provider_id = $2", key.ProviderID.String()).
		Where("service_id = $3", int64(key.ServiceID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, subfund.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) ListSubscriptions(ctx context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.pg.NewSelect(&models).Where("user_id = $1", userID.String())

	if opts.ActiveOnly {
		q = q.Where("active = $2", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) ListDueSubscriptions(ctx context.Context, due time.Time, limit int) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.pg.NewSelect(&models).
		Where("active = $1", true).
		Where("next_payment_due <= $2", due).
		OrderExpr("next_payment_due ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subfund.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) AppendPayment(ctx context.Context, rec *payment.Record) error {
	m := toPaymentModel(rec)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListPayments(ctx context.Context, userID id.UserID, opts payment.ListOpts) ([]*payment.Record, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models).Where("user_id = $1", userID.String())

	argIdx := 1
	if !opts.Since.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("paid_at >= $%d", argIdx), opts.Since)
	}
	if !opts.Until.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("paid_at < $%d", argIdx), opts.Until)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("paid_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payment.Record, len(models))
	for i := range models {
		rec, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
