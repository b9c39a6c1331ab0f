// Package mongo implements the Subfund store on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

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

// Collection name constants.
const (
	colConfig        = "subfund_config"
	colProviders     = "subfund_providers"
	colPlans         = "subfund_plans"
	colBalances      = "subfund_balances"
	colStakes        = "subfund_stakes"
	colSubscriptions = "subfund_subscriptions"
	colPayments      = "subfund_payments"
)

// compile-time interface check
var _ subfundstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all subfund collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("subfund/mongo: migrate %s indexes: %w", col, err)
		}
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
	var existing configModel
	err := s.mdb.NewFind(&existing).
		Filter(bson.M{"_id": configRowID}).
		Scan(ctx)
	if err == nil {
		return subfund.ErrProtocolInitalized
	}
	if !isNoDocuments(err) {
		return fmt.Errorf("subfund/mongo: check config: %w", err)
	}

	m := toConfigModel(cfg)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("subfund/mongo: create config: %w", err)
	}
	return nil
}

func (s *Store) GetConfig(ctx context.Context) (*protocol.Config, error) {
	var m configModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": configRowID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, subfund.ErrProtocolNotInit
		}
		return nil, fmt.Errorf("subfund/mongo: get config: %w", err)
	}
	return fromConfigModel(&m)
}

func (s *Store) UpdateConfig(ctx context.Context, cfg *protocol.Config) error {
	m := toConfigModel(cfg)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subfund/mongo: update config: %w", err)
	}
	if res.MatchedCount() == 0 {
		return subfund.ErrProtocolNotInit
	}
	return nil
}

// ==================== Provider Store ====================

func (s *Store) CreateProvider(ctx context.Context, p *provider.Provider) error {
	m := toProviderModel(p)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("subfund/mongo: create provider: %w", err)
	}
	return nil
}

func (s *Store) GetProvider(ctx context.Context, providerID id.ProviderID) (*provider.Provider, error) {
	var m providerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": providerID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, subfund.ErrProviderNotFound
		}
		return nil, fmt.Errorf("subfund/mongo: get provider: %w", err)
	}
	return fromProviderModel(&m)
}

func (s *Store) ListProviders(ctx context.Context, opts provider.ListOpts) ([]*provider.Provider, error) {
	var models []providerModel

	filter := bson.M{}
	if opts.VerifiedOnly {
		filter["verified"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("subfund/mongo: list providers: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subfund/mongo: update provider: %w", err)
	}
	if res.MatchedCount() == 0 {
		return subfund.ErrProviderNotFound
	}
	return nil
}

// ==================== Plan Store ====================

func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	m := toPlanModel(p)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("subfund/mongo: create plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, providerID id.ProviderID, serviceID uint64) (*plan.Plan, error) {
	var m planModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"provider_id": providerID.String(), "service_id": int64(serviceID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, subfund.ErrPlanNotFound
		}
		return nil, fmt.Errorf("subfund/mongo: get plan: %w", err)
	}
	return fromPlanModel(&m)
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel

	filter := bson.M{}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("subfund/mongo: list plans: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subfund/mongo: update plan: %w", err)
	}
	if res.MatchedCount() == 0 {
		return subfund.ErrPlanNotFound
	}
	return nil
}

// ==================== Balance Store ====================

func (s *Store) CreateBalance(ctx context.Context, b *balance.Balance) error {
	m := toBalanceModel(b)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("subfund/mongo: create balance: %w", err)
	}
	return nil
}

func (s *Store) GetBalance(ctx context.Context, userID id.UserID) (*balance.Balance, error) {
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, subfund.ErrBalanceNotFound
		}
		return nil, fmt.Errorf("subfund/mongo: get balance: %w", err)
	}
	return fromBalanceModel(&m)
}

func (s *Store) UpdateBalance(ctx context.Context, b *balance.Balance) error {
	m := toBalanceModel(b)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.UserID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subfund/mongo: update balance: %w", err)
	}
	if res.MatchedCount() == 0 {
		return subfund.ErrBalanceNotFound
	}
	return nil
}

// ==================== Stake Store ====================

func (s *Store) CreateStake(ctx context.Context, pos *stake.Position) error {
	m := toStakeModel(pos)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("subfund/mongo: create stake: %w", err)
	}
	return nil
}

func (s *Store) GetStake(ctx context.Context, userID id.UserID) (*stake.Position, error) {
	var m stakeModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, subfund.ErrStakeNotFound
		}
		return nil, fmt.Errorf("subfund/mongo: get stake: %w", err)
	}
	return fromStakeModel(&m)
}

func (s *Store) UpdateStake(ctx context.Context, pos *stake.Position) error {
	m := toStakeModel(pos)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.UserID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subfund/mongo: update stake: %w", err)
	}
	if res.MatchedCount() == 0 {
		return subfund.ErrStakeNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("subfund/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, key subscription.Key) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"user_id":     key.UserID.String(),
			"provider_id": key.ProviderID.String(),
			"service_id":  int64(key.ServiceID),
		}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, subfund.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("subfund/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptions(ctx context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	filter := bson.M{"user_id": userID.String()}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("subfund/mongo: list subscriptions: %w", err)
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

	q := s.mdb.NewFind(&models).
		Filter(bson.M{
			"active":           true,
			"next_payment_due": bson.M{"$lte": due},
		}).
		Sort(bson.D{{Key: "next_payment_due", Value: 1}})

	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("subfund/mongo: list due subscriptions: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subfund/mongo: update subscription: %w", err)
	}
	if res.MatchedCount() == 0 {
		return subfund.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) AppendPayment(ctx context.Context, rec *payment.Record) error {
	m := toPaymentModel(rec)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("subfund/mongo: append payment: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, userID id.UserID, opts payment.ListOpts) ([]*payment.Record, error) {
	var models []paymentModel

	filter := bson.M{"user_id": userID.String()}
	paidAt := bson.M{}
	if !opts.Since.IsZero() {
		paidAt["$gte"] = opts.Since
	}
	if !opts.Until.IsZero() {
		paidAt["$lt"] = opts.Until
	}
	if len(paidAt) > 0 {
		filter["paid_at"] = paidAt
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "paid_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("subfund/mongo: list payments: %w", err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all subfund collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colConfig: {},
		colProviders: {
			{
				Keys:    bson.D{{Key: "owner_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "verified", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colPlans: {
			{
				Keys:    bson.D{{Key: "provider_id", Value: 1}, {Key: "service_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colBalances: {},
		colStakes: {},
		colSubscriptions: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider_id", Value: 1}, {Key: "service_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "next_payment_due", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "paid_at", Value: -1}}},
			{Keys: bson.D{{Key: "provider_id", Value: 1}, {Key: "paid_at", Value: -1}}},
		},
	}
}
