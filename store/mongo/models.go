package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/subfund/balance"
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/payment"
	"github.com/xraph/subfund/plan"
	"github.com/xraph/subfund/protocol"
	"github.com/xraph/subfund/provider"
	"github.com/xraph/subfund/stake"
	"github.com/xraph/subfund/subscription"
	"github.com/xraph/subfund/types"
)

// configRowID pins the protocol config singleton to one document.
const configRowID = "config"

// ==================== Config models ====================

type configModel struct {
	grove.BaseModel `grove:"table:subfund_config"`

	ID                 string    `grove:"id,pk"                bson:"_id"`
	Authority          string    `grove:"authority"            bson:"authority"`
	FeeBps             int       `grove:"fee_bps"              bson:"fee_bps"`
	Paused             bool      `grove:"paused"               bson:"paused"`
	TotalServices      int64     `grove:"total_services"       bson:"total_services"`
	TotalFeesCollected int64     `grove:"total_fees_collected" bson:"total_fees_collected"`
	LastPaymentRun     time.Time `grove:"last_payment_run"     bson:"last_payment_run"`
	CreatedAt          time.Time `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"           bson:"updated_at"`
}

func toConfigModel(c *protocol.Config) *configModel {
	return &configModel{
		ID:                 configRowID,
		Authority:          c.Authority.String(),
		FeeBps:             int(c.FeeBps),
		Paused:             c.Paused,
		TotalServices:      int64(c.TotalServices),
		TotalFeesCollected: int64(c.TotalFeesCollected),
		LastPaymentRun:     c.LastPaymentRun,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func fromConfigModel(m *configModel) (*protocol.Config, error) {
	authority, err := id.ParseUserID(m.Authority)
	if err != nil {
		return nil, err
	}

	return &protocol.Config{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Authority:          authority,
		FeeBps:             uint16(m.FeeBps),
		Paused:             m.Paused,
		TotalServices:      uint64(m.TotalServices),
		TotalFeesCollected: types.Amount(m.TotalFeesCollected),
		LastPaymentRun:     m.LastPaymentRun,
	}, nil
}

// ==================== Provider models ====================

type providerModel struct {
	grove.BaseModel `grove:"table:subfund_providers"`

	ID               string    `grove:"id,pk"             bson:"_id"`
	OwnerID          string    `grove:"owner_id"          bson:"owner_id"`
	Name             string    `grove:"name"              bson:"name"`
	Description      string    `grove:"description"       bson:"description"`
	ServiceCount     int64     `grove:"service_count"     bson:"service_count"`
	TotalSubscribers int64     `grove:"total_subscribers" bson:"total_subscribers"`
	Verified         bool      `grove:"verified"          bson:"verified"`
	CreatedAt        time.Time `grove:"created_at"        bson:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"        bson:"updated_at"`
}

func toProviderModel(p *provider.Provider) *providerModel {
	return &providerModel{
		ID:               p.ID.String(),
		OwnerID:          p.OwnerID.String(),
		Name:             p.Name,
		Description:      p.Description,
		ServiceCount:     int64(p.ServiceCount),
		TotalSubscribers: int64(p.TotalSubscribers),
		Verified:         p.Verified,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func fromProviderModel(m *providerModel) (*provider.Provider, error) {
	providerID, err := id.ParseProviderID(m.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := id.ParseUserID(m.OwnerID)
	if err != nil {
		return nil, err
	}

	return &provider.Provider{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               providerID,
		OwnerID:          ownerID,
		Name:             m.Name,
		Description:      m.Description,
		ServiceCount:     uint64(m.ServiceCount),
		TotalSubscribers: uint64(m.TotalSubscribers),
		Verified:         m.Verified,
	}, nil
}

// ==================== Plan models ====================

type planModel struct {
	grove.BaseModel `grove:"table:subfund_plans"`

	ID                 string    `grove:"id,pk"               bson:"_id"`
	ProviderID         string    `grove:"provider_id"         bson:"provider_id"`
	ServiceID          int64     `grove:"service_id"          bson:"service_id"`
	Name               string    `grove:"name"                bson:"name"`
	Description        string    `grove:"description"         bson:"description"`
	FeeUSDCents        int64     `grove:"fee_usd_cents"       bson:"fee_usd_cents"`
	BillingPeriodDays  int64     `grove:"billing_period_days" bson:"billing_period_days"`
	ImageURL           string    `grove:"image_url"           bson:"image_url"`
	CurrentSubscribers int64     `grove:"current_subscribers" bson:"current_subscribers"`
	MaxSubscribers     int64     `grove:"max_subscribers"     bson:"max_subscribers"`
	Active             bool      `grove:"active"              bson:"active"`
	CreatedAt          time.Time `grove:"created_at"          bson:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"          bson:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	return &planModel{
		ID:                 p.ID.String(),
		ProviderID:         p.ProviderID.String(),
		ServiceID:          int64(p.ServiceID),
		Name:               p.Name,
		Description:        p.Description,
		FeeUSDCents:        p.FeeUSD.Cents,
		BillingPeriodDays:  int64(p.BillingPeriodDays),
		ImageURL:           p.ImageURL,
		CurrentSubscribers: int64(p.CurrentSubscribers),
		MaxSubscribers:     int64(p.MaxSubscribers),
		Active:             p.Active,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel) (*plan.Plan, error) {
	planID, err := id.ParseServiceID(m.ID)
	if err != nil {
		return nil, err
	}
	providerID, err := id.ParseProviderID(m.ProviderID)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 planID,
		ProviderID:         providerID,
		ServiceID:          uint64(m.ServiceID),
		Name:               m.Name,
		Description:        m.Description,
		FeeUSD:             types.USD(m.FeeUSDCents),
		BillingPeriodDays:  uint64(m.BillingPeriodDays),
		ImageURL:           m.ImageURL,
		CurrentSubscribers: uint64(m.CurrentSubscribers),
		MaxSubscribers:     uint64(m.MaxSubscribers),
		Active:             m.Active,
	}, nil
}

// ==================== Balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:subfund_balances"`

	UserID             string    `grove:"user_id,pk"           bson:"_id"`
	Available          int64     `grove:"available"            bson:"available"`
	Locked             int64     `grove:"locked"               bson:"locked"`
	Staked             int64     `grove:"staked"               bson:"staked"`
	TotalDeposited     int64     `grove:"total_deposited"      bson:"total_deposited"`
	TotalWithdrawn     int64     `grove:"total_withdrawn"      bson:"total_withdrawn"`
	TotalYieldCredited int64     `grove:"total_yield_credited" bson:"total_yield_credited"`
	CreatedAt          time.Time `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"           bson:"updated_at"`
}

func toBalanceModel(b *balance.Balance) *balanceModel {
	return &balanceModel{
		UserID:             b.UserID.String(),
		Available:          int64(b.Available),
		Locked:             int64(b.Locked),
		Staked:             int64(b.Staked),
		TotalDeposited:     int64(b.TotalDeposited),
		TotalWithdrawn:     int64(b.TotalWithdrawn),
		TotalYieldCredited: int64(b.TotalYieldCredited),
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func fromBalanceModel(m *balanceModel) (*balance.Balance, error) {
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}

	return &balance.Balance{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID:             userID,
		Available:          types.Amount(m.Available),
		Locked:             types.Amount(m.Locked),
		Staked:             types.Amount(m.Staked),
		TotalDeposited:     types.Amount(m.TotalDeposited),
		TotalWithdrawn:     types.Amount(m.TotalWithdrawn),
		TotalYieldCredited: types.Amount(m.TotalYieldCredited),
	}, nil
}

// ==================== Stake models ====================

type stakeModel struct {
	grove.BaseModel `grove:"table:subfund_stakes"`

	UserID           string    `grove:"user_id,pk"         bson:"_id"`
	ID               string    `grove:"id"                 bson:"id"`
	Principal        int64     `grove:"principal"          bson:"principal"`
	YieldUnits       int64     `grove:"yield_units"        bson:"yield_units"`
	StakedAt         time.Time `grove:"staked_at"          bson:"staked_at"`
	LastYieldClaim   time.Time `grove:"last_yield_claim"   bson:"last_yield_claim"`
	TotalYieldEarned int64     `grove:"total_yield_earned" bson:"total_yield_earned"`
	Active           bool      `grove:"active"             bson:"active"`
	CreatedAt        time.Time `grove:"created_at"         bson:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"         bson:"updated_at"`
}

func toStakeModel(p *stake.Position) *stakeModel {
	return &stakeModel{
		UserID:           p.UserID.String(),
		ID:               p.ID.String(),
		Principal:        int64(p.Principal),
		YieldUnits:       int64(p.YieldUnits),
		StakedAt:         p.StakedAt,
		LastYieldClaim:   p.LastYieldClaim,
		TotalYieldEarned: int64(p.TotalYieldEarned),
		Active:           p.Active,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func fromStakeModel(m *stakeModel) (*stake.Position, error) {
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	stakeID, err := id.ParseStakeID(m.ID)
	if err != nil {
		return nil, err
	}

	return &stake.Position{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               stakeID,
		UserID:           userID,
		Principal:        types.Amount(m.Principal),
		YieldUnits:       types.Amount(m.YieldUnits),
		StakedAt:         m.StakedAt,
		LastYieldClaim:   m.LastYieldClaim,
		TotalYieldEarned: types.Amount(m.TotalYieldEarned),
		Active:           m.Active,
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:subfund_subscriptions"`

	ID             string     `grove:"id,pk"            bson:"_id"`
	UserID         string     `grove:"user_id"          bson:"user_id"`
	ProviderID     string     `grove:"provider_id"      bson:"provider_id"`
	ServiceID      int64      `grove:"service_id"       bson:"service_id"`
	SubscribedAt   time.Time  `grove:"subscribed_at"    bson:"subscribed_at"`
	NextPaymentDue time.Time  `grove:"next_payment_due" bson:"next_payment_due"`
	LastPaymentAt  *time.Time `grove:"last_payment_at"  bson:"last_payment_at,omitempty"`
	TotalPayments  int64      `grove:"total_payments"   bson:"total_payments"`
	LockReserved   int64      `grove:"lock_reserved"    bson:"lock_reserved"`
	LockConsumed   int64      `grove:"lock_consumed"    bson:"lock_consumed"`
	Active         bool       `grove:"active"           bson:"active"`
	UnsubscribedAt *time.Time `grove:"unsubscribed_at"  bson:"unsubscribed_at,omitempty"`
	CreatedAt      time.Time  `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"       bson:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:             s.ID.String(),
		UserID:         s.UserID.String(),
		ProviderID:     s.ProviderID.String(),
		ServiceID:      int64(s.ServiceID),
		SubscribedAt:   s.SubscribedAt,
		NextPaymentDue: s.NextPaymentDue,
		LastPaymentAt:  s.LastPaymentAt,
		TotalPayments:  int64(s.TotalPayments),
		LockReserved:   int64(s.LockReserved),
		LockConsumed:   int64(s.LockConsumed),
		Active:         s.Active,
		UnsubscribedAt: s.UnsubscribedAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	providerID, err := id.ParseProviderID(m.ProviderID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             subID,
		UserID:         userID,
		ProviderID:     providerID,
		ServiceID:      uint64(m.ServiceID),
		SubscribedAt:   m.SubscribedAt,
		NextPaymentDue: m.NextPaymentDue,
		LastPaymentAt:  m.LastPaymentAt,
		TotalPayments:  uint64(m.TotalPayments),
		LockReserved:   types.Amount(m.LockReserved),
		LockConsumed:   types.Amount(m.LockConsumed),
		Active:         m.Active,
		UnsubscribedAt: m.UnsubscribedAt,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:subfund_payments"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	UserID     string    `grove:"user_id"     bson:"user_id"`
	ProviderID string    `grove:"provider_id" bson:"provider_id"`
	ServiceID  int64     `grove:"service_id"  bson:"service_id"`
	Amount     int64     `grove:"amount"      bson:"amount"`
	Fee        int64     `grove:"fee"         bson:"fee"`
	PaidAt     time.Time `grove:"paid_at"     bson:"paid_at"`
	Kind       string    `grove:"kind"        bson:"kind"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
}

func toPaymentModel(r *payment.Record) *paymentModel {
	return &paymentModel{
		ID:         r.ID.String(),
		UserID:     r.UserID.String(),
		ProviderID: r.ProviderID.String(),
		ServiceID:  int64(r.ServiceID),
		Amount:     int64(r.Amount),
		Fee:        int64(r.Fee),
		PaidAt:     r.PaidAt,
		Kind:       string(r.Kind),
		CreatedAt:  r.CreatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Record, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	providerID, err := id.ParseProviderID(m.ProviderID)
	if err != nil {
		return nil, err
	}

	return &payment.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.CreatedAt,
		},
		ID:         payID,
		UserID:     userID,
		ProviderID: providerID,
		ServiceID:  uint64(m.ServiceID),
		Amount:     types.Amount(m.Amount),
		Fee:        types.Amount(m.Fee),
		PaidAt:     m.PaidAt,
		Kind:       payment.Kind(m.Kind),
	}, nil
}
