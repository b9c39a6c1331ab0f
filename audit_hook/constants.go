package audithook

// Action constants for audit events.
const (
	// Fund actions
	ActionDeposit  = "funds.deposited"
	ActionWithdraw = "funds.withdrawn"

	// Registry actions
	ActionProviderRegistered = "provider.registered"
	ActionServiceRegistered  = "service.registered"

	// Subscription actions
	ActionSubscribed   = "subscription.opened"
	ActionUnsubscribed = "subscription.canceled"

	// Payment actions
	ActionPaymentExecuted = "payment.executed"
	ActionPaymentFailed   = "payment.failed"
	ActionBatchCompleted  = "payment.batch.completed"

	// Staking actions
	ActionStaked       = "stake.deposited"
	ActionUnstaked     = "stake.withdrawn"
	ActionYieldClaimed = "yield.claimed"
)

// Resource constants for audit events.
const (
	ResourceBalance      = "balance"
	ResourceProvider     = "provider"
	ResourceService      = "service"
	ResourceSubscription = "subscription"
	ResourcePayment      = "payment"
	ResourceStake        = "stake"
)

// Category constants for audit events.
const (
	CategoryFunds        = "funds"
	CategoryRegistry     = "registry"
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategoryStaking      = "staking"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
