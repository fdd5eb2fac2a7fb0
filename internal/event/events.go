package event

// Outbox 主题
const (
	TopicInvestmentApproved  = "invest_events_investment_approved"
	TopicInvestmentRejected  = "invest_events_investment_rejected"
	TopicWithdrawalRequested = "invest_events_withdrawal_requested"
	TopicWithdrawalReviewed  = "invest_events_withdrawal_reviewed"
	TopicUserRegistered      = "invest_events_user_registered"
)

// InvestmentApprovedEvent 投资审批通过
// Topic: invest_events_investment_approved
type InvestmentApprovedEvent struct {
	InvestmentID uint64 `json:"investment_id"`
	UserID       uint64 `json:"user_id"`
	PlanID       uint64 `json:"plan_id"`
	AdminID      uint64 `json:"admin_id"`
	Amount       string `json:"amount"` // Decimal string
}

// InvestmentRejectedEvent 投资被拒绝
type InvestmentRejectedEvent struct {
	InvestmentID uint64 `json:"investment_id"`
	UserID       uint64 `json:"user_id"`
	AdminID      uint64 `json:"admin_id"`
}

// WithdrawalRequestedEvent 用户发起提现
// Topic: invest_events_withdrawal_requested
type WithdrawalRequestedEvent struct {
	TransactionID uint64 `json:"transaction_id"`
	UserID        uint64 `json:"user_id"`
	WalletID      string `json:"wallet_id"`
	Amount        string `json:"amount"` // Decimal string
}

// WithdrawalReviewedEvent 管理员处理提现
type WithdrawalReviewedEvent struct {
	TransactionID uint64 `json:"transaction_id"`
	UserID        uint64 `json:"user_id"`
	AdminID       uint64 `json:"admin_id"`
	Status        string `json:"status"` // COMPLETED, CANCELLED
	ProofURL      string `json:"proof_url,omitempty"`
}

// UserRegisteredEvent 新用户注册
type UserRegisteredEvent struct {
	UserID     uint64  `json:"user_id"`
	ReferrerID *uint64 `json:"referrer_id,omitempty"`
	Ancestors  int     `json:"ancestors"` // 写入的推荐关系条数
}
