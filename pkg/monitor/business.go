package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 业务监控指标，注册到默认 Registry
var (
	UserRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invest_user_registered_total",
		Help: "The total number of registered users",
	})

	InvestmentApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invest_investment_approved_total",
		Help: "The total number of approved investments",
	})

	InvestmentAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invest_investment_amount_total",
		Help: "The total approved investment principal",
	})

	CommissionPaidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_commission_paid_total",
		Help: "Referral commission credited, by level",
	}, []string{"level"})

	CommissionFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invest_commission_failed_total",
		Help: "Commission credits that failed and were left for retry",
	})

	DailyProfitAccruedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invest_daily_profit_accrued_total",
		Help: "The total amount of daily profit accrued",
	})

	RankRewardPaidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_rank_reward_paid_total",
		Help: "Rank rewards paid, by rank name",
	}, []string{"rank"})

	WithdrawalRequestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invest_withdrawal_requested_total",
		Help: "Total number of withdrawal requests",
	})

	WithdrawalReviewedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_withdrawal_reviewed_total",
		Help: "Total number of reviewed withdrawals, by outcome",
	}, []string{"status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invest_job_duration_seconds",
		Help:    "Duration of scheduled jobs",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	JobItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_job_items_total",
		Help: "Items handled by scheduled jobs, by outcome",
	}, []string{"job", "outcome"})
)
