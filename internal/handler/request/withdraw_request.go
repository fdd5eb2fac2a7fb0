package request

import "github.com/shopspring/decimal"

type CreateWithdrawalRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	WalletID string          `json:"wallet_id" binding:"required"`
	Pin      string          `json:"pin" binding:"required,pin"`
}
