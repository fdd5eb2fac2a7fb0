package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage 复用错误码，替换提示信息
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Is 按错误码比较，WithMessage 派生出的错误仍然匹配原错误
func (e Errno) Is(target error) bool {
	var t Errno
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, Message: "Token invalid"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
	ErrForbidden        = Errno{Code: 10005, Message: "Permission denied"}
	ErrUnauthorized     = Errno{Code: 10007, Message: "Missing or invalid identity"}
	ErrNotFound         = Errno{Code: 10006, Message: "Resource not found"}
)

// Business Errors (20000+)
var (
	// 用户 201xx
	ErrUserNotFound        = Errno{Code: 20101, Message: "User not found"}
	ErrEmailExists         = Errno{Code: 20102, Message: "Email already registered"}
	ErrReferralCodeInvalid = Errno{Code: 20103, Message: "Referral code not found"}
	ErrUserInactive        = Errno{Code: 20104, Message: "User is inactive or suspended"}
	ErrPinNotSet           = Errno{Code: 20105, Message: "Withdrawal PIN not set"}
	ErrPinIncorrect        = Errno{Code: 20106, Message: "Withdrawal PIN incorrect"}
	ErrCannotModifyUser    = Errno{Code: 20107, Message: "Cannot modify yourself or another admin"}

	// 投资 202xx
	ErrPlanNotFound       = Errno{Code: 20201, Message: "Investment plan not found"}
	ErrPlanInactive       = Errno{Code: 20202, Message: "Investment plan is not active"}
	ErrAmountOutOfRange   = Errno{Code: 20203, Message: "Amount outside plan range"}
	ErrInvalidPlan        = Errno{Code: 20204, Message: "Invalid plan parameters"}
	ErrInvestmentNotFound = Errno{Code: 20205, Message: "Investment not found"}
	ErrInvestmentState    = Errno{Code: 20206, Message: "Investment is not pending"}

	// 提现 203xx
	ErrInsufficientBalance = Errno{Code: 20301, Message: "Insufficient balance"}
	ErrBelowMinimum        = Errno{Code: 20302, Message: "Amount below minimum withdrawal"}
	ErrInvalidWallet       = Errno{Code: 20303, Message: "Invalid wallet address"}
	ErrWithdrawalNotFound  = Errno{Code: 20304, Message: "Withdrawal not found"}
	ErrWithdrawalState     = Errno{Code: 20305, Message: "Withdrawal is not pending"}

	// 任务 204xx
	ErrJobRunning = Errno{Code: 20401, Message: "Job already running"}
)
