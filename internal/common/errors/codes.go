package errors

// 1xxx 基础设施
var (
	ErrUnknown         = New(1000, "未知错误")
	ErrDatabaseError   = New(1004, "数据库错误")
	ErrCacheError      = New(1005, "缓存错误")
	ErrInternalError   = New(1006, "内部错误")
	ErrExternalService = New(1007, "外部服务错误")
	ErrRateLimitExceed = New(1008, "请求过于频繁")
	ErrQueueError      = New(1009, "消息队列错误")
)

// 3xxx 钱包
var (
	ErrWalletNotFound      = New(3000, "钱包不存在")
	ErrBalanceInsufficient = New(3001, "余额不足")
	ErrFrozenInsufficient  = New(3002, "冻结金额不足")
	ErrConcurrencyConflict = New(3003, "钱包数据已被修改，请重试")
	ErrInvalidAmount       = New(3004, "金额无效")
	ErrMemberNotFound      = New(3005, "会员不存在")
)

// 4xxx 推荐关系与佣金
var (
	ErrOrderNotFound    = New(4002, "订单不存在")
	ErrReferralSelfBind = New(4003, "不能绑定自己为上级")
	ErrReferralCycle    = New(4004, "推荐关系存在循环")
)

// 5xxx 提现
var (
	ErrWithdrawalNotFound = New(5000, "提现记录不存在")
	ErrWithdrawalStatus   = New(5001, "提现状态异常")
	ErrWithdrawBelowMin   = New(5002, "提现金额低于最低限额")
	ErrWithdrawMethod     = New(5003, "不支持的提现方式")
	ErrWithdrawProcessing = New(5004, "提现打款处理中")
	ErrPaymentFailed      = New(5005, "打款失败")
	ErrInvalidAuditAction = New(5006, "无效的审核操作")
)
