package queue

// Route 处理失败后的去向
type Route int

const (
	RouteAck Route = iota
	RouteRetry
	RouteDeadLetter
)

// String 用作日志与指标标签
func (r Route) String() string {
	switch r {
	case RouteRetry:
		return "retry"
	case RouteDeadLetter:
		return "dead_letter"
	default:
		return "ok"
	}
}

// Decide 根据本次处理结果决定消息去向。
// 无效消息直接进入死信队列；第 attempt 次失败且未达 maxAttempts 时进入第 attempt 级重试队列。
func Decide(attempt, maxAttempts int, err error, valid bool) Route {
	if err == nil {
		return RouteAck
	}
	if !valid {
		return RouteDeadLetter
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if attempt < maxAttempts {
		return RouteRetry
	}
	return RouteDeadLetter
}
