package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound 表示事件引用了本地不存在的聚合。
	// 这是致命的不一致：重试不可能修复，必须告警给运维而不是静默丢弃。
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidOrder 表示下单入参不完整。
	ErrInvalidOrder = errors.New("order is missing required fields")

	// ErrVersionConflict 表示乐观锁冲突：另一条并发事件先提交了。
	// 调用方应当重读聚合并重新评估守卫，多数情况下会变成 no-op。
	ErrVersionConflict = errors.New("order version conflict")
)

// IllegalTransitionError 表示事件到达时订单状态不满足前置条件。
// 拒绝而不是强行套用，状态保持不变；重试也不会让前置条件成立。
type IllegalTransitionError struct {
	OrderNumber string
	From        Status
	To          Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal transition %s -> %s", e.OrderNumber, e.From, e.To)
}

// IsIllegalTransition 判断 err 是否为非法流转。
func IsIllegalTransition(err error) bool {
	var ite *IllegalTransitionError
	return errors.As(err, &ite)
}

// IsFatal 报告错误是否属于重试无益的类别。
// 消费端对这类错误提交 offset（不再重投），只保留日志与告警。
func IsFatal(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || IsIllegalTransition(err)
}
