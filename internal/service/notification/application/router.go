package application

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"supplyboost/internal/pkg/config"
	"supplyboost/internal/service/notification/domain"
)

// compiledRule 是一条编译好的路由规则。
type compiledRule struct {
	name    string
	channel domain.Channel
	program cel.Program
}

// RuleEngine 用 CEL 表达式决定一条订单事件要在哪些渠道发通知。
// 规则在配置里声明，启动时编译一次，之后求值是纯内存操作。
type RuleEngine struct {
	rules []compiledRule
}

// NewRuleEngine 编译配置里的全部规则。任何一条编译失败都让服务起不来：
// 带着坏规则运行意味着静默漏发通知。
func NewRuleEngine(rules []config.NotificationRule) (*RuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("eventType", cel.StringType),
		cel.Variable("orderNumber", cel.StringType),
		cel.Variable("userId", cel.IntType),
		cel.Variable("previousStatus", cel.StringType),
		cel.Variable("newStatus", cel.StringType),
		cel.Variable("reason", cel.StringType),
		cel.Variable("totalAmount", cel.DoubleType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel environment")
	}

	engine := &RuleEngine{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, errors.Wrapf(issues.Err(), "compile rule %q", rule.Name)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, errors.Wrapf(err, "build program for rule %q", rule.Name)
		}
		engine.rules = append(engine.rules, compiledRule{
			name:    rule.Name,
			channel: domain.Channel(rule.Channel),
			program: prg,
		})
	}
	return engine, nil
}

// matched 是一条命中的规则。
type matched struct {
	Name    string
	Channel domain.Channel
}

// Evaluate 返回事件命中的所有规则。单条规则求值出错按未命中处理，
// 不能因为一条规则写坏让整个事件断流。
func (e *RuleEngine) Evaluate(evt *domain.OrderEvent) ([]matched, error) {
	input := map[string]any{
		"eventType":      evt.EventType,
		"orderNumber":    evt.OrderNumber,
		"userId":         int64(evt.UserID),
		"previousStatus": evt.PreviousStatus,
		"newStatus":      evt.NewStatus,
		"reason":         evt.Reason,
		"totalAmount":    evt.TotalAmount,
	}

	var hits []matched
	var lastErr error
	for _, rule := range e.rules {
		out, _, err := rule.program.Eval(input)
		if err != nil {
			lastErr = errors.Wrapf(err, "evaluate rule %q", rule.name)
			continue
		}
		if ok, isBool := out.Value().(bool); isBool && ok {
			hits = append(hits, matched{Name: rule.name, Channel: rule.channel})
		}
	}
	return hits, lastErr
}
