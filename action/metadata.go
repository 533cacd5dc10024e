package action

import "time"

// Metadata 描述动作的声明式契约：执行约束、参数/输出模式与补偿声明。
// 所有字段均可缺省；零值元数据表示"无约束"。
type Metadata struct {
	Description string

	// Timeout 动作级默认执行超时。调用级选项优先于它，
	// 它优先于引擎默认值；0 表示未设置。
	Timeout time.Duration

	// Compensation 声明补偿行为。nil 或 Enabled=false 时，
	// 即便动作实现了 Compensator 也不会触发补偿。
	Compensation *CompensationSpec

	// Params 参数模式声明，由 schema 引擎按格式识别并校验。
	Params any

	// Output 输出模式声明，Ok 结果在返回前校验。
	Output any

	// RateLimit 动作级速率限制，注册时在 Registry 中生成令牌桶。
	RateLimit *RateLimitConfig
}

// CompensationSpec 补偿声明。
type CompensationSpec struct {
	Enabled bool

	// Timeout 补偿专用超时。解析顺序：调用级补偿超时选项 > 本字段 >
	// 调用级执行超时选项 > 引擎默认补偿超时。
	Timeout time.Duration

	// MaxRetries 补偿处理器自身的重试上限，默认 0（不重试）。
	MaxRetries int
}

// RateLimitConfig defines rate limit configuration.
type RateLimitConfig struct {
	MaxCalls int           // Maximum calls (bucket capacity)
	Window   time.Duration // Time window
}

// IsZero reports whether no metadata field is set.
func (m Metadata) IsZero() bool {
	return m.Description == "" &&
		m.Timeout == 0 &&
		m.Compensation == nil &&
		m.Params == nil &&
		m.Output == nil &&
		m.RateLimit == nil
}

// CompensationEnabled reports whether compensation is declared for the action.
func (m Metadata) CompensationEnabled() bool {
	return m.Compensation != nil && m.Compensation.Enabled
}
