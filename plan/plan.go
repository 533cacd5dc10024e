package plan

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/actionflow/action"
	"github.com/BaSui01/actionflow/types"
)

// ====== 计划构建：声明 → 指令 ======

// Step 是 Add/Build 接受的声明形态之一：动作加可选参数与执行选项。
type Step struct {
	Action action.Action
	Params map[string]any
	Opts   Opts
}

// Opts 是指令级执行选项。零值字段不覆盖引擎默认。
type Opts struct {
	// Timeout 覆盖该指令的执行超时（>0 时生效）。
	Timeout time.Duration
	// MaxRetries 是该指令的尝试预算；计划内步骤默认不重试。
	MaxRetries int
	// DependsOn 声明依赖的前置步骤名；Add 时被提升到指令的 DependsOn 字段。
	DependsOn []string
}

func (o Opts) isZero() bool {
	return o.Timeout == 0 && o.MaxRetries == 0 && len(o.DependsOn) == 0
}

// Instruction 是规范化后的一条执行指令，也是计划图的顶点。
// DependsOn 是该步骤依赖的权威集合（声明内嵌依赖与 WithDeps 的并集）。
type Instruction struct {
	Name      string
	Action    action.Action
	Params    map[string]any
	Opts      Opts
	DependsOn []string
}

// Plan 是命名依赖图的构建态。构建期非并发安全；Normalize 之后只读使用。
type Plan struct {
	names        []string
	instructions map[string]*Instruction
	logger       *zap.Logger
}

// Option 调整计划的构建行为。
type Option func(*Plan)

// WithLogger 设置自定义日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(p *Plan) {
		p.logger = logger.With(zap.String("component", "plan"))
	}
}

// New 创建空计划。
func New(opts ...Option) *Plan {
	p := &Plan{
		instructions: make(map[string]*Instruction),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddOption 调整单次 Add 的行为。
type AddOption func(*addOptions)

type addOptions struct {
	deps []string
}

// WithDeps 声明该步骤依赖的前置步骤名。
func WithDeps(names ...string) AddOption {
	return func(o *addOptions) {
		o.deps = append(o.deps, names...)
	}
}

// Add 把一个动作声明加入计划。spec 支持三种形态：裸 action.Action、
// Step{Action, Params}、Step{Action, Params, Opts}；其余形态立即报错。
// 依赖取 WithDeps 与 Opts.DependsOn 的并集，去重后记录在指令上。
func (p *Plan) Add(name string, spec any, opts ...AddOption) error {
	if name == "" {
		return types.NewInvalidInput("step name is empty")
	}
	if _, exists := p.instructions[name]; exists {
		return types.NewErrorf(types.KindInvalidInput, "duplicate step %q", name)
	}

	in, err := normalizeSpec(name, spec)
	if err != nil {
		return err
	}

	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	optDeps, err := ParseDeps(o.deps)
	if err != nil {
		return err
	}
	specDeps, err := ParseDeps(in.Opts.DependsOn)
	if err != nil {
		return err
	}
	in.DependsOn = unionDeps(specDeps, optDeps)
	in.Opts.DependsOn = nil // 依赖统一存放在指令的 DependsOn 字段

	p.names = append(p.names, name)
	p.instructions[name] = in
	p.logger.Debug("step added",
		zap.String("step", name),
		zap.String("action", in.Action.Name()),
		zap.Strings("depends_on", in.DependsOn),
	)
	return nil
}

// DependsOn 为已有步骤追加依赖（并集去重）。未知步骤报错。
func (p *Plan) DependsOn(name string, more ...string) error {
	in, ok := p.instructions[name]
	if !ok {
		return types.NewErrorf(types.KindInvalidInput, "unknown step %q", name)
	}
	deps, err := ParseDeps(more)
	if err != nil {
		return err
	}
	in.DependsOn = unionDeps(in.DependsOn, deps)
	return nil
}

// Names 返回声明顺序的步骤名列表。
func (p *Plan) Names() []string {
	return append([]string(nil), p.names...)
}

// Get 按名取指令。
func (p *Plan) Get(name string) (*Instruction, bool) {
	in, ok := p.instructions[name]
	return in, ok
}

// Len 返回计划中的步骤数。
func (p *Plan) Len() int {
	return len(p.names)
}

// Build 依序把声明列表构建为计划。任何一步的失败——包括声明规范化
// 过程中的 panic——都转成错误返回而不向上抛出。
func Build(decls []Declaration, opts ...Option) (*Plan, error) {
	p := New(opts...)
	for _, d := range decls {
		if err := addRecovered(p, d); err != nil {
			return nil, err
		}
	}
	p.logger.Info("plan built",
		zap.Int("steps", p.Len()),
	)
	return p, nil
}

func addRecovered(p *Plan, d Declaration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewErrorf(types.KindInvalidInput,
				"invalid declaration for step %q: %v", d.Name, r)
		}
	}()
	return p.Add(d.Name, d.Spec)
}

// ParseDeps 把动态形态的依赖声明解析为步骤名列表。接受 nil、string、
// []string、[]any（元素必须是非空字符串）；其余形态一律拒绝。
func ParseDeps(v any) ([]string, error) {
	switch deps := v.(type) {
	case nil:
		return nil, nil
	case string:
		if deps == "" {
			return nil, errBadDeps()
		}
		return []string{deps}, nil
	case []string:
		out := make([]string, 0, len(deps))
		for _, d := range deps {
			if d == "" {
				return nil, errBadDeps()
			}
			out = append(out, d)
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(deps))
		for _, item := range deps {
			d, ok := item.(string)
			if !ok || d == "" {
				return nil, errBadDeps()
			}
			out = append(out, d)
		}
		return out, nil
	default:
		return nil, errBadDeps()
	}
}

func errBadDeps() *types.Error {
	return types.NewInvalidInput("dependencies must be a list of step names")
}

func normalizeSpec(name string, spec any) (*Instruction, error) {
	switch s := spec.(type) {
	case Step:
		if s.Action == nil {
			return nil, types.NewErrorf(types.KindInvalidInput, "step %q has no action", name)
		}
		return &Instruction{Name: name, Action: s.Action, Params: s.Params, Opts: s.Opts}, nil
	case *Step:
		if s == nil || s.Action == nil {
			return nil, types.NewErrorf(types.KindInvalidInput, "step %q has no action", name)
		}
		return &Instruction{Name: name, Action: s.Action, Params: s.Params, Opts: s.Opts}, nil
	case action.Action:
		return &Instruction{Name: name, Action: s}, nil
	case nil:
		return nil, types.NewErrorf(types.KindInvalidInput, "step %q has no action", name)
	default:
		return nil, types.NewErrorf(types.KindInvalidInput,
			"unsupported action spec for step %q: %T", name, spec)
	}
}

// unionDeps 按首次出现顺序合并并去重。
func unionDeps(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, d := range list {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}
