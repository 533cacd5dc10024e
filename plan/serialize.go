package plan

// ====== 声明式序列化 ======

// Declaration 是计划的声明式形态：Build 的输入，ToDeclarations 的输出。
type Declaration struct {
	Name string
	Spec any
}

// ToDeclarations 把计划序列化回最小声明列表：空参数与零值选项省略
// （退化为裸动作形态），依赖折叠回 Opts.DependsOn。输出经 Build
// 往返可重建等价计划。
func (p *Plan) ToDeclarations() []Declaration {
	decls := make([]Declaration, 0, len(p.names))
	for _, name := range p.names {
		decls = append(decls, Declaration{Name: name, Spec: minimalSpec(p.instructions[name])})
	}
	return decls
}

func minimalSpec(in *Instruction) any {
	opts := in.Opts
	opts.DependsOn = append([]string(nil), in.DependsOn...)
	if opts.isZero() && len(in.Params) == 0 {
		return in.Action
	}
	if opts.isZero() {
		return Step{Action: in.Action, Params: in.Params}
	}
	return Step{Action: in.Action, Params: in.Params, Opts: opts}
}
