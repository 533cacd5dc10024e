package plan

// ====== 执行阶段划分 ======

// ExecutionPhases 把计划划分为可并行的执行阶段（Kahn 分层）：
// 第一阶段是所有无依赖的步骤；第 k 阶段是依赖全部落在前 k-1 阶段、
// 且更早阶段无法满足的步骤。同一阶段内的步骤之间没有顺序约束，
// 可以安全并行执行。计划非法（未知依赖、环路）时报错。
func (p *Plan) ExecutionPhases() ([][]string, error) {
	g, instructions, err := p.Normalize()
	if err != nil {
		return nil, err
	}

	remaining := make(map[string]int, len(instructions))
	for _, in := range instructions {
		remaining[in.Name] = len(in.DependsOn)
	}

	phases := make([][]string, 0)
	placed := make(map[string]bool, len(instructions))
	for len(placed) < len(instructions) {
		// 先收齐本阶段，再统一解锁，保证新解锁的步骤落到下一阶段。
		var phase []string
		for _, in := range instructions {
			if !placed[in.Name] && remaining[in.Name] == 0 {
				phase = append(phase, in.Name)
			}
		}
		for _, name := range phase {
			placed[name] = true
			for _, dependent := range g.Edges[name] {
				remaining[dependent]--
			}
		}
		phases = append(phases, phase)
	}

	return phases, nil
}
