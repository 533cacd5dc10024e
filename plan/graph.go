package plan

import (
	"github.com/BaSui01/actionflow/types"
)

// ====== 图推导与环检测 ======

// Graph 是由声明依赖推导出的有向图：顶点为步骤名（声明顺序），
// 边为 依赖 → 依赖者。Normalize 成功后保证无环。
type Graph struct {
	Vertices []string
	Edges    map[string][]string
}

// Normalize 从声明的依赖构建图并做环检测，返回图和声明顺序的指令列表。
// 未知依赖与环路都报 invalid_input。
//
// 环检测对每个顶点做三态深度优先搜索（未访问 / 在栈上 / 已完成），
// 从所有顶点出发，保证孤立子图中的环即便在无环子图访问完成之后
// 也能被发现。
func (p *Plan) Normalize() (*Graph, []*Instruction, error) {
	g := &Graph{
		Vertices: append([]string(nil), p.names...),
		Edges:    make(map[string][]string, len(p.names)),
	}
	instructions := make([]*Instruction, 0, len(p.names))
	for _, name := range p.names {
		in := p.instructions[name]
		for _, dep := range in.DependsOn {
			if _, ok := p.instructions[dep]; !ok {
				return nil, nil, types.NewErrorf(types.KindInvalidInput,
					"unknown dependency %q declared by step %q", dep, name)
			}
			g.Edges[dep] = append(g.Edges[dep], name)
		}
		instructions = append(instructions, in)
	}

	visited := make(map[string]bool, len(p.names))
	onStack := make(map[string]bool, len(p.names))
	for _, name := range p.names {
		if !visited[name] {
			if g.hasCycle(name, visited, onStack) {
				return nil, nil, types.NewErrorf(types.KindInvalidInput,
					"plan contains circular dependencies involving step %q", name)
			}
		}
	}

	return g, instructions, nil
}

// hasCycle 深度优先搜索：命中仍在栈上的顶点即回边，说明有环。
func (g *Graph) hasCycle(name string, visited, onStack map[string]bool) bool {
	visited[name] = true
	onStack[name] = true

	for _, next := range g.Edges[name] {
		if !visited[next] {
			if g.hasCycle(next, visited, onStack) {
				return true
			}
		} else if onStack[next] {
			return true
		}
	}

	onStack[name] = false
	return false
}
