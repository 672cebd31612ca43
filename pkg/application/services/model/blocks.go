package model

import "sort"

// Block is an independent part of a model: no constraint links its variables
// to any variable outside it. Vars maps the block's variable indices back to
// the parent model.
type Block struct {
	Vars  []int
	Model *Model
}

// Blocks splits the model into its connected components. Each class pool is
// its own component since no constraint spans two classes. Blocks are ordered
// by their first parent variable, so the split is deterministic. Rows without
// terms belong to no block; see UnsatisfiableRows.
func (m *Model) Blocks() []Block {
	n := len(m.Variables)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	for _, c := range m.Constraints {
		for _, t := range c.Terms[min(1, len(c.Terms)):] {
			union(c.Terms[0].Var, t.Var)
		}
	}

	members := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		members[root] = append(members[root], i)
	}
	roots := make([]int, 0, len(members))
	for root := range members {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	local := make([]int, n)
	blocks := make([]Block, 0, len(roots))
	byRoot := make(map[int]int, len(roots))
	for _, root := range roots {
		vars := members[root]
		sub := &Model{
			Variables: make([]Variable, len(vars)),
			Direction: m.Direction,
			Policy:    m.Policy,
		}
		for j, v := range vars {
			local[v] = j
			sub.Variables[j] = m.Variables[v]
			sub.Variables[j].Index = j
		}
		byRoot[root] = len(blocks)
		blocks = append(blocks, Block{Vars: vars, Model: sub})
	}

	for _, c := range m.Constraints {
		if len(c.Terms) == 0 {
			continue
		}
		b := blocks[byRoot[find(c.Terms[0].Var)]]
		terms := make([]Term, len(c.Terms))
		for i, t := range c.Terms {
			terms[i] = Term{Var: local[t.Var], Coef: t.Coef}
		}
		c.Terms = terms
		b.Model.Constraints = append(b.Model.Constraints, c)
	}
	return blocks
}

// UnsatisfiableRows returns the rows without terms whose right-hand side
// cannot hold at zero, such as a utilization floor on a class with no units
func (m *Model) UnsatisfiableRows() []Constraint {
	var rows []Constraint
	for _, c := range m.Constraints {
		if len(c.Terms) > 0 {
			continue
		}
		if (c.Sense == LessEqual && c.RHS < 0) || (c.Sense == GreaterEqual && c.RHS > 0) {
			rows = append(rows, c)
		}
	}
	return rows
}
