package verify

import (
	"errors"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

const undefinedDom = -1

// computeDominators fills idom using the iterative algorithm of Cooper,
// Harvey and Kennedy over the reverse postorder of the reachable blocks.
func (c *checker) computeDominators() {
	n := len(c.f.Blocks)
	c.idom = make([]int, n)
	for i := range c.idom {
		c.idom[i] = undefinedDom
	}
	if n == 0 {
		return
	}

	order := make([]int, n)
	for i := range order {
		order[i] = undefinedDom
	}
	visited := make([]bool, n)
	var post []int
	var walk func(int)
	walk = func(b int) {
		visited[b] = true
		for _, s := range c.succs[b] {
			if !visited[s] {
				walk(s)
			}
		}
		post = append(post, b)
	}
	walk(0)
	c.rpo = make([]int, 0, len(post))
	for i := len(post) - 1; i >= 0; i-- {
		order[post[i]] = len(c.rpo)
		c.rpo = append(c.rpo, post[i])
	}

	intersect := func(a, b int) int {
		for a != b {
			for order[a] > order[b] {
				a = c.idom[a]
			}
			for order[b] > order[a] {
				b = c.idom[b]
			}
		}
		return a
	}

	c.idom[0] = 0
	for changed := true; changed; {
		changed = false
		for _, b := range c.rpo[1:] {
			next := undefinedDom
			for _, p := range c.preds[b] {
				if c.idom[p] == undefinedDom {
					continue
				}
				if next == undefinedDom {
					next = p
				} else {
					next = intersect(p, next)
				}
			}
			if c.idom[b] != next {
				c.idom[b] = next
				changed = true
			}
		}
	}
}

func (c *checker) reachable(b int) bool { return c.idom[b] != undefinedDom }

// dominates reports whether block a dominates block b. Unreachable blocks
// are dominated by every block.
func (c *checker) dominates(a, b int) bool {
	if !c.reachable(b) {
		return true
	}
	if !c.reachable(a) {
		return false
	}
	for {
		if a == b {
			return true
		}
		if b == 0 {
			return false
		}
		b = c.idom[b]
	}
}

// operandUser is implemented by instructions and terminators that expose
// their operands.
type operandUser interface {
	Operands() []*value.Value
}

// dominance checks that every use of a local value is dominated by its
// definition. A phi operand is used at the end of its predecessor.
func (c *checker) dominance() error {
	var errs []error
	for bi, b := range c.f.Blocks {
		for pos, inst := range b.Insts {
			if phi, ok := inst.(*ir.InstPhi); ok {
				for _, inc := range phi.Incs {
					pb, ok := asBlock(inc.Pred)
					if !ok {
						continue
					}
					pi, ok := c.index[pb]
					if !ok {
						continue
					}
					if err := c.checkUse(inc.X, pi, len(pb.Insts)); err != nil {
						errs = append(errs, fmt.Errorf("%s: phi %s: %w", blockName(b), phi.Ident(), err))
					}
				}
				continue
			}
			u, ok := inst.(operandUser)
			if !ok {
				continue
			}
			for _, op := range u.Operands() {
				if err := c.checkUse(*op, bi, pos); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", blockName(b), err))
				}
			}
		}
		if u, ok := b.Term.(operandUser); ok {
			for _, op := range u.Operands() {
				if err := c.checkUse(*op, bi, len(b.Insts)); err != nil {
					errs = append(errs, fmt.Errorf("%s: terminator: %w", blockName(b), err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// checkUse checks a use of v at position pos of block b.
func (c *checker) checkUse(v value.Value, b, pos int) error {
	switch v := v.(type) {
	case nil, *ir.Block, *ir.Func, *ir.Global:
		return nil
	case *ir.Param:
		if !c.params[v] {
			return fmt.Errorf("parameter %s of another function", v.Ident())
		}
		return nil
	case ir.Instruction:
		def, ok := c.defs[v.(value.Value)]
		if !ok {
			return fmt.Errorf("%s is defined in another function", v.(value.Value).Ident())
		}
		if def.block == b {
			if c.reachable(b) && def.pos >= pos {
				return fmt.Errorf("%s is used before its definition", v.(value.Value).Ident())
			}
			return nil
		}
		if !c.dominates(def.block, b) {
			return fmt.Errorf("%s does not dominate its use in %s", v.(value.Value).Ident(), blockName(c.f.Blocks[b]))
		}
	}
	return nil
}
