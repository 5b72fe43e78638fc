// Package verify checks the structural well-formedness of an emitted LLVM
// module: every block is terminated, phis lead their blocks and agree with
// the predecessors, branches stay inside their function, returns match the
// signature and every local value dominates its uses.
package verify

import (
	"errors"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Module checks every defined function of m. All violations are reported
// together.
func Module(m *ir.Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if len(f.Blocks) == 0 {
			continue
		}
		if err := Func(f); err != nil {
			errs = append(errs, fmt.Errorf("function @%s: %w", f.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Func checks one function definition.
func Func(f *ir.Func) error {
	c := newChecker(f)
	// Later checks walk the CFG and need every block terminated.
	if err := c.terminators(); err != nil {
		return err
	}
	c.buildCFG()
	var errs []error
	for _, check := range []func() error{c.targets, c.phis, c.returns, c.dominance} {
		if err := check(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type checker struct {
	f      *ir.Func
	index  map[*ir.Block]int
	succs  [][]int
	preds  [][]int
	defs   map[value.Value]site
	params map[value.Value]bool
	idom   []int
	rpo    []int
}

// site locates an instruction: block index and position.
type site struct {
	block, pos int
}

func newChecker(f *ir.Func) *checker {
	c := &checker{
		f:      f,
		index:  make(map[*ir.Block]int, len(f.Blocks)),
		defs:   make(map[value.Value]site),
		params: make(map[value.Value]bool, len(f.Params)),
	}
	for i, b := range f.Blocks {
		c.index[b] = i
		for j, inst := range b.Insts {
			if v, ok := inst.(value.Value); ok {
				c.defs[v] = site{block: i, pos: j}
			}
		}
	}
	for _, p := range f.Params {
		c.params[p] = true
	}
	return c
}

func blockName(b *ir.Block) string { return b.Ident() }

func (c *checker) terminators() error {
	var errs []error
	for _, b := range c.f.Blocks {
		if b.Term == nil {
			errs = append(errs, fmt.Errorf("%s: unterminated block", blockName(b)))
		}
	}
	return errors.Join(errs...)
}

// asBlock unwraps a branch target or phi predecessor.
func asBlock(v any) (*ir.Block, bool) {
	b, ok := v.(*ir.Block)
	return b, ok && b != nil
}

// successors lists the raw branch targets of a terminator.
func successors(term ir.Terminator) []any {
	switch t := term.(type) {
	case *ir.TermBr:
		return []any{t.Target}
	case *ir.TermCondBr:
		return []any{t.TargetTrue, t.TargetFalse}
	case *ir.TermSwitch:
		out := []any{t.TargetDefault}
		for _, cs := range t.Cases {
			out = append(out, cs.Target)
		}
		return out
	}
	return nil
}

func (c *checker) buildCFG() {
	n := len(c.f.Blocks)
	c.succs = make([][]int, n)
	c.preds = make([][]int, n)
	for i, b := range c.f.Blocks {
		seen := make(map[int]bool)
		for _, t := range successors(b.Term) {
			tb, ok := asBlock(t)
			if !ok {
				continue
			}
			j, ok := c.index[tb]
			if !ok || seen[j] {
				continue
			}
			seen[j] = true
			c.succs[i] = append(c.succs[i], j)
			c.preds[j] = append(c.preds[j], i)
		}
	}
	c.computeDominators()
}

func (c *checker) targets() error {
	var errs []error
	for _, b := range c.f.Blocks {
		for _, t := range successors(b.Term) {
			tb, ok := asBlock(t)
			if !ok {
				errs = append(errs, fmt.Errorf("%s: branch target %T is not a block", blockName(b), t))
				continue
			}
			if _, ok := c.index[tb]; !ok {
				errs = append(errs, fmt.Errorf("%s: branch to %s of another function", blockName(b), blockName(tb)))
			}
		}
	}
	if len(c.f.Blocks) > 0 && len(c.preds[0]) > 0 {
		errs = append(errs, fmt.Errorf("%s: entry block has predecessors", blockName(c.f.Blocks[0])))
	}
	return errors.Join(errs...)
}

// phis checks placement, and that each phi names every predecessor once and
// nothing else.
func (c *checker) phis() error {
	var errs []error
	for i, b := range c.f.Blocks {
		leading := true
		for _, inst := range b.Insts {
			phi, ok := inst.(*ir.InstPhi)
			if !ok {
				leading = false
				continue
			}
			if !leading {
				errs = append(errs, fmt.Errorf("%s: phi %s after a non-phi instruction", blockName(b), phi.Ident()))
				continue
			}
			count := make(map[int]int, len(phi.Incs))
			for _, inc := range phi.Incs {
				pb, ok := asBlock(inc.Pred)
				j, known := c.index[pb]
				if !ok || !known {
					errs = append(errs, fmt.Errorf("%s: phi %s has a foreign predecessor", blockName(b), phi.Ident()))
					continue
				}
				count[j]++
				if !inc.X.Type().Equal(phi.Typ) {
					errs = append(errs, fmt.Errorf("%s: phi %s of type %s receives %s from %s",
						blockName(b), phi.Ident(), phi.Typ, inc.X.Type(), blockName(pb)))
				}
			}
			isPred := make(map[int]bool, len(c.preds[i]))
			for _, p := range c.preds[i] {
				isPred[p] = true
				if count[p] != 1 {
					errs = append(errs, fmt.Errorf("%s: phi %s has %d values for predecessor %s",
						blockName(b), phi.Ident(), count[p], blockName(c.f.Blocks[p])))
				}
			}
			for j := range count {
				if !isPred[j] {
					errs = append(errs, fmt.Errorf("%s: phi %s names %s, which does not branch here",
						blockName(b), phi.Ident(), blockName(c.f.Blocks[j])))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (c *checker) returns() error {
	want := c.f.Sig.RetType
	var errs []error
	for _, b := range c.f.Blocks {
		ret, ok := b.Term.(*ir.TermRet)
		if !ok {
			continue
		}
		switch {
		case ret.X == nil:
			if !want.Equal(types.Void) {
				errs = append(errs, fmt.Errorf("%s: ret void in a function returning %s", blockName(b), want))
			}
		case !ret.X.Type().Equal(want):
			errs = append(errs, fmt.Errorf("%s: returns %s, function returns %s", blockName(b), ret.X.Type(), want))
		}
	}
	return errors.Join(errs...)
}
