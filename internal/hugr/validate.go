package hugr

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants the lowering engine relies on.
// All violations are reported together.
func Validate(h *Hugr) error {
	if h == nil {
		return nil
	}
	var errs []error

	switch k := h.Op(h.Root()).Kind; k {
	case OpModule, OpFuncDefn, OpDFG:
	default:
		errs = append(errs, fmt.Errorf("root: unsupported root operation %s", k))
	}

	if err := validateEdges(h); err != nil {
		errs = append(errs, err)
	}
	if err := validateInputsConnected(h); err != nil {
		errs = append(errs, err)
	}
	if err := validateContainers(h); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateEdges checks port ranges and that both ends agree on the type.
func validateEdges(h *Hugr) error {
	var errs []error
	for _, e := range h.Edges() {
		src, dst := h.Op(e.Src), h.Op(e.Dst)
		switch e.Kind {
		case EdgeValue:
			st, ok := h.OutputType(OutPort{Node: e.Src, Port: e.SrcPort})
			if !ok {
				errs = append(errs, fmt.Errorf("edge %d:%d -> %d:%d: source port out of range for %s", e.Src, e.SrcPort, e.Dst, e.DstPort, src.Describe()))
				continue
			}
			dt, ok := h.InputType(InPort{Node: e.Dst, Port: e.DstPort})
			if !ok {
				errs = append(errs, fmt.Errorf("edge %d:%d -> %d:%d: target port out of range for %s", e.Src, e.SrcPort, e.Dst, e.DstPort, dst.Describe()))
				continue
			}
			if !st.Equal(dt) {
				errs = append(errs, fmt.Errorf("edge %d:%d -> %d:%d: type mismatch %s vs %s", e.Src, e.SrcPort, e.Dst, e.DstPort, st, dt))
			}
		case EdgeStatic:
			if !src.HasStaticOutput() {
				errs = append(errs, fmt.Errorf("static edge from %d: %s has no static output", e.Src, src.Describe()))
				continue
			}
			port, ok := dst.StaticInput()
			if !ok || port != e.DstPort {
				errs = append(errs, fmt.Errorf("static edge into %d:%d: not the static input of %s", e.Dst, e.DstPort, dst.Describe()))
				continue
			}
			if err := checkStaticTypes(src, dst); err != nil {
				errs = append(errs, fmt.Errorf("static edge %d -> %d: %w", e.Src, e.Dst, err))
			}
		case EdgeControl:
			if src.Kind != OpDataflowBlock {
				errs = append(errs, fmt.Errorf("control edge from %d: %s is not a block", e.Src, src.Describe()))
				continue
			}
			if h.Parent(e.Src) != h.Parent(e.Dst) {
				errs = append(errs, fmt.Errorf("control edge %d -> %d leaves its CFG", e.Src, e.Dst))
				continue
			}
			if e.SrcPort < 0 || e.SrcPort >= len(src.SumRows) {
				errs = append(errs, fmt.Errorf("control edge from %d: branch %d out of range", e.Src, e.SrcPort))
				continue
			}
			want := src.SumRows[e.SrcPort].Concat(src.Other)
			var have TypeRow
			switch dst.Kind {
			case OpDataflowBlock:
				have = dst.Inputs
			case OpExitBlock:
				have = dst.Types
			default:
				errs = append(errs, fmt.Errorf("control edge %d -> %d: target is %s", e.Src, e.Dst, dst.Describe()))
				continue
			}
			if !want.Equal(have) {
				errs = append(errs, fmt.Errorf("control edge %d -> %d: branch row %s does not match block inputs %s", e.Src, e.Dst, want, have))
			}
		case EdgeOrder:
			if h.Parent(e.Src) != h.Parent(e.Dst) {
				errs = append(errs, fmt.Errorf("order edge %d -> %d crosses regions", e.Src, e.Dst))
			}
		}
	}
	return errors.Join(errs...)
}

func checkStaticTypes(src, dst *Op) error {
	switch dst.Kind {
	case OpLoadConstant:
		if src.Kind != OpConst || src.Value == nil || dst.Type == nil {
			return fmt.Errorf("LoadConstant must read a Const")
		}
		vt, err := src.Value.Type()
		if err != nil {
			return err
		}
		if !vt.Equal(*dst.Type) {
			return fmt.Errorf("constant of type %s loaded as %s", vt, *dst.Type)
		}
	case OpCall, OpLoadFunction:
		if src.Kind != OpFuncDefn && src.Kind != OpFuncDecl {
			return fmt.Errorf("%s must reference a function", dst.Kind)
		}
		if src.Poly == nil || dst.Poly == nil || src.Poly.String() != dst.Poly.String() {
			return fmt.Errorf("signature mismatch with %s", src.Describe())
		}
	}
	return nil
}

// validateInputsConnected checks that every value and static input has a
// producer. The root takes its inputs from outside the graph and an exit
// block receives its row over control edges, so neither is checked.
func validateInputsConnected(h *Hugr) error {
	var errs []error
	for i := 0; i < h.NumNodes(); i++ {
		n := NodeID(i)
		op := h.Op(n)
		if n == h.Root() || op.Kind == OpExitBlock {
			continue
		}
		for p := range op.ValueInputs() {
			if _, ok := h.LinkedOutput(n, p); !ok {
				errs = append(errs, fmt.Errorf("node %d (%s): input %d is not connected", n, op.Describe(), p))
			}
		}
		if port, ok := op.StaticInput(); ok {
			if _, ok := h.LinkedOutput(n, port); !ok {
				errs = append(errs, fmt.Errorf("node %d (%s): static input is not connected", n, op.Describe()))
			}
		}
	}
	return errors.Join(errs...)
}

// validateContainers checks the child layout of every container.
func validateContainers(h *Hugr) error {
	var errs []error
	for i := 0; i < h.NumNodes(); i++ {
		n := NodeID(i)
		op := h.Op(n)
		ch := h.Children(n)
		switch {
		case op.Kind.IsDataflowContainer():
			in, out, err := h.IO(n)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			sig, err := op.InnerSignature()
			if err != nil {
				errs = append(errs, fmt.Errorf("node %d: %w", n, err))
				continue
			}
			if !h.Op(in).Types.Equal(sig.Input) || !h.Op(out).Types.Equal(sig.Output) {
				errs = append(errs, fmt.Errorf("node %d (%s): Input/Output rows do not match %s", n, op.Describe(), sig))
			}
		case op.Kind == OpConditional:
			if len(ch) != len(op.SumRows) {
				errs = append(errs, fmt.Errorf("conditional %d: %d cases for %d variants", n, len(ch), len(op.SumRows)))
				continue
			}
			for idx, c := range ch {
				cop := h.Op(c)
				want, _ := op.CaseSignature(idx)
				if cop.Kind != OpCase || cop.Sig == nil || cop.Sig.String() != want.String() {
					errs = append(errs, fmt.Errorf("conditional %d: case %d must be a Case with signature %s", n, idx, want))
				}
			}
		case op.Kind == OpCFG:
			entry, exit, err := h.EntryExit(n)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if op.Sig != nil {
				if !h.Op(entry).Inputs.Equal(op.Sig.Input) {
					errs = append(errs, fmt.Errorf("cfg %d: entry inputs %s differ from %s", n, h.Op(entry).Inputs, op.Sig.Input))
				}
				if !h.Op(exit).Types.Equal(op.Sig.Output) {
					errs = append(errs, fmt.Errorf("cfg %d: exit row %s differs from %s", n, h.Op(exit).Types, op.Sig.Output))
				}
			}
			for _, c := range ch[2:] {
				if k := h.Op(c).Kind; k != OpDataflowBlock {
					errs = append(errs, fmt.Errorf("cfg %d: unexpected child %d (%s)", n, c, k))
				}
			}
			for _, c := range ch {
				bop := h.Op(c)
				if bop.Kind != OpDataflowBlock {
					continue
				}
				succ := h.Successors(c)
				if len(succ) != len(bop.SumRows) {
					errs = append(errs, fmt.Errorf("block %d: %d successors for %d branches", c, len(succ), len(bop.SumRows)))
					continue
				}
				for idx, s := range succ {
					if s == NoNode {
						errs = append(errs, fmt.Errorf("block %d: branch %d has no successor", c, idx))
					}
				}
			}
		}
		for pos, c := range ch {
			k := h.Op(c).Kind
			if (k == OpInput && pos != 0) || (k == OpOutput && pos != 1) {
				errs = append(errs, fmt.Errorf("node %d: %s child %d out of place", n, k, c))
			}
		}
	}
	return errors.Join(errs...)
}
