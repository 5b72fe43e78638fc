package typeconv

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
)

// SumType is the LLVM layout of a graph IR sum:
//
//	{ [tag], {row0...}, {row1...}, ... }
//
// The tag field is present only with two or more variants. It is i1 when
// there are exactly two variants and at least one of them is empty (booleans
// and optionals), i32 otherwise.
type SumType struct {
	src     hugr.Type
	llvm    *types.StructType
	tag     *types.IntType
	hasTag  bool
	rows    [][]types.Type
	rowType []*types.StructType
}

func newSumType(s *Session, t hugr.Type) (*SumType, error) {
	if t.Sum == nil {
		return nil, unsupported(t, "missing sum payload")
	}
	n := len(t.Sum.Rows)
	st := &SumType{src: t, tag: types.I32, hasTag: n >= 2}
	if n == 2 && (len(t.Sum.Rows[0]) == 0 || len(t.Sum.Rows[1]) == 0) {
		st.tag = types.I1
	}
	var fields []types.Type
	if st.hasTag {
		fields = append(fields, st.tag)
	}
	for _, r := range t.Sum.Rows {
		lts, err := s.Row(r, nil)
		if err != nil {
			return nil, err
		}
		rt := types.NewStruct(lts...)
		st.rows = append(st.rows, lts)
		st.rowType = append(st.rowType, rt)
		fields = append(fields, rt)
	}
	st.llvm = types.NewStruct(fields...)
	return st, nil
}

// Type returns the struct layout.
func (st *SumType) Type() *types.StructType { return st.llvm }

// HugrType returns the concrete graph IR type this layout was built for.
func (st *SumType) HugrType() hugr.Type { return st.src }

// NumVariants returns the number of variants.
func (st *SumType) NumVariants() int { return len(st.rows) }

// Variant returns the element types of variant i.
func (st *SumType) Variant(i int) []types.Type {
	if i < 0 || i >= len(st.rows) {
		return nil
	}
	return st.rows[i]
}

// HasTagField reports whether the layout stores a tag.
func (st *SumType) HasTagField() bool { return st.hasTag }

// TagType is the integer type tags are compared in.
func (st *SumType) TagType() *types.IntType { return st.tag }

// IsUnit reports whether every variant is empty.
func (st *SumType) IsUnit() bool {
	for _, r := range st.rows {
		if len(r) != 0 {
			return false
		}
	}
	return true
}

// TagConst returns tag i as a constant of TagType.
func (st *SumType) TagConst(i int) *constant.Int {
	return constant.NewInt(st.tag, int64(i))
}

// Undef returns an undefined value of the layout.
func (st *SumType) Undef() *constant.Undef { return constant.NewUndef(st.llvm) }

func (st *SumType) field(variant int) (uint64, error) {
	idx := variant
	if st.hasTag {
		idx++
	}
	return safecast.Conv[uint64](idx)
}

func (st *SumType) checkTag(tag int) error {
	if tag < 0 || tag >= len(st.rows) {
		return fmt.Errorf("tag %d out of range for %s", tag, st.src)
	}
	return nil
}

// BuildTag constructs variant tag from vals at the end of b.
func (st *SumType) BuildTag(b *ir.Block, tag int, vals []value.Value) (value.Value, error) {
	if err := st.checkTag(tag); err != nil {
		return nil, err
	}
	row := st.rows[tag]
	if len(vals) != len(row) {
		return nil, fmt.Errorf("variant %d of %s takes %d values, got %d", tag, st.src, len(row), len(vals))
	}
	for i, v := range vals {
		if !v.Type().Equal(row[i]) {
			return nil, fmt.Errorf("variant %d of %s: value %d has type %s, want %s", tag, st.src, i, v.Type(), row[i])
		}
	}
	var sum value.Value = st.Undef()
	if st.hasTag {
		sum = b.NewInsertValue(sum, st.TagConst(tag), 0)
	}
	if len(row) == 0 {
		return sum, nil
	}
	idx, err := st.field(tag)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		ui, err := safecast.Conv[uint64](i)
		if err != nil {
			return nil, err
		}
		sum = b.NewInsertValue(sum, v, idx, ui)
	}
	return sum, nil
}

// BuildFromTag builds a unit sum whose tag is only known at run time.
func (st *SumType) BuildFromTag(b *ir.Block, tag value.Value) (value.Value, error) {
	if !st.IsUnit() {
		return nil, fmt.Errorf("%s is not a unit sum", st.src)
	}
	if !st.hasTag {
		return st.Undef(), nil
	}
	if !tag.Type().Equal(st.tag) {
		return nil, fmt.Errorf("tag of type %s for %s, want %s", tag.Type(), st.src, st.tag)
	}
	return b.NewInsertValue(st.Undef(), tag, 0), nil
}

// BuildGetTag reads the tag of v. Single-variant sums have constant tag 0.
func (st *SumType) BuildGetTag(b *ir.Block, v value.Value) (value.Value, error) {
	if !v.Type().Equal(st.llvm) {
		return nil, fmt.Errorf("get tag: value of type %s, want %s", v.Type(), st.llvm)
	}
	if !st.hasTag {
		return st.TagConst(0), nil
	}
	return b.NewExtractValue(v, 0), nil
}

// BuildUntag reads the fields of variant tag from v. The result is only
// meaningful when v holds that variant.
func (st *SumType) BuildUntag(b *ir.Block, tag int, v value.Value) ([]value.Value, error) {
	if err := st.checkTag(tag); err != nil {
		return nil, err
	}
	if !v.Type().Equal(st.llvm) {
		return nil, fmt.Errorf("untag: value of type %s, want %s", v.Type(), st.llvm)
	}
	idx, err := st.field(tag)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, len(st.rows[tag]))
	for i := range out {
		ui, err := safecast.Conv[uint64](i)
		if err != nil {
			return nil, err
		}
		out[i] = b.NewExtractValue(v, idx, ui)
	}
	return out, nil
}

// ConstTag builds a constant of variant tag when every field is constant.
func (st *SumType) ConstTag(tag int, vals []constant.Constant) (constant.Constant, error) {
	if err := st.checkTag(tag); err != nil {
		return nil, err
	}
	if len(vals) != len(st.rows[tag]) {
		return nil, fmt.Errorf("variant %d of %s takes %d values, got %d", tag, st.src, len(st.rows[tag]), len(vals))
	}
	var fields []constant.Constant
	if st.hasTag {
		fields = append(fields, st.TagConst(tag))
	}
	for i, rt := range st.rowType {
		if i != tag {
			fields = append(fields, constant.NewUndef(rt))
			continue
		}
		for j, v := range vals {
			if !v.Type().Equal(st.rows[tag][j]) {
				return nil, fmt.Errorf("variant %d of %s: constant %d has type %s, want %s", tag, st.src, j, v.Type(), st.rows[tag][j])
			}
		}
		fields = append(fields, constant.NewStruct(rt, vals...))
	}
	return constant.NewStruct(st.llvm, fields...), nil
}
