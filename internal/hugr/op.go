package hugr

import "fmt"

// OpKind enumerates the built-in operation forms. Extension operations share
// OpCustom and are told apart by CustomOp.Extension/Name.
type OpKind uint8

const (
	OpInvalid OpKind = iota
	OpModule
	OpFuncDefn
	OpFuncDecl
	OpConst
	OpLoadConstant
	OpLoadFunction
	OpCall
	OpCallIndirect
	OpInput
	OpOutput
	OpDFG
	OpConditional
	OpCase
	OpTailLoop
	OpCFG
	OpDataflowBlock
	OpExitBlock
	OpMakeTuple
	OpUnpackTuple
	OpTag
	OpCopy
	OpDiscard
	OpNoop
	OpCustom
)

var opKindNames = [...]string{
	OpInvalid:       "Invalid",
	OpModule:        "Module",
	OpFuncDefn:      "FuncDefn",
	OpFuncDecl:      "FuncDecl",
	OpConst:         "Const",
	OpLoadConstant:  "LoadConstant",
	OpLoadFunction:  "LoadFunction",
	OpCall:          "Call",
	OpCallIndirect:  "CallIndirect",
	OpInput:         "Input",
	OpOutput:        "Output",
	OpDFG:           "DFG",
	OpConditional:   "Conditional",
	OpCase:          "Case",
	OpTailLoop:      "TailLoop",
	OpCFG:           "CFG",
	OpDataflowBlock: "DataflowBlock",
	OpExitBlock:     "ExitBlock",
	OpMakeTuple:     "MakeTuple",
	OpUnpackTuple:   "UnpackTuple",
	OpTag:           "Tag",
	OpCopy:          "Copy",
	OpDiscard:       "Discard",
	OpNoop:          "Noop",
	OpCustom:        "Custom",
}

func (k OpKind) String() string {
	if int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", k)
}

// MarshalText encodes the kind by name.
func (k OpKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *OpKind) UnmarshalText(b []byte) error {
	for i, name := range opKindNames {
		if name == string(b) {
			*k = OpKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown op kind %q", b)
}

// IsDataflowContainer reports whether nodes of this kind hold a dataflow
// region whose first two children are Input and Output.
func (k OpKind) IsDataflowContainer() bool {
	switch k {
	case OpFuncDefn, OpDFG, OpCase, OpTailLoop, OpDataflowBlock:
		return true
	}
	return false
}

// CustomOp is an extension operation instance with its concrete signature.
type CustomOp struct {
	Extension string    `json:"extension" msgpack:"extension"`
	Name      string    `json:"name" msgpack:"name"`
	Args      []TypeArg `json:"args,omitempty" msgpack:"args,omitempty"`
	Signature FuncType  `json:"signature" msgpack:"signature"`
}

// QualifiedName renders extension.name.
func (c *CustomOp) QualifiedName() string { return c.Extension + "." + c.Name }

// Op is the operation of a node. Which fields are meaningful depends on Kind:
//
//	FuncDefn, FuncDecl     Name, Poly
//	Const                  Value
//	LoadConstant           Type
//	LoadFunction, Call     Poly, TypeArgs
//	CallIndirect, DFG, CFG Sig
//	Case                   Sig (inner signature)
//	Input, Output, ExitBlock, MakeTuple, UnpackTuple  Types
//	Conditional            SumRows, Other, Outputs
//	TailLoop               JustInputs, JustOutputs, Other
//	DataflowBlock          Inputs, SumRows, Other
//	Tag                    Tag, SumRows
//	Copy                   Type, Count
//	Discard, Noop          Type
//	Custom                 Custom
type Op struct {
	Kind        OpKind        `json:"op" msgpack:"op"`
	Name        string        `json:"name,omitempty" msgpack:"name,omitempty"`
	Poly        *PolyFuncType `json:"poly,omitempty" msgpack:"poly,omitempty"`
	TypeArgs    []TypeArg     `json:"type_args,omitempty" msgpack:"type_args,omitempty"`
	Sig         *FuncType     `json:"sig,omitempty" msgpack:"sig,omitempty"`
	Value       *Value        `json:"value,omitempty" msgpack:"value,omitempty"`
	Type        *Type         `json:"type,omitempty" msgpack:"type,omitempty"`
	Types       TypeRow       `json:"types,omitempty" msgpack:"types,omitempty"`
	SumRows     []TypeRow     `json:"sum_rows,omitempty" msgpack:"sum_rows,omitempty"`
	Other       TypeRow       `json:"other,omitempty" msgpack:"other,omitempty"`
	Outputs     TypeRow       `json:"outputs,omitempty" msgpack:"outputs,omitempty"`
	JustInputs  TypeRow       `json:"just_inputs,omitempty" msgpack:"just_inputs,omitempty"`
	JustOutputs TypeRow       `json:"just_outputs,omitempty" msgpack:"just_outputs,omitempty"`
	Inputs      TypeRow       `json:"inputs,omitempty" msgpack:"inputs,omitempty"`
	Tag         int           `json:"tag,omitempty" msgpack:"tag,omitempty"`
	Count       int           `json:"count,omitempty" msgpack:"count,omitempty"`
	Custom      *CustomOp     `json:"custom,omitempty" msgpack:"custom,omitempty"`
}

// Describe renders a short human-readable name for diagnostics.
func (op *Op) Describe() string {
	switch op.Kind {
	case OpFuncDefn, OpFuncDecl:
		return fmt.Sprintf("%s(%s)", op.Kind, op.Name)
	case OpCustom:
		if op.Custom != nil {
			return op.Custom.QualifiedName()
		}
	case OpTag:
		return fmt.Sprintf("Tag(%d)", op.Tag)
	}
	return op.Kind.String()
}

// ValueInputs returns the types of the value input ports.
func (op *Op) ValueInputs() TypeRow {
	switch op.Kind {
	case OpCall:
		if ft, err := op.instantiation(); err == nil {
			return ft.Input
		}
	case OpCallIndirect:
		if op.Sig != nil {
			return TypeRow{Function(*op.Sig)}.Concat(op.Sig.Input)
		}
	case OpOutput, OpMakeTuple, OpExitBlock:
		return op.Types
	case OpUnpackTuple:
		return TypeRow{Tuple(op.Types...)}
	case OpDFG, OpCFG:
		if op.Sig != nil {
			return op.Sig.Input
		}
	case OpConditional:
		return TypeRow{Sum(op.SumRows...)}.Concat(op.Other)
	case OpTailLoop:
		return op.JustInputs.Concat(op.Other)
	case OpTag:
		if op.Tag >= 0 && op.Tag < len(op.SumRows) {
			return op.SumRows[op.Tag]
		}
	case OpCopy, OpDiscard, OpNoop:
		if op.Type != nil {
			return TypeRow{*op.Type}
		}
	case OpCustom:
		if op.Custom != nil {
			return op.Custom.Signature.Input
		}
	}
	return nil
}

// ValueOutputs returns the types of the value output ports.
func (op *Op) ValueOutputs() TypeRow {
	switch op.Kind {
	case OpCall:
		if ft, err := op.instantiation(); err == nil {
			return ft.Output
		}
	case OpCallIndirect:
		if op.Sig != nil {
			return op.Sig.Output
		}
	case OpLoadConstant:
		if op.Type != nil {
			return TypeRow{*op.Type}
		}
	case OpLoadFunction:
		if ft, err := op.instantiation(); err == nil {
			return TypeRow{Function(ft)}
		}
	case OpInput, OpUnpackTuple:
		return op.Types
	case OpMakeTuple:
		return TypeRow{Tuple(op.Types...)}
	case OpDFG, OpCFG:
		if op.Sig != nil {
			return op.Sig.Output
		}
	case OpConditional:
		return op.Outputs
	case OpTailLoop:
		return op.JustOutputs.Concat(op.Other)
	case OpTag:
		return TypeRow{Sum(op.SumRows...)}
	case OpCopy:
		if op.Type != nil {
			out := make(TypeRow, op.Count)
			for i := range out {
				out[i] = *op.Type
			}
			return out
		}
	case OpNoop:
		if op.Type != nil {
			return TypeRow{*op.Type}
		}
	case OpCustom:
		if op.Custom != nil {
			return op.Custom.Signature.Output
		}
	}
	return nil
}

// StaticInput returns the port of the static input, if the op has one.
func (op *Op) StaticInput() (int, bool) {
	switch op.Kind {
	case OpCall:
		return len(op.ValueInputs()), true
	case OpLoadConstant, OpLoadFunction:
		return 0, true
	}
	return 0, false
}

// HasStaticOutput reports whether the op exposes a static output at port 0.
func (op *Op) HasStaticOutput() bool {
	switch op.Kind {
	case OpConst, OpFuncDefn, OpFuncDecl:
		return true
	}
	return false
}

// Instantiation returns the concrete signature of a Call or LoadFunction.
func (op *Op) Instantiation() (FuncType, error) { return op.instantiation() }

func (op *Op) instantiation() (FuncType, error) {
	if op.Poly == nil {
		return FuncType{}, fmt.Errorf("%s without signature", op.Kind)
	}
	return op.Poly.Instantiate(op.TypeArgs)
}

// Constructors for built-in operations.

func ModuleOp() Op { return Op{Kind: OpModule} }

func FuncDefnOp(name string, sig PolyFuncType) Op {
	s := sig
	return Op{Kind: OpFuncDefn, Name: name, Poly: &s}
}

func FuncDeclOp(name string, sig PolyFuncType) Op {
	s := sig
	return Op{Kind: OpFuncDecl, Name: name, Poly: &s}
}

func ConstOp(v Value) Op {
	vv := v
	return Op{Kind: OpConst, Value: &vv}
}

func LoadConstantOp(t Type) Op {
	tt := t
	return Op{Kind: OpLoadConstant, Type: &tt}
}

func LoadFunctionOp(sig PolyFuncType, args []TypeArg) Op {
	s := sig
	return Op{Kind: OpLoadFunction, Poly: &s, TypeArgs: args}
}

func CallOp(sig PolyFuncType, args []TypeArg) Op {
	s := sig
	return Op{Kind: OpCall, Poly: &s, TypeArgs: args}
}

func CallIndirectOp(sig FuncType) Op {
	s := sig
	return Op{Kind: OpCallIndirect, Sig: &s}
}

func InputOp(types TypeRow) Op  { return Op{Kind: OpInput, Types: types} }
func OutputOp(types TypeRow) Op { return Op{Kind: OpOutput, Types: types} }

func DFGOp(sig FuncType) Op {
	s := sig
	return Op{Kind: OpDFG, Sig: &s}
}

func ConditionalOp(sumRows []TypeRow, other, outputs TypeRow) Op {
	return Op{Kind: OpConditional, SumRows: sumRows, Other: other, Outputs: outputs}
}

func CaseOp(sig FuncType) Op {
	s := sig
	return Op{Kind: OpCase, Sig: &s}
}

func TailLoopOp(justInputs, justOutputs, rest TypeRow) Op {
	return Op{Kind: OpTailLoop, JustInputs: justInputs, JustOutputs: justOutputs, Other: rest}
}

func CFGOp(sig FuncType) Op {
	s := sig
	return Op{Kind: OpCFG, Sig: &s}
}

func DataflowBlockOp(inputs TypeRow, sumRows []TypeRow, other TypeRow) Op {
	return Op{Kind: OpDataflowBlock, Inputs: inputs, SumRows: sumRows, Other: other}
}

func ExitBlockOp(outputs TypeRow) Op { return Op{Kind: OpExitBlock, Types: outputs} }

func MakeTupleOp(types TypeRow) Op   { return Op{Kind: OpMakeTuple, Types: types} }
func UnpackTupleOp(types TypeRow) Op { return Op{Kind: OpUnpackTuple, Types: types} }

func TagOp(tag int, variants []TypeRow) Op {
	return Op{Kind: OpTag, Tag: tag, SumRows: variants}
}

func CopyOp(t Type, n int) Op {
	tt := t
	return Op{Kind: OpCopy, Type: &tt, Count: n}
}

func DiscardOp(t Type) Op {
	tt := t
	return Op{Kind: OpDiscard, Type: &tt}
}

func NoopOp(t Type) Op {
	tt := t
	return Op{Kind: OpNoop, Type: &tt}
}

func CustomOpOf(ext, name string, sig FuncType, args ...TypeArg) Op {
	return Op{Kind: OpCustom, Custom: &CustomOp{Extension: ext, Name: name, Args: args, Signature: sig}}
}

// InnerSignature returns the rows carried by the Input and Output children
// of a dataflow container.
func (op *Op) InnerSignature() (FuncType, error) {
	switch op.Kind {
	case OpFuncDefn:
		if op.Poly == nil {
			return FuncType{}, fmt.Errorf("FuncDefn %q without signature", op.Name)
		}
		return op.Poly.Body, nil
	case OpDFG, OpCase:
		if op.Sig == nil {
			return FuncType{}, fmt.Errorf("%s without signature", op.Kind)
		}
		return *op.Sig, nil
	case OpTailLoop:
		ctrl := Sum(op.JustInputs, op.JustOutputs)
		return FuncType{
			Input:  op.JustInputs.Concat(op.Other),
			Output: TypeRow{ctrl}.Concat(op.Other),
		}, nil
	case OpDataflowBlock:
		return FuncType{
			Input:  op.Inputs,
			Output: TypeRow{Sum(op.SumRows...)}.Concat(op.Other),
		}, nil
	}
	return FuncType{}, fmt.Errorf("%s is not a dataflow container", op.Kind)
}

// CaseSignature returns the inner signature of case i of a Conditional.
func (op *Op) CaseSignature(i int) (FuncType, error) {
	if op.Kind != OpConditional || i < 0 || i >= len(op.SumRows) {
		return FuncType{}, fmt.Errorf("no case %d on %s", i, op.Kind)
	}
	return FuncType{Input: op.SumRows[i].Concat(op.Other), Output: op.Outputs}, nil
}
