package lower

import (
	"path/filepath"
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/types"

	"hugrllvm/internal/hugr"
)

// Node metadata keys read for debug info. di.file is a source path; on the
// module root it names the compile unit, on a FuncDefn the function's own
// file. di.line is a decimal line number.
const (
	MetaDebugFile = "di.file"
	MetaDebugLine = "di.line"
)

const debugProducer = "hugrllvm"

// debugInfo builds the compile unit and subprograms of one run. It is nil
// when the module root carries no di.file, and then every method is a no-op.
type debugInfo struct {
	mod     *ir.Module
	unit    *metadata.DICompileUnit
	files   map[string]*metadata.DIFile
	sigType *metadata.DISubroutineType
}

func newDebugInfo(mod *ir.Module, h *hugr.Hugr) *debugInfo {
	path, ok := h.Metadata(h.Root(), MetaDebugFile)
	if !ok || path == "" {
		return nil
	}
	d := &debugInfo{mod: mod, files: make(map[string]*metadata.DIFile)}
	d.unit = &metadata.DICompileUnit{
		MetadataID:   -1,
		Distinct:     true,
		Language:     enum.DwarfLangC,
		File:         d.file(path),
		Producer:     debugProducer,
		EmissionKind: enum.EmissionKindFullDebug,
	}
	d.sigType = &metadata.DISubroutineType{
		MetadataID: -1,
		Types:      &metadata.Tuple{MetadataID: -1},
	}
	mod.MetadataDefs = append(mod.MetadataDefs, d.unit, d.sigType)
	mod.NamedMetadataDefs["llvm.dbg.cu"] = &metadata.NamedDef{
		Name:  "llvm.dbg.cu",
		Nodes: []metadata.Node{d.unit},
	}
	mod.NamedMetadataDefs["llvm.module.flags"] = &metadata.NamedDef{
		Name: "llvm.module.flags",
		Nodes: []metadata.Node{
			d.flag("Dwarf Version", 4),
			d.flag("Debug Info Version", 3),
		},
	}
	return d
}

// flag is a module flag with the Warning (2) merge behaviour.
func (d *debugInfo) flag(name string, v int64) *metadata.Tuple {
	t := &metadata.Tuple{
		MetadataID: -1,
		Fields: []metadata.Field{
			constant.NewInt(types.I32, 2),
			&metadata.String{Value: name},
			constant.NewInt(types.I32, v),
		},
	}
	d.mod.MetadataDefs = append(d.mod.MetadataDefs, t)
	return t
}

func (d *debugInfo) file(path string) *metadata.DIFile {
	if f, ok := d.files[path]; ok {
		return f
	}
	f := &metadata.DIFile{MetadataID: -1, Filename: filepath.Base(path)}
	if dir := filepath.Dir(path); dir != "." {
		f.Directory = dir
	}
	d.files[path] = f
	d.mod.MetadataDefs = append(d.mod.MetadataDefs, f)
	return f
}

// attach gives fn, emitted for FuncDefn n of h, a !dbg subprogram. The
// function's file defaults to the compile unit's and its line to 0.
func (d *debugInfo) attach(fn *ir.Func, h *hugr.Hugr, n hugr.NodeID, name string) error {
	if d == nil {
		return nil
	}
	file := d.unit.File
	if path, ok := h.Metadata(n, MetaDebugFile); ok && path != "" {
		file = d.file(path)
	}
	var line int64
	if s, ok := h.Metadata(n, MetaDebugLine); ok {
		l, err := strconv.ParseUint(s, 10, 31)
		if err != nil {
			return invariant(h, n, "%s %q is not a line number", MetaDebugLine, s)
		}
		line = int64(l)
	}
	sp := &metadata.DISubprogram{
		MetadataID:  -1,
		Distinct:    true,
		Name:        name,
		LinkageName: fn.Name(),
		Scope:       file,
		File:        file,
		Line:        line,
		Type:        d.sigType,
		ScopeLine:   line,
		SPFlags:     enum.DISPFlagDefinition,
		Unit:        d.unit,
	}
	d.mod.MetadataDefs = append(d.mod.MetadataDefs, sp)
	fn.Metadata = append(fn.Metadata, &metadata.Attachment{Name: "dbg", Node: sp})
	return nil
}
