package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// ModuleField is the top-level CUE field holding the root module.
const ModuleField = "module"

// ParseSource compiles CUE source and parses its module field. filename
// is used only for error positions.
func ParseSource(src []byte, filename string) (*ModuleSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return lookupModule(v)
}

// LoadDir builds the CUE package in dir and returns its value.
func LoadDir(dir string) (cue.Value, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, formatCUEError(inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// ParseDir loads the CUE package in dir and parses its module field.
func ParseDir(dir string) (*ModuleSpec, error) {
	v, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return lookupModule(v)
}

func lookupModule(v cue.Value) (*ModuleSpec, error) {
	mv := v.LookupPath(cue.ParsePath(ModuleField))
	if !mv.Exists() {
		return nil, &CompileError{Field: ModuleField, Message: "no module field found", Pos: v.Pos()}
	}
	return ParseModule(mv)
}

// LoadPath parses a module from a .cue file or a CUE package directory.
func LoadPath(path string) (*ModuleSpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ParseDir(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseSource(src, path)
}
