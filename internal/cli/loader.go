package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/opsql"
)

// BatchFile is the on-disk form of a batch.
type BatchFile struct {
	Commands []opsql.Command `yaml:"commands" json:"commands"`
}

// batchSchema constrains CUE batch files.
const batchSchema = `
#Arg: int | float | string | bool | bytes | null

#Command: {
	sql:   string & !=""
	args?: [...#Arg]
}

#Batch: {
	commands: [...#Command]
}
`

// LoadBatchFile reads a batch from a .yaml, .yml or .cue file.
func LoadBatchFile(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newCommandError(ErrCodeNotFound, fmt.Errorf("batch file not found: %s", path))
		}
		return nil, newCommandError(ErrCodeLoadFailed, err)
	}

	var bf *BatchFile
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		bf, err = decodeYAMLBatch(data)
	case ".cue":
		bf, err = decodeCUEBatch(path, data)
	default:
		err = fmt.Errorf("unsupported batch file extension %q: use .yaml, .yml or .cue", ext)
	}
	if err != nil {
		return nil, newCommandError(ErrCodeLoadFailed, err)
	}
	return bf, nil
}

func decodeYAMLBatch(data []byte) (*BatchFile, error) {
	var bf BatchFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&bf); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	for i, cmd := range bf.Commands {
		if cmd.SQL == "" {
			return nil, fmt.Errorf("command %d: sql is required", i)
		}
	}
	return &bf, nil
}

func decodeCUEBatch(path string, data []byte) (*BatchFile, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(batchSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile batch schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	value = schema.LookupPath(cue.ParsePath("#Batch")).Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating batch: %w", err)
	}

	iter, err := value.LookupPath(cue.ParsePath("commands")).List()
	if err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}

	var bf BatchFile
	for i := 0; iter.Next(); i++ {
		cmd, err := decodeCUECommand(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		bf.Commands = append(bf.Commands, cmd)
	}
	return &bf, nil
}

func decodeCUECommand(v cue.Value) (opsql.Command, error) {
	var cmd opsql.Command

	sql, err := v.LookupPath(cue.ParsePath("sql")).String()
	if err != nil {
		return cmd, err
	}
	cmd.SQL = sql

	argsVal := v.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		return cmd, nil
	}
	iter, err := argsVal.List()
	if err != nil {
		return cmd, err
	}
	for i := 0; iter.Next(); i++ {
		arg, err := cueArg(iter.Value())
		if err != nil {
			return cmd, fmt.Errorf("arg %d: %w", i, err)
		}
		cmd.Args = append(cmd.Args, arg)
	}
	return cmd, nil
}

// cueArg converts a concrete CUE scalar to a bindable value.
func cueArg(v cue.Value) (any, error) {
	var (
		out any
		err error
	)
	switch v.IncompleteKind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		out, err = v.Bool()
	case cue.IntKind:
		out, err = v.Int64()
	case cue.FloatKind, cue.NumberKind:
		out, err = v.Float64()
	case cue.StringKind:
		out, err = v.String()
	case cue.BytesKind:
		out, err = v.Bytes()
	default:
		return nil, fmt.Errorf("unsupported value kind %s", v.IncompleteKind())
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseArgs decodes a JSON array of statement arguments. Integers stay
// integers; other numbers become floats.
func ParseArgs(s string) ([]any, error) {
	if s == "" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, newCommandError(ErrCodeInvalidArgs, fmt.Errorf("invalid --args JSON: %w", err))
	}

	args := make([]any, len(raw))
	for i, v := range raw {
		switch v := v.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				args[i] = n
				continue
			}
			f, err := v.Float64()
			if err != nil {
				return nil, newCommandError(ErrCodeInvalidArgs, fmt.Errorf("argument %d: %w", i+1, err))
			}
			args[i] = f
		case nil, bool, string:
			args[i] = v
		default:
			return nil, newCommandError(ErrCodeInvalidArgs, fmt.Errorf("argument %d: arrays and objects cannot be bound", i+1))
		}
	}
	return args, nil
}
