package naming

import (
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	"gopkg.in/yaml.v3"

	"github.com/Londek/r8-mirror/graph"
)

var log = commonlog.GetLogger("r8.naming")

// mappingFile is the YAML rename table:
//
//	classes:
//	  Lcom/example/Foo;: La;
//	fields:
//	  Lcom/example/Foo;->count:I: b
//	methods:
//	  Lcom/example/Foo;->run()V: c
type mappingFile struct {
	Classes map[string]string `yaml:"classes"`
	Fields  map[string]string `yaml:"fields"`
	Methods map[string]string `yaml:"methods"`
}

// LoadMapping reads a YAML rename table. Symbols named in the table are
// interned through f.
func LoadMapping(path string, f *graph.Factory) (*MapLens, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	lens, err := ParseMapping(data, f)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	log.Debugf("loaded %d renames from %s", lens.Len(), path)
	return lens, nil
}

// ParseMapping parses a YAML rename table.
func ParseMapping(data []byte, f *graph.Factory) (*MapLens, error) {
	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	lens := NewMapLens()
	for from, to := range file.Classes {
		t, err := f.ParseType(from)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", from, err)
		}
		if !t.IsClassType() {
			return nil, fmt.Errorf("class %q: not a class type", from)
		}
		renamed, err := f.ParseType(to)
		if err != nil || !renamed.IsClassType() {
			return nil, fmt.Errorf("class %q: invalid target %q", from, to)
		}
		lens.RenameClass(t, to)
	}
	for ref, name := range file.Fields {
		fld, err := f.ParseField(ref)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", ref, err)
		}
		if name == "" {
			return nil, fmt.Errorf("field %q: empty name", ref)
		}
		lens.RenameField(fld, name)
	}
	for ref, name := range file.Methods {
		m, err := f.ParseMethod(ref)
		if err != nil {
			return nil, fmt.Errorf("method %q: %w", ref, err)
		}
		if name == "" {
			return nil, fmt.Errorf("method %q: empty name", ref)
		}
		lens.RenameMethod(m, name)
	}
	return lens, nil
}
