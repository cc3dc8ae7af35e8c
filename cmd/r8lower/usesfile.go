package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/uses"
)

// usesFile lists program classes and, per method, the uses its code makes:
//
//	classes:
//	  - type: Lcom/example/Main;
//	    super: Ljava/lang/Object;
//	    init-class: Lcom/example/Main;->$clinit:Z
//	methods:
//	  - method: Lcom/example/Main;->run()V
//	    uses:
//	      - static-field-read Lcom/example/Counter;->count:I
//	      - const-string hello
type usesFile struct {
	Classes []classEntry  `yaml:"classes"`
	Methods []methodEntry `yaml:"methods"`
}

type classEntry struct {
	Type       string   `yaml:"type"`
	Super      string   `yaml:"super"`
	Interfaces []string `yaml:"interfaces"`
	InitClass  string   `yaml:"init-class"`
}

// listing is a parsed uses file. initClass holds the fields named by
// init-class entries; an init-class use is only valid for those classes.
type listing struct {
	program   *graph.Program
	initClass graph.InitClassFields
	records   []uses.Record
}

type methodEntry struct {
	Method string   `yaml:"method"`
	Uses   []string `yaml:"uses"`
}

func loadUsesFile(path string, f *graph.Factory) (*listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	l, err := parseUsesFile(data, f)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return l, nil
}

func parseUsesFile(data []byte, f *graph.Factory) (*listing, error) {
	var file usesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	l := &listing{program: graph.NewProgram(), initClass: make(graph.InitClassFields)}
	for _, c := range file.Classes {
		class, err := parseClass(c, f)
		if err != nil {
			return nil, err
		}
		if l.program.DefinitionFor(class.Type) != nil {
			return nil, fmt.Errorf("class %s defined twice", class.Type)
		}
		l.program.Add(class)
		if c.InitClass != "" {
			field, err := f.ParseField(c.InitClass)
			if err != nil {
				return nil, err
			}
			if field.Holder != class.Type {
				return nil, fmt.Errorf("init-class field %s is not declared by %s", field, class.Type)
			}
			l.initClass[class.Type] = field
		}
	}

	for _, m := range file.Methods {
		context, err := f.ParseMethod(m.Method)
		if err != nil {
			return nil, err
		}
		for offset, line := range m.Uses {
			kind, item, err := parseUse(line, f)
			if err == nil && kind == uses.InitClass {
				if _, ok := l.initClass[item.(*graph.Type)]; !ok {
					err = fmt.Errorf("init-class of %s, which has no init-class field", item)
				}
			}
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.Method, err)
			}
			l.records = append(l.records, uses.Record{Context: context, Offset: offset, Kind: kind, Item: item})
		}
	}
	return l, nil
}

func parseClass(c classEntry, f *graph.Factory) (*graph.ProgramClass, error) {
	t, err := f.ParseType(c.Type)
	if err != nil {
		return nil, err
	}
	class := &graph.ProgramClass{Type: t}
	if c.Super != "" {
		if class.Super, err = f.ParseType(c.Super); err != nil {
			return nil, err
		}
	}
	for _, iface := range c.Interfaces {
		it, err := f.ParseType(iface)
		if err != nil {
			return nil, err
		}
		class.Interfaces = append(class.Interfaces, it)
	}
	return class, nil
}

// parseUse reads "<access kind> <symbol>".
func parseUse(line string, f *graph.Factory) (uses.AccessKind, graph.Item, error) {
	name, symbol, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return 0, nil, fmt.Errorf("use %q has no symbol", line)
	}
	kind, ok := uses.ParseAccessKind(name)
	if !ok {
		return 0, nil, fmt.Errorf("unknown access kind %q", name)
	}
	var item graph.Item
	var err error
	switch {
	case kind.IsFieldAccess():
		item, err = f.ParseField(symbol)
	case kind == uses.InvokeCustom || kind == uses.ConstMethodHandle:
		err = fmt.Errorf("%s uses cannot be listed", kind)
	case kind.IsInvoke():
		item, err = f.ParseMethod(symbol)
	case kind == uses.NewInstance || kind == uses.InitClass:
		item, err = f.ParseType(symbol)
	case kind == uses.ConstString:
		item = f.String(symbol)
	}
	if err != nil {
		return 0, nil, err
	}
	return kind, item, nil
}
