package kor

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// moduleDoc is the on-disk shape of a module fixture. Types, patterns
// and expressions are polymorphic, so they stay raw yaml nodes and the
// builder walks them.
type moduleDoc struct {
	Module     string         `yaml:"module"`
	Datas      []dataDoc      `yaml:"datas"`
	Interfaces []interfaceDoc `yaml:"interfaces"`
	// each entry is either one def mapping or a sequence of defs
	// forming a mutually recursive group
	Defs []yaml.Node `yaml:"defs"`
}

type dataDoc struct {
	Name     string       `yaml:"name"`
	TParams  []string     `yaml:"tparams"`
	Variants []variantDoc `yaml:"variants"`
}

type variantDoc struct {
	Name   string      `yaml:"name"`
	Fields []yaml.Node `yaml:"fields"`
}

type interfaceDoc struct {
	Name    string   `yaml:"name"`
	TParams []string `yaml:"tparams"`
	Ops     []opDoc  `yaml:"ops"`
}

type opDoc struct {
	Name   string      `yaml:"name"`
	Params []yaml.Node `yaml:"params"`
	Result yaml.Node   `yaml:"result"`
}

type defDoc struct {
	Name    string      `yaml:"name"`
	TParams []string    `yaml:"tparams"`
	Params  []paramDoc  `yaml:"params"`
	Blocks  []paramDoc  `yaml:"blocks"`
	Ret     yaml.Node   `yaml:"ret"`
	Body    []yaml.Node `yaml:"body"`
}

type paramDoc struct {
	Name string    `yaml:"name"`
	Type yaml.Node `yaml:"type"`
}

// mapEntries flattens a yaml mapping into key order plus lookup.
func mapEntries(n *yaml.Node) (map[string]*yaml.Node, []string, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("line %d: expected a mapping, got %s", n.Line, kindName(n))
	}
	entries := make(map[string]*yaml.Node, len(n.Content)/2)
	var order []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		entries[key] = n.Content[i+1]
		order = append(order, key)
	}
	return entries, order, nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.AliasNode:
		return "an alias"
	case yaml.DocumentNode:
		return "a document"
	}
	return "an empty node"
}

func isNull(n *yaml.Node) bool {
	return n == nil || n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}
