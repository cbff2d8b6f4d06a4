// Package graphfile builds runnable task graphs from declarative YAML
// definitions. Node computations are govaluate expressions over the results
// of their dependencies, and root nodes read either a literal value or a
// named parameter that may be mutated between passes.
package graphfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonike/transwarp"
)

// File is a declarative graph definition.
type File struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Final       string     `yaml:"final"` // id of the final node; defaults to the last node
	Nodes       []NodeSpec `yaml:"nodes"`
}

// NodeSpec describes one node of a declarative graph.
type NodeSpec struct {
	ID        string   `yaml:"id"`
	Label     string   `yaml:"label"` // defaults to the id
	Kind      string   `yaml:"kind"`  // root, consume, or wait
	Value     any      `yaml:"value"` // literal for a root node
	Param     string   `yaml:"param"` // named parameter for a root node, read fresh each pass
	Expr      string   `yaml:"expr"`  // expression over dependency ids
	DependsOn []string `yaml:"depends_on"`
}

const (
	kindRoot    = "root"
	kindConsume = "consume"
	kindWait    = "wait"
)

// Load parses a YAML graph definition from a file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, transwarp.NewGraphFileError("failed to open graph file", err)
	}
	defer f.Close()

	var file File
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&file); err != nil {
		return nil, transwarp.NewGraphFileError("failed to parse graph YAML", err)
	}
	return &file, nil
}

// Parse parses a YAML graph definition from memory.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, transwarp.NewGraphFileError("failed to parse graph YAML", err)
	}
	return &file, nil
}

// Validate checks the definition for duplicate ids, missing dependencies,
// malformed node specs, unparsable expressions, and cycles.
func (f *File) Validate() error {
	if len(f.Nodes) == 0 {
		return transwarp.NewGraphFileError("graph file defines no nodes", nil)
	}

	idSet := make(map[string]struct{}, len(f.Nodes))
	for _, n := range f.Nodes {
		if n.ID == "" {
			return transwarp.NewGraphFileError("node with empty id", nil)
		}
		if _, exists := idSet[n.ID]; exists {
			return transwarp.NewGraphFileError(fmt.Sprintf("duplicate node id found: %s", n.ID), nil)
		}
		idSet[n.ID] = struct{}{}
	}

	// All dependencies must exist
	for _, n := range f.Nodes {
		for _, dep := range n.DependsOn {
			if _, exists := idSet[dep]; !exists {
				return transwarp.NewGraphFileError(
					fmt.Sprintf("node '%s' depends on missing node '%s'", n.ID, dep), nil)
			}
		}
	}

	for _, n := range f.Nodes {
		if err := n.validateSpec(); err != nil {
			return err
		}
	}

	if f.Final != "" {
		if _, exists := idSet[f.Final]; !exists {
			return transwarp.NewGraphFileError(fmt.Sprintf("final node '%s' not defined", f.Final), nil)
		}
	}

	// Check for cycles using DFS
	visited := make(map[string]bool, len(f.Nodes))
	stack := make(map[string]bool, len(f.Nodes))
	var hasCycle func(id string) bool
	hasCycle = func(id string) bool {
		if stack[id] {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		stack[id] = true
		spec := f.nodeByID(id)
		if spec != nil {
			for _, dep := range spec.DependsOn {
				if hasCycle(dep) {
					return true
				}
			}
		}
		stack[id] = false
		return false
	}
	for _, n := range f.Nodes {
		if hasCycle(n.ID) {
			return transwarp.NewGraphFileError(fmt.Sprintf("cycle detected at node '%s'", n.ID), nil)
		}
	}

	return nil
}

func (n *NodeSpec) validateSpec() error {
	switch n.kind() {
	case kindRoot:
		if len(n.DependsOn) != 0 {
			return transwarp.NewGraphFileError(
				fmt.Sprintf("root node '%s' must not declare dependencies", n.ID), nil)
		}
		if n.Value == nil && n.Param == "" {
			return transwarp.NewGraphFileError(
				fmt.Sprintf("root node '%s' needs a value or a param", n.ID), nil)
		}
		if n.Value != nil && n.Param != "" {
			return transwarp.NewGraphFileError(
				fmt.Sprintf("root node '%s' declares both a value and a param", n.ID), nil)
		}
	case kindConsume:
		if len(n.DependsOn) == 0 {
			return transwarp.NewGraphFileError(
				fmt.Sprintf("consume node '%s' needs at least one dependency", n.ID), nil)
		}
		if n.Expr == "" {
			return transwarp.NewGraphFileError(
				fmt.Sprintf("consume node '%s' needs an expr", n.ID), nil)
		}
	case kindWait:
		if len(n.DependsOn) == 0 {
			return transwarp.NewGraphFileError(
				fmt.Sprintf("wait node '%s' needs at least one dependency", n.ID), nil)
		}
	default:
		return transwarp.NewGraphFileError(
			fmt.Sprintf("node '%s' has unknown kind '%s'", n.ID, n.Kind), nil)
	}

	if n.Expr != "" {
		if err := ValidateExpression(n.Expr); err != nil {
			return transwarp.NewGraphFileError(
				fmt.Sprintf("node '%s' has an invalid expression", n.ID), err)
		}
	}
	return nil
}

// kind returns the declared kind, inferring root for dependency-free specs
// and consume otherwise when the field is omitted.
func (n *NodeSpec) kind() string {
	if n.Kind != "" {
		return strings.ToLower(n.Kind)
	}
	if len(n.DependsOn) == 0 {
		return kindRoot
	}
	return kindConsume
}

func (n *NodeSpec) label() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

func (f *File) nodeByID(id string) *NodeSpec {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}
