package dom

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultTarget is used when a descriptor has no target selector.
const DefaultTarget = "head"

// Element describes a node to create and where to attach it.
type Element struct {
	Tag    string `json:"el" yaml:"el"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	Attrs  []Attr `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// TargetOrDefault returns the selector the element is appended to.
func (e Element) TargetOrDefault() string {
	if e.Target == "" {
		return DefaultTarget
	}
	return e.Target
}

// Attr is a single attribute. It is encoded as a [name, value] pair.
type Attr struct {
	Name  string
	Value string
}

func (a Attr) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{a.Name, a.Value})
}

func (a *Attr) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttr, err)
	}
	return a.fromPair(pair)
}

func (a Attr) MarshalYAML() (any, error) {
	return []string{a.Name, a.Value}, nil
}

func (a *Attr) UnmarshalYAML(node *yaml.Node) error {
	var pair []string
	if err := node.Decode(&pair); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttr, err)
	}
	return a.fromPair(pair)
}

func (a *Attr) fromPair(pair []string) error {
	if len(pair) != 2 || pair[0] == "" {
		return fmt.Errorf("%w: got %d values", ErrInvalidAttr, len(pair))
	}
	a.Name, a.Value = pair[0], pair[1]
	return nil
}
