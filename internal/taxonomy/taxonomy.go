// Package taxonomy holds the three-level industry classification used by the
// valuation form's dependent dropdowns.
package taxonomy

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// MaxDepth is the number of levels below and including a top-level node.
const MaxDepth = 3

// PlaceholderLabel is shown for the empty option of every industry select.
const PlaceholderLabel = "選択してください"

var (
	ErrInvalidDataset = errors.New("invalid industry dataset")

	defaultOnce sync.Once
	defaultTax  *Taxonomy
	defaultErr  error
)

//go:embed data.json
var embeddedData []byte

const datasetSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["id", "value", "parentId"],
    "additionalProperties": false,
    "properties": {
      "id": {"type": "integer", "minimum": 1},
      "value": {"type": "string", "minLength": 1},
      "parentId": {"type": ["integer", "null"]}
    }
  }
}`

// Node is one industry classification.
type Node struct {
	ID       int    `json:"id"`
	Value    string `json:"value"`
	ParentID *int   `json:"parentId"`
}

func (n Node) clone() Node {
	if n.ParentID != nil {
		parent := *n.ParentID
		n.ParentID = &parent
	}
	return n
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}

// Key is the id as the form stores it.
func (n Node) Key() string {
	return strconv.Itoa(n.ID)
}

// Option is one entry of a select list.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Taxonomy is an immutable, indexed industry tree.
type Taxonomy struct {
	nodes    []Node
	byID     map[int]Node
	children map[int][]Node
	top      []Node
}

// Default returns the taxonomy built from the embedded dataset.
func Default() (*Taxonomy, error) {
	defaultOnce.Do(func() {
		defaultTax, defaultErr = Load(embeddedData)
	})
	return defaultTax, defaultErr
}

// MustDefault is Default for program start-up, where a broken embedded
// dataset is a build defect.
func MustDefault() *Taxonomy {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load validates a JSON dataset of {id, value, parentId} records and indexes it.
func Load(data []byte) (*Taxonomy, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(datasetSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidDataset, strings.Join(errs, "; "))
	}

	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	return build(nodes)
}

func build(nodes []Node) (*Taxonomy, error) {
	t := &Taxonomy{
		nodes:    nodes,
		byID:     make(map[int]Node, len(nodes)),
		children: make(map[int][]Node),
	}

	for _, n := range nodes {
		if _, dup := t.byID[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidDataset, n.ID)
		}
		t.byID[n.ID] = n
	}

	for _, n := range nodes {
		if n.ParentID == nil {
			t.top = append(t.top, n)
			continue
		}
		if _, ok := t.byID[*n.ParentID]; !ok {
			return nil, fmt.Errorf("%w: node %d references missing parent %d", ErrInvalidDataset, n.ID, *n.ParentID)
		}
		t.children[*n.ParentID] = append(t.children[*n.ParentID], n)
	}

	for _, n := range nodes {
		if d := t.depth(n); d > MaxDepth {
			return nil, fmt.Errorf("%w: node %d is %d levels deep", ErrInvalidDataset, n.ID, d)
		}
	}
	return t, nil
}

// depth counts levels up to the root, stopping early on cycles.
func (t *Taxonomy) depth(n Node) int {
	d := 1
	for n.ParentID != nil {
		d++
		if d > MaxDepth {
			return d
		}
		n = t.byID[*n.ParentID]
	}
	return d
}

// TopLevel returns every node without a parent, in dataset order. The
// slice is the caller's own.
func (t *Taxonomy) TopLevel() []Node {
	return cloneNodes(t.top)
}

// ChildrenOf returns a copy of the direct children of id; empty if none.
func (t *Taxonomy) ChildrenOf(id int) []Node {
	return cloneNodes(t.children[id])
}

func (t *Taxonomy) HasChildren(id int) bool {
	return len(t.children[id]) > 0
}

func (t *Taxonomy) ByID(id int) (Node, bool) {
	n, ok := t.byID[id]
	return n.clone(), ok
}

// ByValue returns the first node carrying label v. Labels repeat across
// branches, so this is only a convenience for operator tooling.
func (t *Taxonomy) ByValue(v string) (Node, bool) {
	for _, n := range t.nodes {
		if n.Value == v {
			return n.clone(), true
		}
	}
	return Node{}, false
}

// Lookup resolves a string-encoded id as stored in the form.
func (t *Taxonomy) Lookup(key string) (Node, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil {
		return Node{}, false
	}
	return t.ByID(id)
}

// ChildrenOfKey is ChildrenOf for a string-encoded id; an empty or unknown
// key has no children.
func (t *Taxonomy) ChildrenOfKey(key string) []Node {
	n, ok := t.Lookup(key)
	if !ok {
		return nil
	}
	return t.ChildrenOf(n.ID)
}

func (t *Taxonomy) HasChildrenKey(key string) bool {
	n, ok := t.Lookup(key)
	return ok && t.HasChildren(n.ID)
}

// Label returns the display label for a string-encoded id, or the key
// itself when it does not resolve.
func (t *Taxonomy) Label(key string) string {
	if n, ok := t.Lookup(key); ok {
		return n.Value
	}
	return key
}

// ToSelectOptions converts nodes to select options behind an empty placeholder.
func ToSelectOptions(nodes []Node) []Option {
	opts := make([]Option, 0, len(nodes)+1)
	opts = append(opts, Option{Value: "", Label: PlaceholderLabel})
	for _, n := range nodes {
		opts = append(opts, Option{Value: n.Key(), Label: n.Value})
	}
	return opts
}
