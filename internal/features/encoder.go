package features

import (
	"fmt"
	"sort"
)

// LabelEncoder maps the distinct values seen at training time onto 0..n-1 in
// sorted order.
type LabelEncoder struct {
	Classes []string `json:"classes"`

	index map[string]int
}

func FitLabelEncoder(values []string) *LabelEncoder {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for v := range set {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	e := &LabelEncoder{Classes: classes}
	e.buildIndex()
	return e
}

func (e *LabelEncoder) buildIndex() {
	if e == nil || e.index != nil {
		return
	}
	index := make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		index[c] = i
	}
	e.index = index
}

// Validate rejects class lists that would give one value two codes.
func (e *LabelEncoder) Validate() error {
	if e == nil {
		return fmt.Errorf("missing encoder")
	}
	seen := make(map[string]struct{}, len(e.Classes))
	for _, c := range e.Classes {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate class %q", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// Transform returns the code for v and whether v was seen during fitting.
// Unseen values encode to 0. It never writes, so a warmed encoder is safe
// for concurrent use.
func (e *LabelEncoder) Transform(v string) (int, bool) {
	if e == nil || len(e.Classes) == 0 {
		return 0, false
	}
	if e.index == nil {
		for i, c := range e.Classes {
			if c == v {
				return i, true
			}
		}
		return 0, false
	}
	i, ok := e.index[v]
	if !ok {
		return 0, false
	}
	return i, true
}

// Inverse returns the class for code i.
func (e *LabelEncoder) Inverse(i int) (string, bool) {
	if e == nil || i < 0 || i >= len(e.Classes) {
		return "", false
	}
	return e.Classes[i], true
}

func (e *LabelEncoder) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Classes)
}

// Encoders is the categorical state persisted alongside a model.
type Encoders struct {
	Store   *LabelEncoder `json:"store_id"`
	Product *LabelEncoder `json:"sku_id"`
}

func (e *Encoders) Validate() error {
	if e == nil {
		return fmt.Errorf("missing encoders")
	}
	if err := e.Store.Validate(); err != nil {
		return fmt.Errorf("store_id: %w", err)
	}
	if err := e.Product.Validate(); err != nil {
		return fmt.Errorf("sku_id: %w", err)
	}
	return nil
}

// Warm must be called once after decoding, before sharing across goroutines.
func (e *Encoders) Warm() {
	if e == nil {
		return
	}
	e.Store.buildIndex()
	e.Product.buildIndex()
}
