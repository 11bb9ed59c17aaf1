package precompiled

import (
	"encoding/json"
	"strconv"

	"github.com/meshchain/execcore/core/types"
)

// condition is the decoded form of the CRUD JSON condition grammar spec.md
// §6 describes: {field: {op: value}}, every field/op pair ANDed together.
type condition struct {
	terms []conditionTerm
	limit uint64
	limitSet bool
	offset   uint64
}

type conditionTerm struct {
	field string
	op    string
	value string
}

var conditionOps = map[string]bool{
	"eq": true, "ne": true, "gt": true, "ge": true, "lt": true, "le": true,
}

// parseCondition decodes a CRUD condition JSON document: an object mapping
// field name to a single-entry object of {op: value}. An empty or null
// document matches every row.
func parseCondition(raw []byte) (*condition, error) {
	c := &condition{}
	if len(raw) == 0 {
		return c, nil
	}
	var doc map[string]map[string]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for field, ops := range doc {
		for op, value := range ops {
			if !conditionOps[op] {
				return nil, ErrBadCondition
			}
			c.terms = append(c.terms, conditionTerm{field: field, op: op, value: value})
		}
	}
	return c, nil
}

// ErrBadCondition is returned when a condition document uses an unknown
// comparison operator.
var ErrBadCondition = &PrecompiledValidationError{Message: "unsupported condition operator"}

type PrecompiledValidationError struct{ Message string }

func (e *PrecompiledValidationError) Error() string { return e.Message }

func (c *condition) setLimit(limit, offset uint64) {
	c.limit = limit
	c.offset = offset
	c.limitSet = true
}

// matches evaluates every term against entry, numeric comparison when both
// sides parse as integers, lexicographic otherwise.
func (c *condition) matches(entry *types.Entry) bool {
	for _, t := range c.terms {
		v, ok := entry.Get(t.field)
		if !ok {
			return false
		}
		if !compareTerm(v, t.op, t.value) {
			return false
		}
	}
	return true
}

func compareTerm(actual, op, want string) bool {
	an, aerr := strconv.ParseInt(actual, 10, 64)
	wn, werr := strconv.ParseInt(want, 10, 64)
	if aerr == nil && werr == nil {
		switch op {
		case "eq":
			return an == wn
		case "ne":
			return an != wn
		case "gt":
			return an > wn
		case "ge":
			return an >= wn
		case "lt":
			return an < wn
		case "le":
			return an <= wn
		}
		return false
	}
	switch op {
	case "eq":
		return actual == want
	case "ne":
		return actual != want
	case "gt":
		return actual > want
	case "ge":
		return actual >= want
	case "lt":
		return actual < want
	case "le":
		return actual <= want
	}
	return false
}

// applyPage applies offset/limit to an already key-sorted slice.
func (c *condition) applyPage(keys []string) []string {
	if !c.limitSet {
		return keys
	}
	if c.offset >= uint64(len(keys)) {
		return nil
	}
	end := c.offset + c.limit
	if end > uint64(len(keys)) || c.limit == 0 {
		end = uint64(len(keys))
	}
	return keys[c.offset:end]
}
