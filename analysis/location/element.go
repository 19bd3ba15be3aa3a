package location

import (
	"fmt"

	"github.com/silt-dev/silt/mir"
)

// GetIndexedElement returns the scalar leaf at accessPath within an aggregate
// constant. Given {{1, 2}, 3} and the path [0,1] it returns 2. A nil result
// denotes uninitialized memory: the path points at or into an element that
// was never written.
//
// The access path must be valid for the aggregate's type.
func GetIndexedElement(agg mir.Value, accessPath []int) mir.Value {
	v := agg
	for _, field := range accessPath {
		if v == nil {
			return nil
		}
		ac, ok := v.(*mir.AggregateConst)
		if !ok {
			panic(fmt.Sprintf("access path %v does not match aggregate %s", accessPath, agg))
		}
		v = ac.Elems[field]
	}
	return v
}

// SetIndexedElement sets the scalar leaf at accessPath within an aggregate
// constant, returning the updated aggregate. Given {{1, 2}, 3}, the path
// [0,1] and the element 4 it produces {{1, 4}, 3}. The input aggregate is
// not modified.
//
// The access path must be valid for the aggregate's type.
func SetIndexedElement(agg mir.Value, accessPath []int, elem mir.Value) mir.Value {
	if len(accessPath) == 0 {
		return elem
	}
	ac, ok := agg.(*mir.AggregateConst)
	if !ok {
		panic(fmt.Sprintf("access path %v does not match aggregate %s", accessPath, agg))
	}
	elems := make([]mir.Value, len(ac.Elems))
	copy(elems, ac.Elems)
	field := accessPath[0]
	elems[field] = SetIndexedElement(elems[field], accessPath[1:], elem)
	return mir.NewAggregateConst(ac.Type(), elems...)
}
