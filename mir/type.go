package mir

import "strings"

// Type is the layout-relevant shape of a MIR value. The lifetime analyses
// only need to enumerate aggregate fields and to decide trackability; there
// is deliberately no subtyping or inference here.
type Type interface {
	String() string
}

// ScalarType is an opaque leaf type, e.g. Int64 or Bool.
type ScalarType struct {
	TName string
}

func (t *ScalarType) String() string { return t.TName }

// RawPointerType is memory that may be aliased arbitrarily. Locations of this
// type are never tracked.
type RawPointerType struct{}

func (t *RawPointerType) String() string { return "RawPtr" }

// StructType is a named aggregate. An opaque struct has a statically unknown
// set of fields (the declared ones are a lower bound); projections into it
// never fully cover the aggregate.
type StructType struct {
	TName  string
	Fields []Type
	Opaque bool
}

func (t *StructType) String() string { return t.TName }

// TupleType is an anonymous aggregate.
type TupleType struct {
	Elems []Type
}

func (t *TupleType) String() string {
	elems := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		elems[i] = e.String()
	}
	return "(" + strings.Join(elems, ", ") + ")"
}

// Trackable reports whether memory of type t takes part in lifetime tracking.
// Raw pointer memory may be aliased behind the analysis' back, so it is
// conservatively excluded.
func Trackable(t Type) bool {
	_, raw := t.(*RawPointerType)
	return !raw
}

// FieldTypes returns the statically known field types of an aggregate, or
// ok = false if t is not an aggregate.
func FieldTypes(t Type) (fields []Type, ok bool) {
	switch t := t.(type) {
	case *StructType:
		return t.Fields, true
	case *TupleType:
		return t.Elems, true
	}
	return nil, false
}
