package session

import "fmt"

// Kind tells which of the two attribute namespaces a slot belongs to
type Kind int

// Kind values
const (
	KindValue Kind = iota + 1
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Object is an attribute whose lifetime is owned by the store.
//
// Release is called exactly once: when the attribute is overwritten or
// removed, or when its session is removed or expires.
type Object interface {
	Release()
}

// Attribute is a session attribute slot holding either an opaque value,
// whose lifetime is managed by the caller, or an Object.
//
// The zero Attribute holds nothing.
type Attribute struct {
	kind   Kind
	value  any
	object Object
}

// Value returns an attribute holding an opaque value
func Value(v any) Attribute {
	return Attribute{kind: KindValue, value: v}
}

// ObjectOf returns an attribute holding a store-owned object
func ObjectOf(o Object) Attribute {
	return Attribute{kind: KindObject, object: o}
}

// Kind returns the kind of the attribute, 0 for the zero Attribute
func (a Attribute) Kind() Kind {
	return a.kind
}

// Value returns the opaque value, if the attribute holds one
func (a Attribute) Value() (any, bool) {
	if a.kind != KindValue {
		return nil, false
	}
	return a.value, true
}

// Object returns the object, if the attribute holds one
func (a Attribute) Object() (Object, bool) {
	if a.kind != KindObject {
		return nil, false
	}
	return a.object, true
}

func (a Attribute) release() {
	if a.kind == KindObject && a.object != nil {
		a.object.Release()
	}
}
