// Package objgraph walks an arbitrary object graph by reflection and records,
// for every reachable identity-bearing object, the edge through which it was
// first discovered. The recorded structure is a spanning tree over the
// reachable set, sufficient to reconstruct a human-readable access path from
// the root to any object.
package objgraph

import (
	"fmt"
	"reflect"
	"strconv"
)

// ID is the identity of a visited object. Identity is pointer identity,
// never value equality: two structurally equal nodes at different addresses
// are distinct. The zero ID is reserved for a root that has no address of
// its own (a non-pointer value passed directly to Traverse).
type ID uintptr

// Edge records how an object was first reached: the identity of its parent
// and the label of the member that referenced it. Labels compose field names
// with index/key subscripts, e.g. `Defs["Foo"]` or `Variants[2]`.
type Edge struct {
	Parent ID
	Label  string
}

// Step is one element of a reconstructed access path.
type Step struct {
	Label  string
	Object any
}

// Snapshot is the immutable result of one traversal. It is discarded after
// the check that requested it completes; snapshots are never shared between
// concurrent checks.
type Snapshot struct {
	Objects map[ID]any
	Parents map[ID]Edge
	Root    ID
}

// maxInlineDepth bounds descent through members that carry no identity of
// their own (nested struct values, slices, map values). Cycles are only
// possible through pointers and maps, which are tracked in the visited set,
// so the bound exists to stop pathological self-referencing values hidden
// behind interfaces.
const maxInlineDepth = 64

// Traverse visits every object reachable from root through exported struct
// fields, slice/array elements, map values, and interfaces. It terminates on
// cycles and shared substructure: each identity is entered into the snapshot
// exactly once, on first discovery. Members that cannot be introspected are
// skipped silently; Traverse has no failure modes.
func Traverse(root any) *Snapshot {
	snap := &Snapshot{
		Objects: make(map[ID]any),
		Parents: make(map[ID]Edge),
	}
	rv := reflect.ValueOf(root)
	if !rv.IsValid() {
		return snap
	}
	w := &walker{snap: snap, seenMaps: make(map[uintptr]bool)}
	rootID := ID(0)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return snap
		}
		rootID = ID(rv.Pointer())
	}
	snap.Root = rootID
	snap.Objects[rootID] = root
	w.queue = append(w.queue, work{id: rootID, val: rv})
	for len(w.queue) > 0 {
		item := w.queue[0]
		w.queue = w.queue[1:]
		v := item.val
		if v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		w.visit(item.id, "", v, 0)
	}
	return snap
}

type work struct {
	id  ID
	val reflect.Value
}

type walker struct {
	snap     *Snapshot
	queue    []work
	seenMaps map[uintptr]bool
}

// visit follows one structural member. Pointers are identity-bearing nodes:
// they enter the snapshot and the worklist. Everything else is descended
// inline, extending the label so the eventual edge is unambiguous.
func (w *walker) visit(parent ID, label string, v reflect.Value, depth int) {
	if !v.IsValid() || depth > maxInlineDepth {
		return
	}
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return
		}
		w.visit(parent, label, v.Elem(), depth+1)
	case reflect.Pointer:
		if v.IsNil() || !v.CanInterface() {
			return
		}
		id := ID(v.Pointer())
		if _, ok := w.snap.Objects[id]; ok {
			return
		}
		w.snap.Objects[id] = v.Interface()
		w.snap.Parents[id] = Edge{Parent: parent, Label: label}
		w.queue = append(w.queue, work{id: id, val: v})
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			w.visit(parent, joinField(label, f.Name), v.Field(i), depth+1)
		}
	case reflect.Slice, reflect.Array:
		if isAtomic(v.Type().Elem().Kind()) {
			// A sequence of scalars (raw text, numeric payloads) can be
			// large and carries no node references; never iterate it.
			return
		}
		for i := 0; i < v.Len(); i++ {
			w.visit(parent, label+"["+strconv.Itoa(i)+"]", v.Index(i), depth+1)
		}
	case reflect.Map:
		if v.IsNil() {
			return
		}
		if isAtomic(v.Type().Elem().Kind()) {
			return
		}
		ptr := v.Pointer()
		if w.seenMaps[ptr] {
			return
		}
		w.seenMaps[ptr] = true
		iter := v.MapRange()
		for iter.Next() {
			w.visit(parent, label+"["+keyString(iter.Key())+"]", iter.Value(), depth+1)
		}
	default:
		// Scalars, funcs, chans: nothing of interest behind them.
	}
}

// IdentityOf returns the identity of a pointer-like value, or 0 for values
// that have no address of their own.
func IdentityOf(o any) ID {
	v := reflect.ValueOf(o)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.UnsafePointer:
		return ID(v.Pointer())
	}
	return 0
}

// isAtomic reports kinds that are never recursed into.
func isAtomic(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	}
	return false
}

func joinField(label, field string) string {
	if label == "" {
		return field
	}
	return label + "." + field
}

func keyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return strconv.Quote(k.String())
	}
	return fmt.Sprintf("%v", k.Interface())
}
