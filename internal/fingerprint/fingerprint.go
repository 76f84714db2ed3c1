// Package fingerprint computes deterministic, content-derived keys for
// computations: the operation identifier together with the effective values
// of its arguments.
//
// The encoding is canonical: map entries are sorted, struct fields follow
// declaration order, pointers are followed and every component is
// length-prefixed so that no two different inputs share an encoding. Memory
// addresses never contribute, so keys are stable across processes. Structs
// with unexported state are encoded through their marshaling methods or
// rejected, as are maps whose distinct keys share an encoding.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Fingerprint is the hex-encoded SHA-256 of the canonical encoding of a
// computation. Equal fingerprints mean the same operation applied to the same
// effective inputs.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// Short returns an abbreviated form for log lines.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Hashable is implemented by values that know how to encode their own
// content, such as frames.
type Hashable interface {
	WriteFingerprint(w io.Writer) error
}

// ErrUnhashableInput is matched by every *UnhashableInputError.
var ErrUnhashableInput = errors.New("unhashable input")

// UnhashableInputError reports an argument that has no canonical encoding.
type UnhashableInputError struct {
	// Path locates the offending value, e.g. "args[1].Filters[0]".
	Path   string
	Type   string
	Reason string
}

func (e *UnhashableInputError) Error() string {
	return fmt.Sprintf("unhashable input at %s (%s): %s", e.Path, e.Type, e.Reason)
}

// Is makes errors.Is(err, ErrUnhashableInput) succeed.
func (e *UnhashableInputError) Is(target error) bool {
	return target == ErrUnhashableInput
}

// Compute returns the fingerprint of an operation applied to args.
func Compute(operation string, args ...any) (Fingerprint, error) {
	h := sha256.New()
	e := newEncoder(h)
	e.field(tagOperation, []byte(operation))
	e.count(len(args))
	for i, arg := range args {
		if err := e.encode(fmt.Sprintf("args[%d]", i), reflect.ValueOf(arg)); err != nil {
			return "", err
		}
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// MustCompute is like Compute but panics on error. It is meant for static
// arguments known to be hashable.
func MustCompute(operation string, args ...any) Fingerprint {
	fp, err := Compute(operation, args...)
	if err != nil {
		panic(err)
	}
	return fp
}

const (
	tagOperation byte = 'o'
	tagNil       byte = 'n'
	tagBool      byte = 'b'
	tagInt       byte = 'i'
	tagUint      byte = 'u'
	tagFloat     byte = 'f'
	tagComplex   byte = 'x'
	tagString    byte = 's'
	tagBytes     byte = 'y'
	tagList      byte = 'l'
	tagMap       byte = 'm'
	tagStruct    byte = 'r'
	tagCty       byte = 'c'
	tagTime      byte = 't'
	tagHashable  byte = 'h'
	tagMarshaled byte = 'z'
	tagCount     byte = '#'
)

var (
	hashableType = reflect.TypeOf((*Hashable)(nil)).Elem()
	ctyValueType = reflect.TypeOf(cty.Value{})
	timeType     = reflect.TypeOf(time.Time{})
)

type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type encoder struct {
	w        io.Writer
	visiting map[visit]bool
}

func newEncoder(w io.Writer) *encoder {
	return &encoder{w: w, visiting: map[visit]bool{}}
}

// field writes a tag followed by the length-prefixed payload.
func (e *encoder) field(tag byte, data []byte) {
	var prefix [9]byte
	prefix[0] = tag
	binary.BigEndian.PutUint64(prefix[1:], uint64(len(data)))
	e.w.Write(prefix[:])
	e.w.Write(data)
}

func (e *encoder) count(n int) {
	e.field(tagCount, strconv.AppendInt(nil, int64(n), 10))
}

func (e *encoder) unhashable(path string, rv reflect.Value, reason string) error {
	typ := "nil"
	if rv.IsValid() {
		typ = rv.Type().String()
	}
	return &UnhashableInputError{Path: path, Type: typ, Reason: reason}
}

func (e *encoder) encode(path string, rv reflect.Value) error {
	if !rv.IsValid() {
		e.field(tagNil, nil)
		return nil
	}

	switch rv.Type() {
	case ctyValueType:
		return e.encodeCty(path, rv.Interface().(cty.Value))
	case timeType:
		t := rv.Interface().(time.Time)
		e.field(tagTime, []byte(t.UTC().Format(time.RFC3339Nano)))
		return nil
	}
	if rv.Type().Implements(hashableType) && !isNilPointer(rv) {
		return e.encodeHashable(path, rv)
	}

	switch rv.Kind() {
	case reflect.Bool:
		e.field(tagBool, strconv.AppendBool(nil, rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.field(tagInt, strconv.AppendInt(nil, rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.field(tagUint, strconv.AppendUint(nil, rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		e.field(tagFloat, formatFloat(rv.Float()))
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		e.field(tagComplex, append(append(formatFloat(real(c)), ','), formatFloat(imag(c))...))
	case reflect.String:
		e.field(tagString, []byte(rv.String()))
	case reflect.Interface:
		if rv.IsNil() {
			e.field(tagNil, nil)
			return nil
		}
		return e.encode(path, rv.Elem())
	case reflect.Pointer:
		if rv.IsNil() {
			e.field(tagNil, nil)
			return nil
		}
		return e.guard(path, rv, func() error { return e.encode(path, rv.Elem()) })
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			e.field(tagBytes, rv.Bytes())
			return nil
		}
		if rv.IsNil() {
			return e.encodeList(path, rv)
		}
		return e.guard(path, rv, func() error { return e.encodeList(path, rv) })
	case reflect.Array:
		return e.encodeList(path, rv)
	case reflect.Map:
		if rv.IsNil() {
			return e.encodeMap(path, rv)
		}
		return e.guard(path, rv, func() error { return e.encodeMap(path, rv) })
	case reflect.Struct:
		return e.encodeStruct(path, rv)
	case reflect.Func:
		return e.unhashable(path, rv, "functions have no content")
	case reflect.Chan:
		return e.unhashable(path, rv, "channels have no content")
	case reflect.UnsafePointer:
		return e.unhashable(path, rv, "unsafe pointers have no content")
	default:
		return e.unhashable(path, rv, "unsupported kind "+rv.Kind().String())
	}
	return nil
}

// guard detects reference cycles through pointers, slices and maps.
func (e *encoder) guard(path string, rv reflect.Value, fn func() error) error {
	key := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		key.len = rv.Len()
	}
	if e.visiting[key] {
		return e.unhashable(path, rv, "reference cycle")
	}
	e.visiting[key] = true
	defer delete(e.visiting, key)
	return fn()
}

func (e *encoder) encodeList(path string, rv reflect.Value) error {
	e.field(tagList, nil)
	e.count(rv.Len())
	for i := 0; i < rv.Len(); i++ {
		if err := e.encode(fmt.Sprintf("%s[%d]", path, i), rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

type encodedEntry struct {
	key   []byte
	value reflect.Value
	label string
}

func (e *encoder) encodeMap(path string, rv reflect.Value) error {
	entries := make([]encodedEntry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		label := fmt.Sprintf("%s[%v]", path, k)
		if holdsPointer(k) {
			return e.unhashable(label, k, "map keys must not be pointers")
		}
		var buf bytes.Buffer
		sub := &encoder{w: &buf, visiting: e.visiting}
		if err := sub.encode(label, k); err != nil {
			return err
		}
		entries = append(entries, encodedEntry{key: buf.Bytes(), value: iter.Value(), label: label})
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].key, entries[j].key) < 0 })
	for i := 1; i < len(entries); i++ {
		if bytes.Equal(entries[i-1].key, entries[i].key) {
			return e.unhashable(entries[i].label, rv, "map keys are not canonically ordered")
		}
	}

	e.field(tagMap, nil)
	e.count(len(entries))
	for _, entry := range entries {
		e.w.Write(entry.key)
		if err := e.encode(entry.label, entry.value); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeStruct(path string, rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			return e.encodeOpaque(path, rv)
		}
	}
	e.field(tagStruct, []byte(t.String()))
	e.count(t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Name
		e.field(tagString, []byte(name))
		if err := e.encode(path+"."+name, rv.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

// encodeOpaque encodes a struct with unexported state through its own
// marshaling methods. Without them its content cannot be observed.
func (e *encoder) encodeOpaque(path string, rv reflect.Value) error {
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)

	var data []byte
	var err error
	switch m := p.Interface().(type) {
	case Hashable:
		return e.encodeHashable(path, p)
	case encoding.BinaryMarshaler:
		data, err = m.MarshalBinary()
	case encoding.TextMarshaler:
		data, err = m.MarshalText()
	default:
		return e.unhashable(path, rv, "struct has unexported fields and no canonical encoding")
	}
	if err != nil {
		return e.unhashable(path, rv, err.Error())
	}
	e.field(tagMarshaled, []byte(rv.Type().String()))
	e.field(tagMarshaled, data)
	return nil
}

func (e *encoder) encodeCty(path string, v cty.Value) error {
	if v.Type() == cty.NilType {
		e.field(tagNil, nil)
		return nil
	}
	if !v.IsWhollyKnown() {
		return &UnhashableInputError{Path: path, Type: "cty.Value", Reason: "value is not wholly known"}
	}
	data, err := ctyjson.Marshal(v, cty.DynamicPseudoType)
	if err != nil {
		return &UnhashableInputError{Path: path, Type: "cty.Value", Reason: err.Error()}
	}
	e.field(tagCty, data)
	return nil
}

func (e *encoder) encodeHashable(path string, rv reflect.Value) error {
	var buf bytes.Buffer
	if err := rv.Interface().(Hashable).WriteFingerprint(&buf); err != nil {
		return &UnhashableInputError{Path: path, Type: rv.Type().String(), Reason: err.Error()}
	}
	e.field(tagHashable, []byte(rv.Type().String()))
	e.field(tagHashable, buf.Bytes())
	return nil
}

func formatFloat(f float64) []byte {
	if math.IsNaN(f) {
		return []byte("NaN")
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64)
}

func isNilPointer(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func holdsPointer(k reflect.Value) bool {
	for k.Kind() == reflect.Interface {
		if k.IsNil() {
			return false
		}
		k = k.Elem()
	}
	switch k.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
		return true
	}
	return false
}
