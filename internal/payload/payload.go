// Package payload turns a build payload into the data script a template
// reads: data.js containing a framing prefix followed by JSON.
//
// Strings, byte slices and json.RawMessage are treated as pre-serialized and
// written verbatim. Any other value is walked by reflection into an ordered
// tree before encoding, which lets the walk:
//   - drop values that would re-enter one of their own ancestors (cycles),
//   - rename every object key to lowerCamelCase, whatever the Go field or map
//     key looked like. Two keys of one object that rename to the same name
//     are an error rather than a silent overwrite.
package payload

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/alnah/go-tpl2pdf/internal/fileutil"
)

// FileName is the fixed name of the generated data script.
const FileName = "data.js"

// Framing prefixes written before the serialized payload.
const (
	// FramingGlobal binds the payload to the global "data" for a classic
	// <script src="data.js"> include.
	FramingGlobal = "var data = "

	// FramingModule exposes the payload as the default export of an ES module.
	FramingModule = "export default "
)

// filePerm is the permission of the generated data script.
const filePerm = 0o644

// Sentinel errors for payload operations.
var (
	// ErrUnsupportedValue indicates a value JSON cannot represent.
	ErrUnsupportedValue = errors.New("unsupported payload value")

	// ErrWrite indicates the data script could not be written.
	ErrWrite = errors.New("writing data file failed")
)

var (
	marshalerType     = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// Serialize returns the script body for v. Pre-serialized payloads are
// returned unchanged; everything else goes through Encode.
func Serialize(v any) ([]byte, error) {
	switch p := v.(type) {
	case string:
		return []byte(p), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}
	return Encode(v)
}

// Encode serializes v to JSON with camelCase object keys, eliding any value
// that would form a reference cycle.
func Encode(v any) ([]byte, error) {
	w := &walker{active: make(map[visit]struct{})}
	node, _, err := w.walk(reflect.ValueOf(v), "$")
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return out, nil
}

// WriteDataFile writes dir/data.js with content framing + Serialize(v).
// Returns the path written.
func WriteDataFile(dir string, v any, framing string) (string, error) {
	body, err := Serialize(v)
	if err != nil {
		return "", err
	}

	content := make([]byte, 0, len(framing)+len(body))
	content = append(content, framing...)
	content = append(content, body...)

	path := filepath.Join(dir, FileName)
	if err := fileutil.WriteFileAtomic(path, content, os.FileMode(filePerm)); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return path, nil
}

// Summary describes a payload for error messages without dumping it.
func Summary(v any) string {
	switch p := v.(type) {
	case nil:
		return "nil payload"
	case string:
		return fmt.Sprintf("string payload (%d bytes)", len(p))
	case json.RawMessage:
		return fmt.Sprintf("raw JSON payload (%d bytes)", len(p))
	case []byte:
		return fmt.Sprintf("byte payload (%d bytes)", len(p))
	}
	return fmt.Sprintf("%T payload", v)
}

// CamelKey converts an object key to lowerCamelCase. Keys containing
// non-ASCII characters only get their first letter lowered, since the
// ASCII conversion would drop those characters. Keys without separators
// keep their word boundaries: a leading run of capitals is lowered as one
// word, so HTMLTitle becomes htmlTitle and URLs becomes urls.
func CamelKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(key)
			return string(unicode.ToLower(r)) + key[size:]
		}
	}
	if strings.ContainsAny(key, "_- .") {
		return strcase.ToLowerCamel(key)
	}
	return lowerLeadingRun(key)
}

// lowerLeadingRun lowers the capitals key starts with. When the run is
// followed by a lower-case letter its last capital starts the next word
// and is kept.
func lowerLeadingRun(key string) string {
	n := 0
	for n < len(key) && isUpper(key[n]) {
		n++
	}
	switch {
	case n == 0:
		return key
	case n == len(key), key[n:] == "s":
		return strings.ToLower(key)
	case n > 1 && isLower(key[n]):
		n--
	}
	return strings.ToLower(key[:n]) + key[n:]
}

func isUpper(c byte) bool { return 'A' <= c && c <= 'Z' }
func isLower(c byte) bool { return 'a' <= c && c <= 'z' }

// visit identifies a reference-typed value on the current traversal path.
type visit struct {
	ptr uintptr
	len int
	typ reflect.Type
}

// walker converts reflect values into JSON-ready trees.
// active holds the references between the root and the value being walked.
type walker struct {
	active map[visit]struct{}
}

// enter records a reference as active. Returns false if it already is,
// meaning the value is its own ancestor.
func (w *walker) enter(k visit) bool {
	if _, ok := w.active[k]; ok {
		return false
	}
	w.active[k] = struct{}{}
	return true
}

func (w *walker) leave(k visit) {
	delete(w.active, k)
}

// walk returns the JSON-ready node for v. keep is false when v closes a cycle
// and must be left out of its parent.
func (w *walker) walk(v reflect.Value, path string) (node any, keep bool, err error) {
	if !v.IsValid() {
		return nil, true, nil
	}

	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil, true, nil
	}

	if v.CanInterface() && v.Type().Implements(marshalerType) {
		raw, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, false, fmt.Errorf("%w: %s: %v", ErrUnsupportedValue, path, err)
		}
		return json.RawMessage(raw), true, nil
	}
	if v.CanInterface() && v.Type().Implements(textMarshalerType) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, false, fmt.Errorf("%w: %s: %v", ErrUnsupportedValue, path, err)
		}
		return string(text), true, nil
	}

	switch v.Kind() {
	case reflect.Interface:
		return w.walk(v.Elem(), path)

	case reflect.Pointer:
		k := visit{ptr: v.Pointer(), typ: v.Type()}
		if !w.enter(k) {
			return nil, false, nil
		}
		defer w.leave(k)
		return w.walk(v.Elem(), path)

	case reflect.Map:
		if v.IsNil() {
			return nil, true, nil
		}
		k := visit{ptr: v.Pointer(), typ: v.Type()}
		if !w.enter(k) {
			return nil, false, nil
		}
		defer w.leave(k)
		return w.walkMap(v, path)

	case reflect.Slice:
		if v.IsNil() {
			return nil, true, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			// base64, as encoding/json does for nested byte slices
			return v.Bytes(), true, nil
		}
		k := visit{ptr: v.Pointer(), len: v.Len(), typ: v.Type()}
		if !w.enter(k) {
			return nil, false, nil
		}
		defer w.leave(k)
		return w.walkList(v, path)

	case reflect.Array:
		return w.walkList(v, path)

	case reflect.Struct:
		return w.walkStruct(v, path)

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false, fmt.Errorf("%w: %s: %v", ErrUnsupportedValue, path, f)
		}
		return v.Interface(), true, nil

	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Interface(), true, nil
	}

	return nil, false, fmt.Errorf("%w: %s: %s", ErrUnsupportedValue, path, v.Type())
}

func (w *walker) walkList(v reflect.Value, path string) (any, bool, error) {
	out := make([]any, 0, v.Len())
	for i := range v.Len() {
		node, keep, err := w.walk(v.Index(i), path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, false, err
		}
		if keep {
			out = append(out, node)
		}
	}
	return out, true, nil
}

func (w *walker) walkMap(v reflect.Value, path string) (any, bool, error) {
	type entry struct {
		key string
		val reflect.Value
	}

	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key())
		if err != nil {
			return nil, false, fmt.Errorf("%w: %s: %v", ErrUnsupportedValue, path, err)
		}
		entries = append(entries, entry{key: key, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	obj := orderedmap.New[string, any](len(entries))
	sources := make(map[string]string, len(entries))
	for _, e := range entries {
		key := CamelKey(e.key)
		if err := claimKey(sources, key, e.key, path); err != nil {
			return nil, false, err
		}
		node, keep, err := w.walk(e.val, path+"."+e.key)
		if err != nil {
			return nil, false, err
		}
		if keep {
			obj.Set(key, node)
		}
	}
	return obj, true, nil
}

func (w *walker) walkStruct(v reflect.Value, path string) (any, bool, error) {
	obj := orderedmap.New[string, any]()
	if err := w.collectFields(v, path, obj, directFieldNames(v.Type())); err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// collectFields adds the exported fields of v to obj. Fields of untagged
// embedded structs are promoted unless shadowed by a field of the outer struct.
func (w *walker) collectFields(v reflect.Value, path string, obj *orderedmap.OrderedMap[string, any], shadow map[string]bool) error {
	t := v.Type()
	sources := make(map[string]string, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		name, opts, skip := fieldName(sf)
		if skip {
			continue
		}
		fv := v.Field(i)

		if sf.Anonymous && name == "" {
			promoted, err := w.promote(fv, path, obj, shadow)
			if err != nil {
				return err
			}
			if promoted {
				continue
			}
			name = sf.Name
		}
		if name == "" {
			name = sf.Name
		}
		if opts.omitEmpty && isEmptyValue(fv) {
			continue
		}
		key := CamelKey(name)
		if err := claimKey(sources, key, name, path); err != nil {
			return err
		}

		node, keep, err := w.walk(fv, path+"."+name)
		if err != nil {
			return err
		}
		if keep {
			obj.Set(key, node)
		}
	}
	return nil
}

// promote inlines an embedded struct (or non-nil pointer to one) into obj.
// Returns false if fv is not a struct and should be encoded as a named field.
func (w *walker) promote(fv reflect.Value, path string, obj *orderedmap.OrderedMap[string, any], shadow map[string]bool) (bool, error) {
	switch {
	case fv.Kind() == reflect.Struct:
		return true, w.collectEmbedded(fv, path, obj, shadow)
	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
		if fv.IsNil() {
			return true, nil
		}
		k := visit{ptr: fv.Pointer(), typ: fv.Type()}
		if !w.enter(k) {
			return true, nil
		}
		defer w.leave(k)
		return true, w.collectEmbedded(fv.Elem(), path, obj, shadow)
	}
	return false, nil
}

func (w *walker) collectEmbedded(v reflect.Value, path string, obj *orderedmap.OrderedMap[string, any], shadow map[string]bool) error {
	inner := orderedmap.New[string, any]()
	if err := w.collectFields(v, path, inner, directFieldNames(v.Type())); err != nil {
		return err
	}
	for pair := inner.Oldest(); pair != nil; pair = pair.Next() {
		if shadow[pair.Key] {
			continue
		}
		if _, exists := obj.Get(pair.Key); exists {
			continue
		}
		obj.Set(pair.Key, pair.Value)
	}
	return nil
}

// claimKey records that source produces key in the object at path. Two
// source keys producing the same key would lose one value, so that fails.
func claimKey(sources map[string]string, key, source, path string) error {
	if prev, taken := sources[key]; taken {
		return fmt.Errorf("%w: %s: keys %q and %q both become %q", ErrUnsupportedValue, path, prev, source, key)
	}
	sources[key] = source
	return nil
}

// directFieldNames returns the camelCase names of t's non-embedded fields.
func directFieldNames(t reflect.Type) map[string]bool {
	names := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		name, _, skip := fieldName(sf)
		if skip || (sf.Anonymous && name == "") {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		names[CamelKey(name)] = true
	}
	return names
}

type tagOptions struct {
	omitEmpty bool
}

// fieldName returns the json tag name (possibly empty), its options, and
// whether the field is skipped entirely. Unexported fields, embedded or not,
// are skipped.
func fieldName(sf reflect.StructField) (string, tagOptions, bool) {
	if !sf.IsExported() {
		return "", tagOptions{}, true
	}
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", tagOptions{}, true
	}
	name, rest, _ := strings.Cut(tag, ",")
	opts := tagOptions{}
	for _, o := range strings.Split(rest, ",") {
		if o == "omitempty" || o == "omitzero" {
			opts.omitEmpty = true
		}
	}
	return name, opts, false
}

// mapKey renders a map key the way encoding/json does.
func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.CanInterface() && k.Type().Implements(textMarshalerType) {
		b, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		return string(b), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("unsupported map key type %s", k.Type())
}

// isEmptyValue mirrors encoding/json's omitempty test.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
