package avanza

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	errMissingField = errors.New("required field is missing")
	errWrongType    = errors.New("unexpected JSON type")
)

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// Timestamps come back in several shapes depending on the endpoint.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// object is a loosely parsed JSON object. Fields are lifted one by one; the
// first failure is kept in the shared error slot and every later lift becomes
// a no-op returning the zero value, so decoders read straight through and
// check err once at the end.
type object struct {
	path   string
	fields map[string]json.RawMessage
	err    *error
}

func parseObject(data []byte) (*object, error) {
	var err error
	o := newObject("", json.RawMessage(bytes.TrimSpace(data)), &err)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// parseArray parses a top level JSON array of objects.
func parseArray(data []byte) ([]*object, error) {
	var err error
	root := &object{err: &err}
	items := root.elements("", json.RawMessage(bytes.TrimSpace(data)))
	if err != nil {
		return nil, err
	}
	return items, nil
}

func newObject(path string, raw json.RawMessage, errp *error) *object {
	o := &object{path: path, err: errp}
	if kind(raw) != '{' {
		o.fail(path, raw, errWrongType)
		return o
	}
	if err := json.Unmarshal(raw, &o.fields); err != nil {
		o.fail(path, raw, err)
	}
	return o
}

func (o *object) Err() error { return *o.err }

func (o *object) fail(field string, raw json.RawMessage, err error) {
	if *o.err != nil {
		return
	}
	if field == "" {
		field = "$"
	}
	*o.err = &DecodeError{Field: field, Raw: string(raw), Err: err}
}

func (o *object) fieldPath(name string) string {
	if o.path == "" {
		return name
	}
	return o.path + "." + name
}

// lookup returns the raw value and whether it is present and non-null.
// A missing required field records an error.
func (o *object) lookup(name string, required bool) (json.RawMessage, bool) {
	if *o.err != nil {
		return nil, false
	}
	raw, ok := o.fields[name]
	if !ok || kind(raw) == 'n' {
		if required {
			o.fail(o.fieldPath(name), raw, errMissingField)
		}
		return nil, false
	}
	return raw, true
}

// kind classifies a raw JSON value by its first byte: '"', '{', '[', 't'
// (bool), 'n' (null) or '0' (number). Zero means empty.
func kind(raw json.RawMessage) byte {
	if len(raw) == 0 {
		return 0
	}
	switch c := raw[0]; c {
	case '"', '{', '[', 'n':
		return c
	case 't', 'f':
		return 't'
	default:
		return '0'
	}
}

func (o *object) str(name string, required bool) *string {
	raw, ok := o.lookup(name, required)
	if !ok {
		return nil
	}
	if kind(raw) != '"' {
		o.fail(o.fieldPath(name), raw, errWrongType)
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		o.fail(o.fieldPath(name), raw, err)
		return nil
	}
	return &s
}

func (o *object) String(name string) string {
	if s := o.str(name, true); s != nil {
		return *s
	}
	return ""
}

func (o *object) OptString(name string) *string { return o.str(name, false) }

// id lifts an identifier the server sends either as a string or a number.
func (o *object) id(name string, required bool) *string {
	raw, ok := o.lookup(name, required)
	if !ok {
		return nil
	}
	switch kind(raw) {
	case '"':
		return o.str(name, required)
	case '0':
		s := string(raw)
		return &s
	}
	o.fail(o.fieldPath(name), raw, errWrongType)
	return nil
}

func (o *object) ID(name string) string {
	if s := o.id(name, true); s != nil {
		return *s
	}
	return ""
}

func (o *object) OptID(name string) *string { return o.id(name, false) }

func (o *object) dec(name string, required bool) *decimal.Decimal {
	raw, ok := o.lookup(name, required)
	if !ok {
		return nil
	}
	if kind(raw) != '0' {
		o.fail(o.fieldPath(name), raw, errWrongType)
		return nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		o.fail(o.fieldPath(name), raw, err)
		return nil
	}
	return &d
}

func (o *object) Decimal(name string) decimal.Decimal {
	if d := o.dec(name, true); d != nil {
		return *d
	}
	return decimal.Zero
}

func (o *object) OptDecimal(name string) *decimal.Decimal { return o.dec(name, false) }

func (o *object) integer(name string, required bool) *int64 {
	d := o.dec(name, required)
	if d == nil {
		return nil
	}
	if !d.IsInteger() {
		o.fail(o.fieldPath(name), json.RawMessage(d.String()), fmt.Errorf("%w: not an integer", errWrongType))
		return nil
	}
	if d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		o.fail(o.fieldPath(name), json.RawMessage(d.String()), fmt.Errorf("%w: integer out of range", errWrongType))
		return nil
	}
	n := d.IntPart()
	return &n
}

func (o *object) Int(name string) int64 {
	if n := o.integer(name, true); n != nil {
		return *n
	}
	return 0
}

func (o *object) OptInt(name string) *int64 { return o.integer(name, false) }

func (o *object) OptBool(name string) *bool {
	raw, ok := o.lookup(name, false)
	if !ok {
		return nil
	}
	if kind(raw) != 't' {
		o.fail(o.fieldPath(name), raw, errWrongType)
		return nil
	}
	b := raw[0] == 't'
	return &b
}

func (o *object) OptTime(name string) *time.Time {
	s := o.str(name, false)
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	o.fail(o.fieldPath(name), o.fields[name], errors.New("unrecognised time format"))
	return nil
}

// Strings lifts an optional array of strings (or numeric ids).
func (o *object) Strings(name string) []string {
	raw, ok := o.lookup(name, false)
	if !ok {
		return nil
	}
	if kind(raw) != '[' {
		o.fail(o.fieldPath(name), raw, errWrongType)
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		o.fail(o.fieldPath(name), raw, err)
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		switch kind(item) {
		case '"':
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				o.fail(fmt.Sprintf("%s[%d]", o.fieldPath(name), i), item, err)
				return nil
			}
			out = append(out, s)
		case '0':
			out = append(out, string(item))
		default:
			o.fail(fmt.Sprintf("%s[%d]", o.fieldPath(name), i), item, errWrongType)
			return nil
		}
	}
	return out
}

// Object lifts a nested object. Absent optional objects return nil.
func (o *object) Object(name string, required bool) *object {
	raw, ok := o.lookup(name, required)
	if !ok {
		return nil
	}
	child := newObject(o.fieldPath(name), raw, o.err)
	if *o.err != nil {
		return nil
	}
	return child
}

// Objects lifts an array of objects. Absent optional arrays return nil.
func (o *object) Objects(name string, required bool) []*object {
	raw, ok := o.lookup(name, required)
	if !ok {
		return nil
	}
	return o.elements(o.fieldPath(name), raw)
}

func (o *object) elements(path string, raw json.RawMessage) []*object {
	if kind(raw) != '[' {
		o.fail(path, raw, errWrongType)
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		o.fail(path, raw, err)
		return nil
	}
	out := make([]*object, 0, len(items))
	for i, item := range items {
		child := newObject(fmt.Sprintf("%s[%d]", path, i), item, o.err)
		if *o.err != nil {
			return nil
		}
		out = append(out, child)
	}
	return out
}
