package graph

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// completeIntrospection renders the values of gqlgen's introspection
// package. They expose most of their data through methods rather than
// json tags, so members are looked up by reflection: a schema field name
// maps to the method or exported field with the same name capitalised.
func (ec *executionContext) completeIntrospection(f *ast.Field, value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := ec.introspect(&buf, f.Definition.Type, f.SelectionSet, reflect.ValueOf(value)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errIntrospection, f.Name, err)
	}
	return buf.Bytes(), nil
}

func (ec *executionContext) introspect(buf *bytes.Buffer, typ *ast.Type, set ast.SelectionSet, v reflect.Value) error {
	if isNilValue(v) {
		switch {
		case typ.Elem != nil && typ.NonNull && v.IsValid() && v.Kind() == reflect.Slice:
			buf.WriteString("[]")
		case typ.NonNull:
			return fmt.Errorf("null value for non-null type %s", typ.String())
		default:
			buf.WriteString("null")
		}
		return nil
	}

	if typ.Elem != nil {
		list := indirect(v)
		if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
			return fmt.Errorf("expected list for %s, got %s", typ.String(), list.Type())
		}
		buf.WriteByte('[')
		for i := range list.Len() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := ec.introspect(buf, typ.Elem, set, list.Index(i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}

	def := parsedSchema.Types[typ.NamedType]
	if def == nil || def.Kind != ast.Object {
		buf.Write(mustJSON(indirect(v).Interface()))
		return nil
	}

	obj := addressable(v)
	out := newObjectWriter()
	for _, f := range ec.collectFields(set, def.Name) {
		if f.Name == "__typename" {
			out.field(f.Alias, mustJSON(def.Name))
			continue
		}
		member, err := ec.member(obj, f)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		var child bytes.Buffer
		if err := ec.introspect(&child, f.Definition.Type, f.SelectionSet, member); err != nil {
			return fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		out.field(f.Alias, child.Bytes())
	}
	buf.Write(out.bytes())
	return nil
}

// member returns the value of field f on obj, a pointer to a struct.
// Boolean method parameters receive the includeDeprecated argument, the
// only argument the introspection types take. A missing member yields the
// zero Value, which renders as null.
func (ec *executionContext) member(obj reflect.Value, f *ast.Field) (reflect.Value, error) {
	name := strings.ToUpper(f.Name[:1]) + f.Name[1:]

	if m := obj.MethodByName(name); m.IsValid() {
		mt := m.Type()
		args := f.ArgumentMap(ec.variables)
		in := make([]reflect.Value, mt.NumIn())
		for i := range in {
			pt := mt.In(i)
			if pt.Kind() != reflect.Bool {
				return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", pt)
			}
			in[i] = reflect.ValueOf(argBool(args, "includeDeprecated")).Convert(pt)
		}
		out := m.Call(in)
		if len(out) != 1 {
			return reflect.Value{}, fmt.Errorf("method %s returns %d values", name, len(out))
		}
		return out[0], nil
	}

	if field := obj.Elem().FieldByName(name); field.IsValid() && field.CanInterface() {
		return field, nil
	}
	return reflect.Value{}, nil
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v
}

// addressable returns a pointer to the struct held by v so that pointer
// receiver methods are reachable.
func addressable(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer {
		return v
	}
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}
