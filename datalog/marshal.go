package datalog

import (
	"reflect"
	"time"
)

// Columns are derived from exported struct fields by kind. Fields named Id and
// fields of unsupported kinds are skipped. time.Time is stored as unix
// nanoseconds; other structs are stored through their String method.

type sqliteMarshal struct {
	FieldType string
	Marshal   func(v reflect.Value) interface{}
}

func boolMarshal(v reflect.Value) interface{} {
	if v.Bool() {
		return int64(1)
	}
	return int64(0)
}

func intMarshal(v reflect.Value) interface{} {
	return v.Int()
}

func uintMarshal(v reflect.Value) interface{} {
	return int64(v.Uint())
}

func floatMarshal(v reflect.Value) interface{} {
	return v.Float()
}

func stringMarshal(v reflect.Value) interface{} {
	return v.String()
}

func timeMarshal(v reflect.Value) interface{} {
	t := v.Interface().(time.Time)
	if t.IsZero() {
		return int64(0)
	}
	return t.UnixNano()
}

func structCanBeMarshalled(v reflect.Value) bool {
	_, ok := v.Interface().(interface{ String() string })
	return ok
}

func structMarshal(v reflect.Value) interface{} {
	if s, ok := v.Interface().(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

var sqliteMarshalFunctions = map[string]sqliteMarshal{
	"bool":   {FieldType: "INTEGER", Marshal: boolMarshal},
	"int":    {FieldType: "INTEGER", Marshal: intMarshal},
	"uint":   {FieldType: "INTEGER", Marshal: uintMarshal},
	"float":  {FieldType: "REAL", Marshal: floatMarshal},
	"string": {FieldType: "TEXT", Marshal: stringMarshal},
	"time":   {FieldType: "INTEGER", Marshal: timeMarshal},
	"struct": {FieldType: "TEXT", Marshal: structMarshal},
}

var sqlTypeMap = map[reflect.Kind]string{
	reflect.Bool:    "bool",
	reflect.Int:     "int",
	reflect.Int8:    "int",
	reflect.Int16:   "int",
	reflect.Int32:   "int",
	reflect.Int64:   "int",
	reflect.Uint:    "uint",
	reflect.Uint8:   "uint",
	reflect.Uint16:  "uint",
	reflect.Uint32:  "uint",
	reflect.Uint64:  "uint",
	reflect.Float32: "float",
	reflect.Float64: "float",
	reflect.String:  "string",
	reflect.Struct:  "struct",
}

var timeType = reflect.TypeOf(time.Time{})

type column struct {
	name  string
	index []int
	m     sqliteMarshal
}

// columnsOf walks t's fields, descending into embedded structs.
func columnsOf(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" || f.Name == "Id" {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Type != timeType {
			for _, c := range columnsOf(f.Type) {
				c.index = append([]int{i}, c.index...)
				cols = append(cols, c)
			}
			continue
		}
		alias, ok := sqlTypeMap[f.Type.Kind()]
		if !ok {
			continue
		}
		if f.Type == timeType {
			alias = "time"
		} else if alias == "struct" && !structCanBeMarshalled(reflect.Zero(f.Type)) {
			continue
		}
		cols = append(cols, column{name: f.Name, index: []int{i}, m: sqliteMarshalFunctions[alias]})
	}
	return cols
}
