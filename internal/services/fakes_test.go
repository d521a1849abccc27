package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

type fakeCommandTag struct {
	rowsAffected int64
}

func (f fakeCommandTag) RowsAffected() int64 { return f.rowsAffected }

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (f fakeRow) Scan(dest ...any) error { return f.scanFunc(dest...) }

func assignValues(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(values), len(dest))
	}
	for i, value := range values {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Ptr || dv.IsNil() {
			return errors.New("scan: destination must be a non-nil pointer")
		}
		if value == nil {
			dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
			continue
		}
		vv := reflect.ValueOf(value)
		switch {
		case vv.Type().AssignableTo(dv.Elem().Type()):
			dv.Elem().Set(vv)
		case vv.Type().ConvertibleTo(dv.Elem().Type()):
			dv.Elem().Set(vv.Convert(dv.Elem().Type()))
		default:
			return fmt.Errorf("scan: cannot assign %T to %s", value, dv.Elem().Type())
		}
	}
	return nil
}

func rowFromValues(values ...any) Row {
	return fakeRow{scanFunc: func(dest ...any) error {
		return assignValues(dest, values)
	}}
}

type fakeRows struct {
	rows   [][]any
	idx    int
	err    error
	closed bool
}

func (f *fakeRows) Next() bool {
	if f.idx >= len(f.rows) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	return assignValues(dest, f.rows[f.idx-1])
}

func (f *fakeRows) Close() { f.closed = true }

func (f *fakeRows) Err() error { return f.err }

type fakeDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc != nil {
		return f.ExecFunc(ctx, sql, args...)
	}
	return fakeCommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, sql, args...)
	}
	return &fakeRows{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(ctx, sql, args...)
	}
	return fakeRow{scanFunc: func(dest ...any) error { return errors.New("unexpected QueryRow") }}
}

type fakeRedis struct {
	values  map[string]map[string]string
	getErr  error
	setErr  error
	setNXes []string
}

func (f *fakeRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.values[key], nil
}

func (f *fakeRedis) HSetNX(ctx context.Context, key, field string, value any) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if f.values == nil {
		f.values = map[string]map[string]string{}
	}
	if f.values[key] == nil {
		f.values[key] = map[string]string{}
	}
	f.setNXes = append(f.setNXes, field)
	if _, ok := f.values[key][field]; ok {
		return false, nil
	}
	f.values[key][field] = fmt.Sprint(value)
	return true, nil
}
