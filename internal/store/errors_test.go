package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassOf(t *testing.T) {
	base := errors.New("relation does not exist")
	schema := &Error{Class: SchemaMissing, Code: "42P01", Resource: TableVisits, Err: base}
	routine := &Error{Class: RoutineMissing, Code: "42883", Resource: RoutineGroups, Err: base}

	assert.Equal(t, SchemaMissing, ClassOf(schema))
	assert.Equal(t, SchemaMissing, ClassOf(fmt.Errorf("upsert: %w", schema)))
	assert.Equal(t, RoutineMissing, ClassOf(routine))
	assert.Equal(t, Other, ClassOf(base), "message text alone never classifies")
	assert.Equal(t, Other, ClassOf(context.DeadlineExceeded))
	assert.Equal(t, Other, ClassOf(nil))

	assert.True(t, IsMissing(schema))
	assert.True(t, IsMissing(routine))
	assert.False(t, IsMissing(&Error{Class: Other, Code: "42501", Err: base}))
	assert.ErrorIs(t, schema, base)
}

func TestError_Message(t *testing.T) {
	err := &Error{Class: SchemaMissing, Code: "42P01", Resource: TableEdges, Err: errors.New("boom")}
	assert.Equal(t, "crossed_paths: schema_missing (42P01): boom", err.Error())
	err.Code = ""
	assert.Equal(t, "crossed_paths: schema_missing: boom", err.Error())
}
