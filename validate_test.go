package sheetform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AllFieldsPresent(t *testing.T) {
	store := newMemStore().put("formA", fakeTemplate(t, fakeFieldDef{Name: "fieldX"}, fakeFieldDef{Name: "fieldY"}))
	reg := NewRegistry(MustMappingTable("formA", map[string]string{"Name": "fieldX"}))
	f := newTestFiller(store, WithRegistry(reg))

	issues, err := f.Validate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidate_MissingField(t *testing.T) {
	store := newMemStore().put("formA", fakeTemplate(t, fakeFieldDef{Name: "fieldX"}))
	reg := NewRegistry(MustMappingTable("formA", map[string]string{"Name": "fieldX", "Age": "fieldAge"}))
	f := newTestFiller(store, WithRegistry(reg))

	issues, err := f.Validate(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "formA", issues[0].Template)
	assert.Equal(t, "fieldAge", issues[0].Field)
	assert.Equal(t, `[WARN] formA (fieldAge): mapped from ["Age"] but the template has no such field`, issues[0].String())
}

func TestValidate_MissingTemplate(t *testing.T) {
	reg := NewRegistry(
		MustMappingTable("formA", map[string]string{"Name": "fieldX"}),
		MustMappingTable("formB", map[string]string{"City": "fieldC"}),
	)
	store := newMemStore().put("formB", []byte("not json"))
	f := newTestFiller(store, WithRegistry(reg))

	issues, err := f.Validate(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Equal(t, "formA", issues[0].Template)
	assert.Contains(t, issues[0].String(), "[ERROR] formA: TEMPLATE_NOT_FOUND")

	assert.Equal(t, "formB", issues[1].Template)
	assert.Contains(t, issues[1].Message, "TEMPLATE_PARSE_ERROR")
}

func TestValidate_NoStore(t *testing.T) {
	f := NewFiller(WithModel(&fakeModel{}))
	_, err := f.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no template store")
}
