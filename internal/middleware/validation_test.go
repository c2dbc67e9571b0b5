package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	ID          string   `json:"id" validate:"required,uuid"`
	Title       *string  `json:"title" validate:"omitnil,min=1"`
	UnitCount   *int     `json:"unitCount" validate:"omitnil,gte=0"`
	CategoryIDs []string `json:"categoryIds" validate:"omitempty,dive,uuid"`
}

func decodeMap(t *testing.T, body map[string]interface{}) error {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("PATCH", "/products", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	var v testRequest
	return DecodeAndValidate(req, &v)
}

// Negative unit counts are rejected, all others accepted
func TestProperty_UnitCountBound(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("unitCount must not be negative", prop.ForAll(
		func(units int) bool {
			err := decodeMap(t, map[string]interface{}{
				"id":        "6f1c1d7e-9d0b-4c1e-8a53-2a8f7a0d3c11",
				"unitCount": units,
			})
			if units < 0 {
				return err != nil
			}
			return err == nil
		},
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestValidationErrorsUseJSONNames(t *testing.T) {
	err := decodeMap(t, map[string]interface{}{
		"id":          "not-a-uuid",
		"title":       "",
		"categoryIds": []string{"6f1c1d7e-9d0b-4c1e-8a53-2a8f7a0d3c11", "nope"},
	})
	require.Error(t, err)

	fields := map[string]string{}
	for _, e := range FormatValidationErrors(err) {
		fields[e.Field] = e.Message
	}

	assert.Equal(t, "Must be a valid UUID", fields["id"])
	assert.Equal(t, "Value is too short", fields["title"])
	assert.Equal(t, "Must be a valid UUID", fields["categoryIds[1]"])
	assert.NotContains(t, fields, "categoryIds[0]")
}

func TestMissingIDIsRequired(t *testing.T) {
	err := decodeMap(t, map[string]interface{}{"title": "Mug"})

	formatted := FormatValidationErrors(err)
	require.Len(t, formatted, 1)
	assert.Equal(t, ValidationError{Field: "id", Message: "This field is required"}, formatted[0])
}

func TestFormatValidationErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, FormatValidationErrors(errors.New("unexpected EOF")))
}
