package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zainbaq/medical-ml/errors"
	"github.com/zainbaq/medical-ml/registry"
)

//go:embed service_record.schema.json
var serviceRecordSchemaJSON []byte

const rootContext = "(root)"

// serviceRecordSchema is compiled once; the embedded document is static
var serviceRecordSchema = mustCompileSchema(serviceRecordSchemaJSON)

func mustCompileSchema(doc []byte) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		panic("api: invalid service record schema: " + err.Error())
	}
	return schema
}

// decodeRecord validates a registration body and decodes it. Every
// offending field is reported in one *errors.ValidationError.
func decodeRecord(body []byte) (registry.ServiceRecord, error) {
	var rec registry.ServiceRecord

	if len(bytes.TrimSpace(body)) == 0 || !json.Valid(body) {
		return rec, &errors.ValidationError{Issues: []errors.FieldIssue{{
			Message: "JSON decode error",
			Type:    "json_invalid",
		}}}
	}

	result, err := serviceRecordSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return rec, errors.WrapInvalid(err, "api", "decodeRecord", "validate body")
	}
	if !result.Valid() {
		return rec, &errors.ValidationError{Issues: schemaIssues(result.Errors())}
	}

	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, &errors.ValidationError{Issues: []errors.FieldIssue{decodeIssue(err)}}
	}
	return rec, nil
}

// decodeIssue reports values the schema accepts but Go cannot hold, such as
// 8000.0 for an integer field.
func decodeIssue(err error) errors.FieldIssue {
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) && typeErr.Field != "" {
		expected := jsonType(typeErr.Type)
		return errors.FieldIssue{
			Field:   typeErr.Field,
			Message: "Input should be a valid " + expectedName(expected),
			Type:    expectedType(expected),
		}
	}
	return errors.FieldIssue{Message: "Invalid request body", Type: "value_error"}
}

// jsonType names the JSON Schema type that decodes into t
func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.String:
		return "string"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return t.Kind().String()
	}
}

func schemaIssues(results []gojsonschema.ResultError) []errors.FieldIssue {
	issues := make([]errors.FieldIssue, 0, len(results))
	for _, re := range results {
		field := re.Field()
		if field == rootContext {
			field = ""
		}

		switch re.Type() {
		case "required":
			property, _ := re.Details()["property"].(string)
			issues = append(issues, errors.FieldIssue{
				Field:   joinField(field, property),
				Message: "Field required",
				Type:    "missing",
			})
		case "invalid_type":
			expected, _ := re.Details()["expected"].(string)
			issues = append(issues, errors.FieldIssue{
				Field:   field,
				Message: "Input should be a valid " + expectedName(expected),
				Type:    expectedType(expected),
			})
		default:
			issues = append(issues, errors.FieldIssue{
				Field:   field,
				Message: re.Description(),
				Type:    re.Type(),
			})
		}
	}
	return issues
}

func joinField(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// expectedTypes splits gojsonschema's "[object,null]" list form
func expectedTypes(expected string) []string {
	return strings.Split(strings.Trim(expected, "[]"), ",")
}

func expectedName(expected string) string {
	names := expectedTypes(expected)
	for i, n := range names {
		switch n {
		case "object":
			names[i] = "dictionary"
		case "array":
			names[i] = "list"
		}
	}
	return strings.Join(names, " or ")
}

func expectedType(expected string) string {
	switch expectedTypes(expected)[0] {
	case "string":
		return "string_type"
	case "integer":
		return "int_type"
	case "object":
		return "dict_type"
	case "array":
		return "list_type"
	default:
		return "type_error"
	}
}

// fieldLoc converts a dotted field path into a location under "body";
// numeric segments become array indexes.
func fieldLoc(field string) []any {
	loc := []any{"body"}
	if field == "" {
		return loc
	}
	for _, part := range strings.Split(field, ".") {
		if i, err := strconv.Atoi(part); err == nil {
			loc = append(loc, i)
			continue
		}
		loc = append(loc, part)
	}
	return loc
}
