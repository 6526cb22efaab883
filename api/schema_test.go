package api

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainbaq/medical-ml/errors"
)

func TestDecodeRecord(t *testing.T) {
	rec, err := decodeRecord(mustJSON(t, registration("breast_cancer", "cancer")))
	require.NoError(t, err)

	assert.Equal(t, "breast_cancer", rec.ServiceID)
	assert.Equal(t, 8000, rec.Port)
	assert.Equal(t, "/api/v1/predict", rec.Endpoints["predict"])
	assert.JSONEq(t, `{"type":"object"}`, string(rec.OutputSchema))
}

func TestDecodeRecord_NullCapabilitiesAndHeartbeat(t *testing.T) {
	reg := registration("svc")
	reg["capabilities"] = nil
	reg["last_heartbeat"] = nil

	_, err := decodeRecord(mustJSON(t, reg))
	assert.NoError(t, err)
}

func TestDecodeRecord_Issues(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		typ   string
	}{
		{"not json", `{"service_id":`, "", "json_invalid"},
		{"array body", `[]`, "", "dict_type"},
		{"schema not object", `{"service_id":"a","service_name":"a","version":"1","base_url":"u","port":1,"endpoints":{},"input_schema":[],"output_schema":{}}`, "input_schema", "dict_type"},
		{"port float", `{"service_id":"a","service_name":"a","version":"1","base_url":"u","port":1.5,"endpoints":{},"input_schema":{},"output_schema":{}}`, "port", "int_type"},
		{"port whole float", `{"service_id":"a","service_name":"a","version":"1","base_url":"u","port":8000.0,"endpoints":{},"input_schema":{},"output_schema":{}}`, "port", "int_type"},
		{"port exponent", `{"service_id":"a","service_name":"a","version":"1","base_url":"u","port":8e3,"endpoints":{},"input_schema":{},"output_schema":{}}`, "port", "int_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeRecord([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))

			var ve *errors.ValidationError
			require.True(t, stderrors.As(err, &ve))
			require.Len(t, ve.Issues, 1)
			assert.Equal(t, tt.field, ve.Issues[0].Field)
			assert.Equal(t, tt.typ, ve.Issues[0].Type)
		})
	}
}

func TestDecodeRecord_WholeFloatPortMessage(t *testing.T) {
	_, err := decodeRecord([]byte(`{"service_id":"a","service_name":"a","version":"1","base_url":"u","port":8000.0,"endpoints":{},"input_schema":{},"output_schema":{}}`))

	var ve *errors.ValidationError
	require.True(t, stderrors.As(err, &ve))
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, "Input should be a valid integer", ve.Issues[0].Message)
	assert.Equal(t, []any{"body", "port"}, fieldLoc(ve.Issues[0].Field))
}

func TestExpectedName(t *testing.T) {
	assert.Equal(t, "dictionary or null", expectedName("[object,null]"))
	assert.Equal(t, "integer", expectedName("integer"))
	assert.Equal(t, "list", expectedName("array"))
}
