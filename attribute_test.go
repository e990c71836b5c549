package sqsredrive

import (
	"reflect"
	"testing"
)

func TestConvertAttributes(t *testing.T) {
	v := "value"
	tests := []struct {
		name string
		in   map[string]any
		want map[string]MessageAttributeValue
	}{
		{
			name: "nil",
			in:   nil,
			want: map[string]MessageAttributeValue{},
		},
		{
			name: "string attribute",
			in: map[string]any{
				"key": map[string]any{"dataType": "String", "stringValue": "value"},
			},
			want: map[string]MessageAttributeValue{
				"key": {DataType: "String", StringValue: &v},
			},
		},
		{
			name: "missing string value is dropped",
			in: map[string]any{
				"key": map[string]any{"dataType": "Binary", "binaryValue": "AAE="},
			},
			want: map[string]MessageAttributeValue{},
		},
		{
			name: "non-string fields are dropped",
			in: map[string]any{
				"a": map[string]any{"dataType": 1, "stringValue": "value"},
				"b": map[string]any{"dataType": "Number", "stringValue": 3.0},
				"c": []any{"x"},
			},
			want: map[string]MessageAttributeValue{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertAttributes(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ConvertAttributes() = %v, want %v", got, tt.want)
			}
		})
	}
}
