package sqsredrive

// ConvertAttributes rebuilds message attributes that crossed a serialization boundary as
// generic maps, e.g. {"dataType": "String", "stringValue": "v"}.
// An entry is kept only when both dataType and stringValue are present as strings;
// anything else is dropped without error.
func ConvertAttributes(in map[string]any) map[string]MessageAttributeValue {
	out := make(map[string]MessageAttributeValue)
	for name, raw := range in {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		dataType, ok := fields["dataType"].(string)
		if !ok {
			continue
		}
		stringValue, ok := fields["stringValue"].(string)
		if !ok {
			continue
		}
		out[name] = MessageAttributeValue{
			DataType:    dataType,
			StringValue: &stringValue,
		}
	}
	return out
}
