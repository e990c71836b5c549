package sqsredrive

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// MessageAttributeValue is a typed message attribute. Exactly one of the value fields is
// expected to be set, matching DataType.
type MessageAttributeValue struct {
	DataType         string   `json:"dataType"`
	StringValue      *string  `json:"stringValue,omitempty"`
	BinaryValue      []byte   `json:"binaryValue,omitempty"`
	StringListValues []string `json:"stringListValues,omitempty"`
	BinaryListValues [][]byte `json:"binaryListValues,omitempty"`
}

// MessageSnapshot is a view of one message as it was when it was received.
// ReceiptHandle is only valid until the visibility timeout of that receive expires,
// or until the message is received again.
type MessageSnapshot struct {
	ID               string                           `json:"messageId"`
	Body             string                           `json:"body"`
	ReceiptHandle    string                           `json:"receiptHandle"`
	Attributes       map[string]MessageAttributeValue `json:"messageAttributes,omitempty"`
	SystemAttributes map[string]string                `json:"attributes,omitempty"`
	MD5OfBody        string                           `json:"md5OfBody,omitempty"`
}

func newMessageSnapshot(m types.Message) MessageSnapshot {
	return MessageSnapshot{
		ID:               aws.ToString(m.MessageId),
		Body:             aws.ToString(m.Body),
		ReceiptHandle:    aws.ToString(m.ReceiptHandle),
		Attributes:       fromSQSAttributes(m.MessageAttributes),
		SystemAttributes: m.Attributes,
		MD5OfBody:        aws.ToString(m.MD5OfBody),
	}
}

func fromSQSAttributes(in map[string]types.MessageAttributeValue) map[string]MessageAttributeValue {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]MessageAttributeValue, len(in))
	for name, v := range in {
		out[name] = MessageAttributeValue{
			DataType:         aws.ToString(v.DataType),
			StringValue:      v.StringValue,
			BinaryValue:      v.BinaryValue,
			StringListValues: v.StringListValues,
			BinaryListValues: v.BinaryListValues,
		}
	}
	return out
}

func toSQSAttributes(in map[string]MessageAttributeValue) map[string]types.MessageAttributeValue {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(in))
	for name, v := range in {
		out[name] = types.MessageAttributeValue{
			DataType:         aws.String(v.DataType),
			StringValue:      v.StringValue,
			BinaryValue:      v.BinaryValue,
			StringListValues: v.StringListValues,
			BinaryListValues: v.BinaryListValues,
		}
	}
	return out
}
