package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DataType 记录写入时值的逻辑类型，读取方据此还原原始值。
type DataType string

const (
	DataTypeBuffer  DataType = "buffer"
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeObject  DataType = "object"
)

// Structured reports whether the payload is JSON-encoded.
func (t DataType) Structured() bool {
	return t != DataTypeBuffer && t != DataTypeString
}

// Value 是写入缓存的值：原始字节、文本或结构化 JSON 三选一。
// 零值无效，Set 会返回 ErrInvalidArgument。
type Value struct {
	dataType DataType
	data     []byte
}

// Bytes 包装原始字节，读取时 DataType 为 buffer。
func Bytes(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{dataType: DataTypeBuffer, data: b}
}

// Text 包装字符串，读取时 DataType 为 string。
func Text(s string) Value {
	return Value{dataType: DataTypeString, data: []byte(s)}
}

// JSON 将任意可序列化的值编码为结构化 Value。
// 与键的规范化一致关闭 HTML 转义，输出与 JSON.stringify 相同。
func JSON(v any) (Value, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return Value{}, fmt.Errorf("%w: encode value: %v", ErrInvalidArgument, err)
	}
	return RawJSON(buf.Bytes())
}

// RawJSON 直接使用已编码的 JSON 文本，类型标签按 JSON 值推断。
func RawJSON(raw []byte) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return Value{}, fmt.Errorf("%w: invalid json value", ErrInvalidArgument)
	}
	if bytes.Equal(raw, []byte("null")) {
		return Value{}, fmt.Errorf("%w: null value", ErrInvalidArgument)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return Text(s), nil
	}
	return Value{dataType: jsonTypeOf(raw), data: append([]byte(nil), raw...)}, nil
}

// jsonTypeOf 按首字符推断 JSON 值的类型标签（与 JS typeof 一致，数组归为 object）。
func jsonTypeOf(raw []byte) DataType {
	switch raw[0] {
	case 't', 'f':
		return DataTypeBoolean
	case '{', '[', 'n':
		return DataTypeObject
	default:
		return DataTypeNumber
	}
}

// DataType 返回值的类型标签。
func (v Value) DataType() DataType { return v.dataType }

// Payload 返回写入磁盘的字节。
func (v Value) Payload() []byte { return v.data }

// IsZero reports whether v was never initialised.
func (v Value) IsZero() bool { return v.dataType == "" }

// Entry 是一次命中的结果，携带数据与缓存元信息。
type Entry struct {
	Key      string
	DataType DataType
	Data     []byte
	// TTL 为 0 表示永不过期。
	TTL time.Duration
	// Expires 为 UNIX 秒，0 表示永不过期。
	Expires int64
}

// Permanent reports whether the entry never expires.
func (e *Entry) Permanent() bool {
	return e.Expires == 0
}

// ExpiresAt 返回过期时间，永不过期时返回零值。
func (e *Entry) ExpiresAt() time.Time {
	if e.Expires == 0 {
		return time.Time{}
	}
	return time.Unix(e.Expires, 0)
}

// Bytes 返回原始数据。
func (e *Entry) Bytes() []byte {
	return e.Data
}

// Text 以字符串形式返回数据，结构化数据返回其 JSON 文本。
func (e *Entry) Text() string {
	return string(e.Data)
}

// Decode 将结构化数据反序列化到 v；string 条目会被当作 JSON 字符串处理。
func (e *Entry) Decode(v any) error {
	switch {
	case e.DataType.Structured():
		return json.Unmarshal(e.Data, v)
	case e.DataType == DataTypeString:
		raw, err := json.Marshal(string(e.Data))
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, v)
	default:
		return fmt.Errorf("cannot decode %s entry", e.DataType)
	}
}

// Value 将条目还原为写入时的 Value。
func (e *Entry) Value() Value {
	return Value{dataType: e.DataType, data: e.Data}
}
