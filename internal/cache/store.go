package cache

import (
	"errors"
	"fmt"
	"strconv"
)

// 磁盘布局：
//
//	<Dir>/<shardToken>/<token>.json    # 条目 envelope
//
// token 为 key 的 JSON 形式经 URL 安全 base64 编码；shardToken 为 token 长度
// 向下取整到 10 的倍数后同样编码，避免单目录文件过多。

var (
	// ErrNotFound 表示条目不存在或已过期。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidArgument 表示参数在任何 I/O 之前即被拒绝。
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCorruptEntry 表示条目文件无法解析或缺少必需字段。
	ErrCorruptEntry = errors.New("corrupt cache entry")
	// ErrNoExpiry 表示条目永不过期，Touch 无需续期。
	ErrNoExpiry = errors.New("cache entry never expires")
)

const bufferTypeTag = "Buffer"

// envelope 是落盘的 JSON 记录，字段布局兼容 Node Buffer.toJSON() 的输出。
type envelope struct {
	Type     string    `json:"type,omitempty"`
	Data     byteArray `json:"data"`
	Expires  *int64    `json:"expires"`
	TTL      int64     `json:"ttl"`
	DataType DataType  `json:"dataType"`
	Key      string    `json:"key"`
	TimeKey  string    `json:"timeKey,omitempty"`
}

func newEnvelope(key string, value Value, ttl, expires int64) *envelope {
	return &envelope{
		Type:     bufferTypeTag,
		Data:     value.Payload(),
		Expires:  &expires,
		TTL:      ttl,
		DataType: value.DataType(),
		Key:      key,
	}
}

func (e *envelope) expiresAt() int64 {
	if e.Expires == nil {
		return 0
	}
	return *e.Expires
}

func (e *envelope) setExpires(v int64) {
	e.Expires = &v
}

// live 判断条目在 now（UNIX 秒）时是否仍有效。
func (e *envelope) live(now int64) bool {
	exp := e.expiresAt()
	return exp == 0 || exp > now
}

func (e *envelope) entry() *Entry {
	dataType := e.DataType
	if dataType == "" {
		dataType = DataTypeBuffer
	}
	return &Entry{
		Key:      e.Key,
		DataType: dataType,
		Data:     []byte(e.Data),
		TTL:      seconds(e.TTL),
		Expires:  e.expiresAt(),
	}
}

// byteArray 以 JSON 数字数组的形式编码字节，例如 [104,105]。
type byteArray []byte

func (b byteArray) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

func (b *byteArray) UnmarshalJSON(raw []byte) error {
	if string(raw) == "null" {
		*b = nil
		return nil
	}
	if len(raw) < 2 || raw[0] != '[' || raw[len(raw)-1] != ']' {
		return fmt.Errorf("data: expected byte array")
	}
	out := make([]byte, 0, len(raw)/3)
	start := -1
	for i := 1; i < len(raw); i++ {
		c := raw[i]
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.ParseUint(string(raw[start:i]), 10, 8)
			if err != nil {
				return fmt.Errorf("data: %w", err)
			}
			out = append(out, byte(n))
			start = -1
		}
		switch c {
		case ',', ']', ' ', '\t', '\n', '\r':
		default:
			return fmt.Errorf("data: unexpected %q", c)
		}
	}
	*b = out
	return nil
}
