package cache

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// encodeToken 将任意字节编码为文件名安全的 token（URL 安全 base64，去掉末尾 '='）。
func encodeToken(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeToken 是 encodeToken 的逆操作，补齐 padding 后按标准 base64 解码。
// 非法输入返回 false，调用方应将对应文件视为非缓存条目。
func decodeToken(token string) ([]byte, bool) {
	if token == "" {
		return nil, false
	}
	padding := (4 - len(token)%4) % 4
	if padding == 3 {
		return nil, false
	}
	std := strings.NewReplacer("-", "+", "_", "/").Replace(token) + strings.Repeat("=", padding)
	raw, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// keyFromToken 把文件名 token 还原成缓存 key；只接受非空 JSON 字符串。
func keyFromToken(token string) (string, bool) {
	raw, ok := decodeToken(token)
	if !ok {
		return "", false
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil || key == "" {
		return "", false
	}
	return key, true
}
