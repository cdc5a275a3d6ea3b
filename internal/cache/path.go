package cache

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
)

const (
	entryExt   = ".json"
	shardWidth = 10
)

// canonicalKey 返回 key 的 JSON 字符串形式，与 JSON.stringify 一致（不转义 HTML 字符）。
func canonicalKey(key string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// string 编码不会失败
	_ = enc.Encode(key)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// shardToken 按 token 长度向下取整到 10 的倍数，再用同一编码命名分片目录。
func shardToken(token string) string {
	shardLen := len(token) / shardWidth * shardWidth
	return encodeToken([]byte(strconv.Itoa(shardLen)))
}

// resolvePath 计算 key 的分片目录与条目文件路径，是 key 与 dir 的纯函数。
func resolvePath(dir, key string) (shardDir, filePath string) {
	token := encodeToken(canonicalKey(key))
	shardDir = filepath.Join(dir, shardToken(token))
	return shardDir, filepath.Join(shardDir, token+entryExt)
}

// keyFromPath 从条目文件名反解 key，供全量枚举使用。
func keyFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if filepath.Ext(name) != entryExt {
		return "", false
	}
	return keyFromToken(name[:len(name)-len(entryExt)])
}
