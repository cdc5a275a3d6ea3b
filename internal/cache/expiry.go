package cache

import (
	"sort"
	"sync"
	"time"
)

// bucketLayout 与 JS Date.prototype.toISOString 的输出保持一致。
const bucketLayout = "2006-01-02T15:04:05.000Z"

// sweepOffset 条目登记在过期时刻之后一小时的桶中，最多延迟约一小时被清扫。
const sweepOffset = 1

// bucketFor 将过期时间（UNIX 秒）换算为按小时截断的 UTC 桶名，并向后偏移 hourOffset 小时。
func bucketFor(expiresAt int64, hourOffset int) string {
	return bucketAt(time.Unix(expiresAt, 0), hourOffset)
}

func bucketAt(t time.Time, hourOffset int) string {
	return t.UTC().Add(time.Duration(hourOffset) * time.Hour).Truncate(time.Hour).Format(bucketLayout)
}

// expiryIndex 是进程内的过期桶索引：桶名 -> key 集合。它只是加速器，
// 丢失后可从磁盘重建，真实过期时间始终以条目文件中的 expires 为准。
type expiryIndex struct {
	mu      sync.Mutex
	buckets map[string]map[string]struct{}
}

func newExpiryIndex() *expiryIndex {
	return &expiryIndex{buckets: make(map[string]map[string]struct{})}
}

// register 把 key 加入其过期时间对应的桶，返回桶名；expiresAt 为 0 时不登记。
func (x *expiryIndex) register(key string, expiresAt int64) string {
	if expiresAt == 0 {
		return ""
	}
	bucket := bucketFor(expiresAt, sweepOffset)

	x.mu.Lock()
	defer x.mu.Unlock()
	members := x.buckets[bucket]
	if members == nil {
		members = make(map[string]struct{})
		x.buckets[bucket] = members
	}
	members[key] = struct{}{}
	return bucket
}

// unregister 从指定桶移除 key，桶或 key 不存在时什么也不做。
func (x *expiryIndex) unregister(key, bucket string) {
	if bucket == "" {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	members, ok := x.buckets[bucket]
	if !ok {
		return
	}
	delete(members, key)
	if len(members) == 0 {
		delete(x.buckets, bucket)
	}
}

// sweepDue 取出并删除当前小时桶（以及进程空闲期间错过的更早的桶），返回其中的 key。
func (x *expiryIndex) sweepDue(now time.Time) []string {
	current := bucketAt(now, 0)

	x.mu.Lock()
	defer x.mu.Unlock()
	var keys []string
	for bucket, members := range x.buckets {
		// 桶名为定长 ISO 时间，字典序即时间序
		if bucket > current {
			continue
		}
		for key := range members {
			keys = append(keys, key)
		}
		delete(x.buckets, bucket)
	}
	sort.Strings(keys)
	return keys
}

func (x *expiryIndex) contains(key, bucket string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.buckets[bucket][key]
	return ok
}

// snapshot 返回每个桶的成员数量，供诊断接口使用。
func (x *expiryIndex) snapshot() map[string]int {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make(map[string]int, len(x.buckets))
	for bucket, members := range x.buckets {
		out[bucket] = len(members)
	}
	return out
}

// size 返回索引中登记的 key 总数。
func (x *expiryIndex) size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	for _, members := range x.buckets {
		n += len(members)
	}
	return n
}
