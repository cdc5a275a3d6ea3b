package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// DefaultDirName 是未指定 Dir 时在系统临时目录下使用的子目录名。
const DefaultDirName = "ttl-file-cache"

// NoExpiration 显式要求条目永不过期，不受实例默认 TTL 影响。
const NoExpiration time.Duration = -1

// Options 控制缓存实例的构造。
type Options struct {
	// Dir 为缓存根目录，为空时使用 os.TempDir()/ttl-file-cache。
	Dir string
	// DefaultTTL 为未显式指定 TTL 时使用的有效期，0 表示永不过期。
	DefaultTTL time.Duration
	Logger     logrus.FieldLogger
	Observer   Observer
	// Now 可在测试中注入时钟，默认 time.Now。
	Now func() time.Time
}

// GetOptions 控制 Get 的附加行为。
type GetOptions struct {
	// Extend 命中后按 TTL 续期（等同于 Touch(key, 0)）。
	Extend bool
	// RefreshIndex 命中后把条目重新登记到过期索引。
	RefreshIndex bool
}

// ListOptions 控制全量枚举。
type ListOptions struct {
	RefreshIndex bool
}

// TouchResult 描述 Touch 之后的过期状态。ExpiresAfter 为续期前的剩余时间。
type TouchResult struct {
	ExpiresAfter time.Duration
	ExpiresAt    time.Time
}

// Cache 是基于文件系统、带 TTL 的键值缓存。同一进程内可并发使用；
// 多个进程共享同一目录时不做任何协调，后写者胜出。
type Cache struct {
	dir        string
	defaultTTL int64
	store      *fileStore
	index      *expiryIndex
	logger     logrus.FieldLogger
	observer   Observer
	now        func() time.Time
}

// Open 创建缓存实例：确保目录存在，并同步扫描全部已有条目以重建过期索引，
// 返回时索引已就绪。
func Open(ctx context.Context, opts Options) (*Cache, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = filepath.Join(os.TempDir(), DefaultDirName)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	var defaultTTL int64
	switch {
	case opts.DefaultTTL == NoExpiration:
	case opts.DefaultTTL < 0:
		return nil, fmt.Errorf("%w: default ttl must not be negative", ErrInvalidArgument)
	default:
		defaultTTL = ceilSeconds(opts.DefaultTTL)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{
		dir:        abs,
		defaultTTL: defaultTTL,
		store:      newFileStore(),
		index:      newExpiryIndex(),
		logger:     opts.Logger,
		observer:   opts.Observer,
		now:        opts.Now,
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.now == nil {
		c.now = time.Now
	}

	entries, err := c.List(ctx, ListOptions{RefreshIndex: true})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("load cache index: %w", ctxErr)
		}
		c.logger.WithError(err).WithField("dir", abs).Warn("cache_load_partial")
	}
	c.logger.WithFields(logrus.Fields{
		"action":  "cache_load",
		"dir":     abs,
		"entries": len(entries),
		"indexed": c.index.size(),
	}).Debug("cache index rebuilt")

	return c, nil
}

// Dir 返回缓存根目录的绝对路径。
func (c *Cache) Dir() string {
	return c.dir
}

// DefaultTTL 返回实例默认 TTL。
func (c *Cache) DefaultTTL() time.Duration {
	return seconds(c.defaultTTL)
}

// Location 返回 key 对应的条目文件路径，文件不一定存在。
func (c *Cache) Location(key string) string {
	_, path := resolvePath(c.dir, key)
	return path
}

// IndexSize 返回过期索引中登记的 key 总数。
func (c *Cache) IndexSize() int {
	return c.index.size()
}

// IndexSnapshot 返回过期索引中每个小时桶的 key 数量。
func (c *Cache) IndexSnapshot() map[string]int {
	return c.index.snapshot()
}

// Get 返回 key 对应的有效条目。不存在、已过期或文件损坏时返回 ErrNotFound，
// 过期文件会顺带被删除。
func (c *Cache) Get(ctx context.Context, key string, opts GetOptions) (*Entry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	now := c.now()
	c.sweep(now)

	_, path := resolvePath(c.dir, key)
	env, err := c.load(key, path, now.Unix())
	if err != nil {
		c.observer.OnGet(false)
		return nil, err
	}

	entry := env.entry()
	entry.Key = key

	if opts.Extend {
		result, err := c.touch(key, path, env, 0, now.Unix())
		switch {
		case err == nil:
			entry.Expires = result.ExpiresAt.Unix()
			entry.TTL = seconds(env.TTL)
		case errors.Is(err, ErrNoExpiry):
		default:
			return nil, err
		}
	}

	if opts.RefreshIndex {
		c.index.register(key, env.expiresAt())
	}

	c.observer.OnGet(true)
	return entry, nil
}

// Set 写入 key，已存在的条目被无条件覆盖。ttl 为 0 时使用实例默认 TTL，
// NoExpiration 表示永不过期。
func (c *Cache) Set(ctx context.Context, key string, value Value, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if value.IsZero() {
		return fmt.Errorf("%w: value is required", ErrInvalidArgument)
	}
	secs, err := c.resolveSetTTL(ttl)
	if err != nil {
		return err
	}

	now := c.now()
	var expires int64
	if secs > 0 {
		expires = now.Unix() + secs
	}

	_, path := resolvePath(c.dir, key)
	if prev, err := c.store.read(path); err == nil {
		c.forget(key, prev)
	}

	env := newEnvelope(key, value, secs, expires)
	env.TimeKey = c.index.register(key, expires)
	c.sweep(now)

	if err := c.store.write(path, env); err != nil {
		c.index.unregister(key, env.TimeKey)
		return err
	}
	c.observer.OnSet()
	c.logger.WithFields(logrus.Fields{
		"action":   "cache_set",
		"key":      key,
		"ttl":      secs,
		"dataType": env.DataType,
	}).Debug("cache entry written")
	return nil
}

// Put 是 Set 的别名。
func (c *Cache) Put(ctx context.Context, key string, value Value, ttl time.Duration) error {
	return c.Set(ctx, key, value, ttl)
}

// Touch 为即将过期的条目续期。TTL 依次取显式值、条目原 TTL、实例默认 TTL；
// 只有剩余时间小于该 TTL 时才会续期，永远不会缩短条目寿命。
// 条目不存在返回 ErrNotFound，永不过期的条目返回 ErrNoExpiry。
// 已过期但文件仍在的条目同样续期（从 now 起算），ExpiresAfter 此时为负数。
// 与 Set 不同，永不过期的条目不会套用实例默认 TTL：只有显式 ttl 才能让它改为会过期。
func (c *Cache) Touch(ctx context.Context, key string, ttl time.Duration) (TouchResult, error) {
	if err := validateKey(key); err != nil {
		return TouchResult{}, err
	}
	if ttl < 0 && ttl != NoExpiration {
		return TouchResult{}, fmt.Errorf("%w: ttl must not be negative", ErrInvalidArgument)
	}
	now := c.now()
	c.sweep(now)

	_, path := resolvePath(c.dir, key)
	env, err := c.store.read(path)
	if err != nil {
		if errors.Is(err, ErrCorruptEntry) {
			c.logger.WithError(err).WithField("key", key).Debug("cache_corrupt_entry")
			return TouchResult{}, ErrNotFound
		}
		return TouchResult{}, err
	}
	return c.touch(key, path, env, ttl, now.Unix())
}

func (c *Cache) touch(key, path string, env *envelope, ttl time.Duration, now int64) (TouchResult, error) {
	if ttl == NoExpiration {
		return TouchResult{}, ErrNoExpiry
	}
	explicit := ceilSeconds(ttl)
	// 永不过期的条目只有显式 TTL 才能改为会过期
	if env.expiresAt() == 0 && explicit == 0 {
		return TouchResult{}, ErrNoExpiry
	}
	secs := explicit
	if secs == 0 {
		secs = env.TTL
	}
	if secs == 0 {
		secs = c.defaultTTL
	}
	if secs == 0 {
		return TouchResult{}, ErrNoExpiry
	}

	expiresAfter := env.expiresAt() - now
	extended := expiresAfter < secs
	if extended {
		c.forget(key, env)
		env.setExpires(now + secs)
		env.TTL = secs
		env.TimeKey = c.index.register(key, now+secs)
		if err := c.store.write(path, env); err != nil {
			return TouchResult{}, err
		}
	}
	c.observer.OnTouch(extended)

	return TouchResult{
		ExpiresAfter: seconds(expiresAfter),
		ExpiresAt:    time.Unix(env.expiresAt(), 0),
	}, nil
}

// Delete 删除 key 及其索引登记，条目不存在时什么也不做。
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, path := resolvePath(c.dir, key)
	env, err := c.store.read(path)
	switch {
	case err == nil:
		c.forget(key, env)
	case errors.Is(err, ErrNotFound):
		return nil
	case errors.Is(err, ErrCorruptEntry):
	default:
		return err
	}
	if err := c.store.remove(path); err != nil {
		return err
	}
	c.observer.OnDelete()
	return nil
}

// Remove 是 Delete 的别名。
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// List 枚举全部有效条目。无法还原 key 的文件被跳过，过期条目在枚举过程中
// 被删除且不出现在结果中。
func (c *Cache) List(ctx context.Context, opts ListOptions) ([]*Entry, error) {
	paths, err := c.store.list(ctx, c.dir)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}

	entries := make([]*Entry, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		key, ok := keyFromPath(path)
		if !ok || c.Location(key) != path {
			c.logger.WithField("path", path).Debug("cache_skip_foreign_file")
			continue
		}
		entry, err := c.Get(ctx, key, GetOptions{RefreshIndex: opts.RefreshIndex})
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				errs = append(errs, fmt.Errorf("get %q: %w", key, err))
			}
			continue
		}
		entries = append(entries, entry)
	}
	return entries, errors.Join(errs...)
}

// Clear 删除全部条目并清理索引，返回删除数量。
func (c *Cache) Clear(ctx context.Context) (int, error) {
	entries, err := c.List(ctx, ListOptions{})
	var errs []error
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		errs = append(errs, err)
	}

	removed := 0
	for _, entry := range entries {
		if err := c.Delete(ctx, entry.Key); err != nil {
			errs = append(errs, fmt.Errorf("delete %q: %w", entry.Key, err))
			continue
		}
		removed++
	}
	c.logger.WithFields(logrus.Fields{
		"action":  "cache_clear",
		"removed": removed,
	}).Info("cache cleared")
	return removed, errors.Join(errs...)
}

// RemoveAll 是 Clear 的别名。
func (c *Cache) RemoveAll(ctx context.Context) (int, error) {
	return c.Clear(ctx)
}

// load 读取条目并执行访问时的过期检查：过期文件被删除，损坏文件按未命中处理。
func (c *Cache) load(key, path string, now int64) (*envelope, error) {
	env, err := c.store.read(path)
	if err != nil {
		if errors.Is(err, ErrCorruptEntry) {
			c.logger.WithError(err).WithField("key", key).Debug("cache_corrupt_entry")
			return nil, ErrNotFound
		}
		return nil, err
	}
	if env.live(now) {
		return env, nil
	}
	c.forget(key, env)
	if err := c.store.remove(path); err != nil {
		return nil, err
	}
	c.observer.OnExpire(1)
	return nil, ErrNotFound
}

// sweep 取出到期的过期桶，删除其中确实已过期的条目。磁盘上的 expires 才是
// 最终依据，仍然有效的条目会被重新登记。
func (c *Cache) sweep(now time.Time) {
	keys := c.index.sweepDue(now)
	if len(keys) == 0 {
		return
	}

	removed := 0
	for _, key := range keys {
		_, path := resolvePath(c.dir, key)
		env, err := c.store.read(path)
		if err != nil {
			continue
		}
		if env.live(now.Unix()) {
			c.index.register(key, env.expiresAt())
			continue
		}
		if err := c.store.remove(path); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("cache_sweep_remove_failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		c.observer.OnExpire(removed)
	}
	c.logger.WithFields(logrus.Fields{
		"action":  "expiry_sweep",
		"due":     len(keys),
		"removed": removed,
	}).Debug("expiry bucket swept")
}

// forget 移除条目在索引中的登记；兼容未记录 timeKey 的旧文件。
func (c *Cache) forget(key string, env *envelope) {
	c.index.unregister(key, env.TimeKey)
	if exp := env.expiresAt(); exp != 0 {
		if bucket := bucketFor(exp, sweepOffset); bucket != env.TimeKey {
			c.index.unregister(key, bucket)
		}
	}
}

func (c *Cache) resolveSetTTL(ttl time.Duration) (int64, error) {
	switch {
	case ttl == NoExpiration:
		return 0, nil
	case ttl < 0:
		return 0, fmt.Errorf("%w: ttl must not be negative", ErrInvalidArgument)
	case ttl == 0:
		return c.defaultTTL, nil
	default:
		return ceilSeconds(ttl), nil
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: key must be valid UTF-8", ErrInvalidArgument)
	}
	return nil
}

// ceilSeconds 把 TTL 换算为整秒，不足一秒的部分向上取整。
func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	s := int64(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}
