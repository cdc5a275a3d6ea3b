package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// fileStore 负责条目 envelope 的读写；entryLock 避免同一路径在进程内并发写入，
// 跨进程不做任何协调。
type fileStore struct {
	mu    sync.Mutex
	locks map[string]*entryLock

	shardsMu sync.RWMutex
	shards   map[string]struct{}
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newFileStore() *fileStore {
	return &fileStore{
		locks:  make(map[string]*entryLock),
		shards: make(map[string]struct{}),
	}
}

// read 返回 path 处的 envelope。文件不存在返回 ErrNotFound，无法解析或缺少
// expires 字段返回 ErrCorruptEntry。
func (s *fileStore) read(path string) (*envelope, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, path, err)
	}
	if env.Expires == nil {
		return nil, fmt.Errorf("%w: %s: missing expires", ErrCorruptEntry, path)
	}
	return &env, nil
}

// write 先写入同目录下的临时文件再 rename，读方不会看到半截 JSON。
func (s *fileStore) write(path string, env *envelope) error {
	unlock := s.lockEntry(path)
	defer unlock()

	dir := filepath.Dir(path)
	if err := s.ensureShard(dir); err != nil {
		return err
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		// 分片目录可能被 Clear 之外的操作删除，重建一次
		s.forgetShard(dir)
		if err := s.ensureShard(dir); err != nil {
			return err
		}
		if tempFile, err = os.CreateTemp(dir, ".entry-*"); err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(raw)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return fmt.Errorf("write entry: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("rename entry: %w", err)
	}
	return nil
}

// remove 删除条目文件，文件已不存在不视为错误。
func (s *fileStore) remove(path string) error {
	unlock := s.lockEntry(path)
	defer unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove entry: %w", err)
	}
	return nil
}

// list 递归遍历 dir，返回所有以 .json 结尾的普通文件。单个子目录的读取错误
// 会被收集，不会中断整个遍历。
func (s *fileStore) list(ctx context.Context, dir string) ([]string, error) {
	var (
		paths []string
		errs  []error
	)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			errs = append(errs, fmt.Errorf("walk %s: %w", path, err))
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || filepath.Ext(name) != entryExt {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("walk directory: %w", walkErr))
	}
	return paths, errors.Join(errs...)
}

func (s *fileStore) ensureShard(dir string) error {
	s.shardsMu.RLock()
	_, ok := s.shards[dir]
	s.shardsMu.RUnlock()
	if ok {
		return nil
	}

	s.shardsMu.Lock()
	defer s.shardsMu.Unlock()
	if _, ok := s.shards[dir]; ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create shard directory: %w", err)
	}
	s.shards[dir] = struct{}{}
	return nil
}

func (s *fileStore) forgetShard(dir string) {
	s.shardsMu.Lock()
	delete(s.shards, dir)
	s.shardsMu.Unlock()
}

func (s *fileStore) lockEntry(path string) func() {
	s.mu.Lock()
	lock := s.locks[path]
	if lock == nil {
		lock = &entryLock{}
		s.locks[path] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, path)
		}
		s.mu.Unlock()
	}
}
