package agent

import (
	"context"
	"sort"
	"sync"
)

// Asset はキャッシュされる静的アセットの応答。
type Asset struct {
	Status      int
	ContentType string
	Body        []byte
}

// AssetCache は名前付きキャッシュの集合。キャッシュ名でバージョンを区別する。
type AssetCache interface {
	Put(ctx context.Context, cache, path string, asset *Asset) error
	Match(ctx context.Context, cache, path string) (*Asset, bool, error)
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, cache string) error
}

// MemoryCache はプロセス内メモリのAssetCache。
type MemoryCache struct {
	mu     sync.RWMutex
	caches map[string]map[string]*Asset
}

// NewMemoryCache は空のMemoryCacheを生成する。
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{caches: make(map[string]map[string]*Asset)}
}

// Put はアセットを保存する。同じパスは上書きする。
func (m *MemoryCache) Put(_ context.Context, cache, path string, asset *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.caches[cache]
	if !ok {
		entries = make(map[string]*Asset)
		m.caches[cache] = entries
	}
	cp := *asset
	cp.Body = append([]byte(nil), asset.Body...)
	entries[path] = &cp
	return nil
}

// Match はキャッシュからアセットを探す。
func (m *MemoryCache) Match(_ context.Context, cache, path string) (*Asset, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	asset, ok := m.caches[cache][path]
	return asset, ok, nil
}

// Keys はキャッシュ名を名前順に返す。
func (m *MemoryCache) Keys(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.caches))
	for k := range m.caches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete はキャッシュを丸ごと削除する。
func (m *MemoryCache) Delete(_ context.Context, cache string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches, cache)
	return nil
}
