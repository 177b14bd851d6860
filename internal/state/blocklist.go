package state

import (
	"context"
	"sort"
	"sync"

	rkeys "automator/internal/redis"

	"github.com/redis/go-redis/v9"
)

// BlockList is the app deny-list shared by the BLOCK_APP actions and the
// foreground-app observer. Reads are served from memory; writes go to Redis first.
type BlockList struct {
	mu     sync.RWMutex
	pkgs   map[string]struct{}
	client *redis.Client
}

// NewBlockList creates an empty list mirrored to Redis
func NewBlockList(client *redis.Client) *BlockList {
	return &BlockList{pkgs: make(map[string]struct{}), client: client}
}

// Load replaces the in-memory set with the persisted one
func (b *BlockList) Load(ctx context.Context) error {
	members, err := b.client.SMembers(ctx, rkeys.BlockListKey).Result()
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	b.mu.Lock()
	b.pkgs = set
	b.mu.Unlock()
	return nil
}

func (b *BlockList) Add(ctx context.Context, pkg string) error {
	if err := b.client.SAdd(ctx, rkeys.BlockListKey, pkg).Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.pkgs[pkg] = struct{}{}
	b.mu.Unlock()
	return nil
}

func (b *BlockList) Remove(ctx context.Context, pkg string) error {
	if err := b.client.SRem(ctx, rkeys.BlockListKey, pkg).Err(); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.pkgs, pkg)
	b.mu.Unlock()
	return nil
}

func (b *BlockList) Contains(pkg string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.pkgs[pkg]
	return ok
}

// List returns the blocked packages in sorted order
func (b *BlockList) List() []string {
	b.mu.RLock()
	out := make([]string, 0, len(b.pkgs))
	for p := range b.pkgs {
		out = append(out, p)
	}
	b.mu.RUnlock()
	sort.Strings(out)
	return out
}
