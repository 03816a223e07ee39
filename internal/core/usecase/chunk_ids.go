package usecase

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
)

const instanceTokenLen = 8

// ChunkIDGenerator issues `<tenant-slug>-<stamp>-<instance>-<index>` ids. The stamp is the wall
// clock in milliseconds, bumped past the last issued stamp so concurrent ingestions in this
// process never share one. The instance token is random per generator, so two processes
// ingesting in the same millisecond still produce disjoint ids.
type ChunkIDGenerator struct {
	now      func() time.Time
	instance string
	last     atomic.Int64
}

func NewChunkIDGenerator() *ChunkIDGenerator {
	return &ChunkIDGenerator{
		now:      time.Now,
		instance: newInstanceToken(),
	}
}

func newInstanceToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:instanceTokenLen]
}

func (g *ChunkIDGenerator) Next(tenantID string, count int) []string {
	if count <= 0 {
		return nil
	}
	stamp := g.reserveStamp()
	prefix := domain.TenantSlug(tenantID) + "-" + strconv.FormatInt(stamp, 10) + "-" + g.instance + "-"
	ids := make([]string, count)
	for i := range ids {
		ids[i] = prefix + strconv.Itoa(i)
	}
	return ids
}

func (g *ChunkIDGenerator) reserveStamp() int64 {
	now := g.now().UnixMilli()
	for {
		last := g.last.Load()
		stamp := now
		if stamp <= last {
			stamp = last + 1
		}
		if g.last.CompareAndSwap(last, stamp) {
			return stamp
		}
	}
}
