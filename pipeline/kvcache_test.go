package pipeline

import (
	"testing"

	"github.com/dopplerml/doppler/model"
)

func newTestCache(writePos, maxSeqLen int) *KVCache {
	return &KVCache{writePos: writePos, rowBytes: 16, maxSeqLen: maxSeqLen}
}

func TestKVCacheWriteRange(t *testing.T) {
	c := newTestCache(16, 32)
	offset, size, err := c.WriteRange(1)
	if err != nil {
		t.Fatalf("WriteRange: %v", err)
	}
	if offset != 16*16 {
		t.Errorf("offset = %d, want %d", offset, 16*16)
	}
	if size != 16 {
		t.Errorf("size = %d, want 16", size)
	}
}

func TestKVCacheWriteRangeOverflow(t *testing.T) {
	c := newTestCache(30, 32)
	if _, _, err := c.WriteRange(4); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestKVCacheAdvanceMonotonic(t *testing.T) {
	c := newTestCache(16, 32)
	c.Advance(1)
	if c.WritePos() != 17 {
		t.Fatalf("WritePos() = %d, want 17", c.WritePos())
	}
	for i := 0; i < 8; i++ {
		c.Advance(1)
	}
	if c.WritePos() != 25 {
		t.Fatalf("WritePos() = %d, want 25", c.WritePos())
	}
}

func TestKVCacheReadWindowFullAttention(t *testing.T) {
	c := newTestCache(24, 32)
	start, length := c.ReadWindow(model.FullAttention, 4)
	if start != 0 || length != 24 {
		t.Errorf("ReadWindow(full) = (%d,%d), want (0,24)", start, length)
	}
}

func TestKVCacheReadWindowSlidingBelowWindow(t *testing.T) {
	c := newTestCache(3, 32)
	start, length := c.ReadWindow(model.SlidingAttention, 4)
	if start != 0 || length != 3 {
		t.Errorf("ReadWindow(sliding, below) = (%d,%d), want (0,3)", start, length)
	}
}

func TestKVCacheReadWindowSlidingAfterStep10(t *testing.T) {
	// Prompt length 16 + 10 decode steps -> write_pos = 26, sliding window 4.
	c := newTestCache(26, 32)
	start, length := c.ReadWindow(model.SlidingAttention, 4)
	if length != 4 {
		t.Errorf("ReadWindow length = %d, want 4", length)
	}
	if start != 22 {
		t.Errorf("ReadWindow start = %d, want 22", start)
	}

	fullStart, fullLength := c.ReadWindow(model.FullAttention, 4)
	if fullStart != 0 || fullLength != 26 {
		t.Errorf("ReadWindow(full) = (%d,%d), want (0,26)", fullStart, fullLength)
	}
}
