package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPool_AcquireReusesLiveHandle(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "Living Room"))
	ctx := context.Background()

	first, err := pool.Acquire(ctx, "1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	for i := 0; i < 4; i++ {
		h, err := pool.Acquire(ctx, "1")
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if h != first {
			t.Errorf("Acquire() #%d returned a different handle", i+2)
		}
	}

	if got := link.connectCount("1"); got != 1 {
		t.Errorf("connects = %d, want 1", got)
	}
}

func TestPool_ConcurrentAcquireCreatesOneHandle(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "Living Room"))
	ctx := context.Background()

	var wg sync.WaitGroup
	handles := make([]Handle, 20)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := pool.Acquire(ctx, "1")
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	if got := link.connectCount("1"); got != 1 {
		t.Errorf("connects = %d, want 1", got)
	}
	for i, h := range handles {
		if h != handles[0] {
			t.Errorf("handle %d differs from handle 0", i)
		}
	}
}

func TestPool_StaleHandleReplaced(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "Living Room"))
	ctx := context.Background()

	var events []Event
	pool.setEmitter(func(e Event) { events = append(events, e) })

	first, err := pool.Acquire(ctx, "1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	stale := first.(*fakeHandle)
	stale.setProbeErr(errFake)

	second, err := pool.Acquire(ctx, "1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if second == first {
		t.Fatal("stale handle returned as-is")
	}
	if stale.closeCount() != 1 {
		t.Errorf("stale closes = %d, want 1", stale.closeCount())
	}
	if got := link.connectCount("1"); got != 2 {
		t.Errorf("connects = %d, want 2", got)
	}
	if pool.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pool.Len())
	}

	var disconnected int
	for _, e := range events {
		if e.Type == EventDeviceDisconnected && e.Details["reason"] == "stale" {
			disconnected++
		}
	}
	if disconnected != 1 {
		t.Errorf("stale disconnect events = %d, want 1", disconnected)
	}
}

func TestPool_UnknownDeviceTriggersMerge(t *testing.T) {
	pool, disc, link := newTestPool(t, tv("1", "Living Room"))
	ctx := context.Background()

	disc.set(tv("2", "Bedroom"))
	before := disc.scanCount()

	if _, err := pool.Acquire(ctx, "2"); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if disc.scanCount() != before+1 {
		t.Errorf("scans = %d, want %d", disc.scanCount(), before+1)
	}
	if link.connectCount("2") != 1 {
		t.Errorf("connects = %d, want 1", link.connectCount("2"))
	}
	// The merge must not evict devices missing from the latest scan.
	if !cached(pool.registry, "1") {
		t.Error("device 1 evicted by merge")
	}
}

func TestPool_UnknownAfterRescanIsNotFound(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "Living Room"))

	_, err := pool.Acquire(context.Background(), "ghost")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("Acquire() error = %v, want ErrDeviceNotFound", err)
	}
	if link.connectCount("ghost") != 0 {
		t.Error("connect attempted for unknown device")
	}
}

func TestPool_CancelledAcquireKeepsLiveHandle(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "Living Room"))

	first, err := pool.Acquire(context.Background(), "1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	rec := &eventRecorder{}
	pool.setEmitter(rec.Observe)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Acquire(ctx, "1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire(cancelled) error = %v, want context.Canceled", err)
	}

	if got := first.(*fakeHandle).closeCount(); got != 0 {
		t.Errorf("live handle closes = %d, want 0", got)
	}
	if got := link.connectCount("1"); got != 1 {
		t.Errorf("connects = %d, want 1", got)
	}
	if n := len(rec.ofType(EventDeviceDisconnected)); n != 0 {
		t.Errorf("disconnect events = %d, want 0", n)
	}

	h, err := pool.Acquire(context.Background(), "1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if h != first {
		t.Error("Acquire() after cancellation returned a different handle")
	}
}

func TestPool_DeviceLocksReleased(t *testing.T) {
	pool, _, _ := newTestPool(t, tv("1", "Living Room"))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("ghost-%d", i)
		if _, err := pool.Acquire(ctx, id); !errors.Is(err, ErrDeviceNotFound) {
			t.Fatalf("Acquire(%s) error = %v, want ErrDeviceNotFound", id, err)
		}
		pool.Release(id)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Acquire(ctx, "1"); err != nil {
				t.Errorf("Acquire() error = %v", err)
			}
		}()
	}
	wg.Wait()
	pool.Release("1")

	pool.mu.Lock()
	retained := len(pool.locks)
	pool.mu.Unlock()
	if retained != 0 {
		t.Errorf("locks retained = %d, want 0", retained)
	}
}

func TestPool_ScanFailureDuringResolve(t *testing.T) {
	pool, disc, _ := newTestPool(t, tv("1", "Living Room"))
	disc.err = errFake

	_, err := pool.Acquire(context.Background(), "ghost")
	if !errors.Is(err, ErrScan) {
		t.Fatalf("Acquire() error = %v, want ErrScan", err)
	}
}

func TestPool_ConnectFailureNotCached(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "Living Room"))
	link.connectErr = errFake

	_, err := pool.Acquire(context.Background(), "1")
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Acquire() error = %v, want ErrConnection", err)
	}
	if !errors.Is(err, errFake) {
		t.Errorf("Acquire() error = %v, want cause attached", err)
	}
	if pool.Len() != 0 {
		t.Errorf("Len() = %d, want 0", pool.Len())
	}

	link.mu.Lock()
	link.connectErr = nil
	link.mu.Unlock()

	if _, err := pool.Acquire(context.Background(), "1"); err != nil {
		t.Fatalf("Acquire() after recovery error = %v", err)
	}
	if link.connectCount("1") != 2 {
		t.Errorf("connects = %d, want 2", link.connectCount("1"))
	}
}

func TestPool_Release(t *testing.T) {
	pool, _, _ := newTestPool(t, tv("1", "Living Room"))

	if pool.Release("1") {
		t.Error("Release() of unconnected device = true, want false")
	}

	h, err := pool.Acquire(context.Background(), "1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !pool.Release("1") {
		t.Error("Release() = false, want true")
	}
	if h.(*fakeHandle).closeCount() != 1 {
		t.Errorf("closes = %d, want 1", h.(*fakeHandle).closeCount())
	}
	if pool.IsConnected("1") {
		t.Error("IsConnected() = true after release")
	}
}

func TestPool_CloseAllClosesEachOnce(t *testing.T) {
	pool, _, link := newTestPool(t, tv("1", "A"), tv("2", "B"), tv("3", "C"))
	link.newHandle = func(id string) *fakeHandle {
		return &fakeHandle{id: id, features: FeatureSet{}, closePanic: id == "2"}
	}
	ctx := context.Background()

	var handles []*fakeHandle
	for _, id := range []string{"1", "2", "3"} {
		h, err := pool.Acquire(ctx, id)
		if err != nil {
			t.Fatalf("Acquire(%s) error = %v", id, err)
		}
		handles = append(handles, h.(*fakeHandle))
	}

	rec := &eventRecorder{}
	pool.setEmitter(rec.Observe)
	pool.CloseAll()

	if pool.Len() != 0 {
		t.Errorf("Len() = %d, want 0", pool.Len())
	}
	for _, h := range handles {
		if h.closeCount() != 1 {
			t.Errorf("handle %s closes = %d, want 1", h.id, h.closeCount())
		}
	}

	disconnected := rec.ofType(EventDeviceDisconnected)
	if len(disconnected) != 3 {
		t.Fatalf("disconnect events = %d, want 3", len(disconnected))
	}
	for _, e := range disconnected {
		if e.Details["reason"] != "shutdown" {
			t.Errorf("event %s reason = %v, want shutdown", e.DeviceID, e.Details["reason"])
		}
	}
}

func TestPool_ConnectsToDifferentDevicesConcurrently(t *testing.T) {
	pool, _, link := newTestPool(t, tv("slow", "Slow"), tv("fast", "Fast"))

	entered := make(chan struct{})
	unblock := make(chan struct{})
	link.connectHook = func(id string) {
		if id == "slow" {
			close(entered)
			<-unblock
		}
	}

	ctx := context.Background()
	slowDone := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx, "slow")
		slowDone <- err
	}()
	<-entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx, "fast")
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("Acquire(fast) error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire(fast) blocked behind a slow connect to another device")
	}

	close(unblock)
	if err := <-slowDone; err != nil {
		t.Fatalf("Acquire(slow) error = %v", err)
	}
}

func TestPool_IDsSorted(t *testing.T) {
	pool, _, _ := newTestPool(t, tv("b", "B"), tv("a", "A"))
	ctx := context.Background()
	for _, id := range []string{"b", "a"} {
		if _, err := pool.Acquire(ctx, id); err != nil {
			t.Fatalf("Acquire(%s) error = %v", id, err)
		}
	}

	ids := pool.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v, want [a b]", ids)
	}
}
