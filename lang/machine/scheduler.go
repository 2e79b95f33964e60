package machine

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// The scheduler multiplexes strands onto the Go runtime's work-stealing
// carrier threads. The hot path (spawn and completion) is a lock-free
// atomic counter; the shutdown barrier is a mutex/condvar pair used only
// when waiting for all strands to finish.
var sched struct {
	initOnce sync.Once
	cfg      Config

	activeStrands atomic.Int64
	nextStrandID  atomic.Int64

	shutdownMu   sync.Mutex
	shutdownCond *sync.Cond

	yieldTick atomic.Uint64
}

// SchedulerInit initializes the scheduler. Safe to call multiple times.
func SchedulerInit() {
	sched.initOnce.Do(func() {
		sched.cfg = defaultConfig()
		sched.shutdownCond = sync.NewCond(&sched.shutdownMu)
		sched.nextStrandID.Store(1)
	})
}

// Spawn launches fn as a new strand with its own stack and arena. It
// returns a unique positive strand id. The strand's arena is reset when the
// strand completes; when the last strand exits the shutdown barrier is
// signalled.
func Spawn(fn StrandFunc) int64 {
	SchedulerInit()
	id := sched.nextStrandID.Add(1) - 1
	sched.activeStrands.Add(1)

	st := NewStack(sched.cfg.StackSlots, sched.cfg.ArenaBlock)
	go func() {
		defer strandDone(st)
		fn(st)
	}()
	return id
}

// spawnWith launches fn on a prepared stack; used by weaves.
func spawnWith(st *Stack, fn func(*Stack)) int64 {
	SchedulerInit()
	id := sched.nextStrandID.Add(1) - 1
	sched.activeStrands.Add(1)
	go func() {
		defer strandDone(st)
		fn(st)
	}()
	return id
}

func strandDone(st *Stack) {
	// arena reset at strand completion releases every arena string at once
	st.arena.Reset()
	if sched.activeStrands.Add(-1) == 0 {
		sched.shutdownMu.Lock()
		sched.shutdownCond.Broadcast()
		sched.shutdownMu.Unlock()
	}
}

// WaitAll blocks until every spawned strand has completed. This is the
// shutdown barrier the generated main uses after spawning the user's main
// word as the first strand.
func WaitAll() {
	SchedulerInit()
	sched.shutdownMu.Lock()
	defer sched.shutdownMu.Unlock()
	for sched.activeStrands.Load() > 0 {
		sched.shutdownCond.Wait()
	}
}

// ActiveStrands reports the number of running strands.
func ActiveStrands() int64 {
	return sched.activeStrands.Load()
}

// Yield cooperatively yields the current strand to the scheduler.
func Yield() {
	runtime.Gosched()
}

// MaybeYield is the probe the compiler inserts before tail calls so a
// tight recursive loop cannot starve other strands. Only every Nth probe
// actually yields.
func MaybeYield() {
	SchedulerInit()
	n := uint64(sched.cfg.YieldInterval)
	if n == 0 {
		n = 64
	}
	if sched.yieldTick.Add(1)%n == 0 {
		runtime.Gosched()
	}
}
