package api

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type resolveKind int

const (
	resolveTasks resolveKind = iota
	resolveCategories
)

// resolveJob asks the pool to repair one sibling collection.
type resolveJob struct {
	userID   string
	parentID string
	kind     resolveKind
}

var (
	resolverOnce    sync.Once
	resolveJobs     chan resolveJob
	resolverCount   int
	resolveBuf      int
	resolveTimeout  time.Duration
	resolveHandoff  time.Duration
	globalResolvers Resolvers
	globalLog       *log.Logger
	resolverWG      sync.WaitGroup
	inlineResolveWG sync.WaitGroup
)

// shutdownResolverPool stops worker goroutines and clears shared state. It is
// intended for tests.
func shutdownResolverPool() {
	if resolveJobs != nil {
		close(resolveJobs)
		resolveJobs = nil
	}

	resolverWG.Wait()
	inlineResolveWG.Wait()

	globalResolvers = Resolvers{}
	globalLog = nil
	resolverCount = 0
	resolveBuf = 0
	resolveTimeout = 0
	resolveHandoff = 0
	resolverOnce = sync.Once{}
	resolverWG = sync.WaitGroup{}
	inlineResolveWG = sync.WaitGroup{}
}

func initResolverPool(resolvers Resolvers, logger *log.Logger) {
	resolverOnce.Do(func() {
		if resolvers.Tasks == nil || resolvers.Categories == nil {
			panic("resolver pool requires task and category resolvers")
		}
		if logger == nil {
			panic("Logger is not initialized")
		}
		globalResolvers = resolvers
		globalLog = logger

		resolverCount = envInt("RESOLVER_WORKERS", 8)
		resolveBuf = envInt("RESOLVER_BUFFER", 1024)
		resolveTimeout = envDur("RESOLVER_TIMEOUT", 30*time.Second)
		resolveHandoff = envDur("RESOLVER_HANDOFF_TIMEOUT", 10*time.Millisecond)

		resolveJobs = make(chan resolveJob, resolveBuf)
		for i := 0; i < resolverCount; i++ {
			resolverWG.Add(1)
			go resolveWorker(i, resolveJobs)
		}
		globalLog.Infof("resolver pool started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
			resolverCount, resolveBuf, resolveTimeout, resolveHandoff)
	})
}

func resolveWorker(id int, jobCh <-chan resolveJob) {
	defer resolverWG.Done()
	for j := range jobCh {
		runResolve(j, id)
	}
}

func runResolve(j resolveJob, workerID int) {
	resolver := globalResolvers.Tasks
	if j.kind == resolveCategories {
		resolver = globalResolvers.Categories
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	err := resolver.Resolve(ctx, j.userID, j.parentID)
	cancel()

	if err != nil {
		// Best-effort: the stale positions stay until the next move
		// triggers resolution again.
		globalLog.Errorf("resolve failed, err: %v, parent: %s, user: %s, worker: %d", err, j.parentID, j.userID, workerID)
		return
	}
	if globalResolvers.Cache != nil {
		globalResolvers.Cache.InvalidateBoard(context.Background(), j.userID)
	}
}

// scheduleResolve hands the job to the pool without blocking the caller
// beyond a short handoff window. When the pool is saturated or not running,
// resolution runs on a detached goroutine so the repair still happens.
func scheduleResolve(j resolveJob) bool {
	if tryEnqueueResolve(j) {
		return true
	}

	if globalResolvers.Tasks == nil {
		return false
	}
	if globalLog != nil {
		globalLog.Warn("resolver pool saturated; resolving detached")
	}
	inlineResolveWG.Add(1)
	go func() {
		defer inlineResolveWG.Done()
		runResolve(j, -1)
	}()
	return true
}

func tryEnqueueResolve(j resolveJob) bool {
	if resolveJobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(resolveJobs, j); closed {
		return false
	} else if ok {
		return true
	}

	if resolveHandoff <= 0 {
		return false
	}

	timer := time.NewTimer(resolveHandoff)
	defer timer.Stop()

	ok, closed := sendWithTimer(resolveJobs, j, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan resolveJob, j resolveJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- j:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan resolveJob, j resolveJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- j:
		return true, false
	case <-timer:
		return false, false
	}
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDur(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}
