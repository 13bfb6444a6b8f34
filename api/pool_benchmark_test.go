package api

import "testing"

func BenchmarkTryEnqueueResolve(b *testing.B) {
	job := resolveJob{userID: "user", parentID: "col-1", kind: resolveTasks}

	b.Run("Buffered", func(b *testing.B) {
		resetResolverPoolForTests()
		defer resetResolverPoolForTests()

		resolveJobs = make(chan resolveJob, 1024)
		resolveHandoff = 0

		b.ReportAllocs()
		for b.Loop() {
			if !tryEnqueueResolve(job) {
				b.Fatal("expected buffered enqueue to succeed")
			}
			select {
			case <-resolveJobs:
			default:
				b.Fatal("expected buffered job to be queued")
			}
		}
	})

	b.Run("BufferFull", func(b *testing.B) {
		resetResolverPoolForTests()
		defer resetResolverPoolForTests()

		resolveJobs = make(chan resolveJob, 1)
		resolveHandoff = 0
		resolveJobs <- resolveJob{}

		b.ReportAllocs()
		for b.Loop() {
			if tryEnqueueResolve(job) {
				b.Fatal("expected enqueue to fail with full buffer")
			}
		}
	})
}
