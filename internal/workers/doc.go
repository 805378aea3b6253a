/*
Package workers sizes and bounds concurrent encoding work.

Count and ForCPU use GOMAXPROCS rather than runtime.NumCPU so container CPU
limits are respected. On a pod limited to 2 CPUs running on a 64-core node,
runtime.NumCPU reports 64 while GOMAXPROCS reports 2.

Slots is a semaphore of job slots. Each upload holds one slot while ffmpeg
runs, so encoding never oversubscribes the CPUs:

	slots := workers.NewSlots(workers.DefaultJobSlots())

	release, err := slots.Acquire(ctx)
	if err != nil {
		return err // ctx ended while queued
	}
	defer release()

Time spent waiting in Acquire is recorded in the job slot wait histogram
and counts against whatever deadline ctx carries.
*/
package workers
