// Package memory sizes the Go runtime memory limit for containerized
// deployments.
//
// GOMAXPROCS follows cgroup CPU limits automatically, GOMEMLIMIT does not.
// SMOOTHY spends most of its memory inside ffmpeg child processes, which are
// charged to the same container, so the Go heap only gets a small share of
// the limit by default.
//
// Call [ConfigureFromEnv] once at startup:
//
//	memory.ConfigureFromEnv()
//
// # Kubernetes
//
// Expose the container limit with the Downward API:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//	  - name: MEMORY_RATIO
//	    value: "0.25"
//
// Without MEMORY_LIMIT the cgroup v2 memory.max file is read instead.
package memory
