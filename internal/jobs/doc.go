/*
Package jobs holds the in-memory registry of uploads being processed.

Each job has a UUID, a Stage and a progress percentage. Stages own fixed
windows of the 0-100 range (uploading 0-20, probing 20-25, detecting 25-50,
transforming 50-95, single-pass encoding 25-95, streaming 95-100), and
progress reported within a stage is mapped into its window. Progress never
decreases and never exceeds 100.

The registry is created once and passed to the HTTP handlers. Callers must
Remove a job on every exit path; polling an unknown or finished id reports 0.
*/
package jobs
