// Command tempodel schedules files and directories for deletion.
//
// Schedule edits and one-off passes work directly on the schedule file, so
// they are safe to run while tempodeld is active. Commands accepting --remote
// go through the daemon HTTP API instead.
package main
