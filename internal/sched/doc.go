// Package sched provides the clock and cancellable one-shot timers that
// drive resend cooldowns and the staged welcome sequence. State machines
// own their timers and must stop them on teardown; a stopped timer never
// invokes its callback.
package sched
