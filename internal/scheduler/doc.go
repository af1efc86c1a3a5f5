// Package scheduler contains the minute-driven orchestration core:
//
//   - Ticker: wakes on wall-clock minute boundaries (drift-corrected,
//     clock-injected so tests never sleep)
//   - Ledger: the persisted execution checkpoint guaranteeing at-most-one
//     matching pass per minute, including across crash/restart
//   - Matcher: resolves which schedules are due at a given local time
//   - Orchestrator: composes the above with the audio player and advances
//     the checkpoint
//
// Missed minutes are never backfilled: a bell rung late is worse than a bell
// not rung.
package scheduler
