package store

// Package store is calendd's persistence layer (SQLite).
//
// It holds:
//   - Event records (the calendar itself)
//   - Armed triggers (the durable half of the wake registry, so pending
//     reminders survive process restarts)
