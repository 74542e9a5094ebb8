// Package session stores call conversations between requests.
//
// Invariants:
// - Session ids are validated and path-safe before touching disk.
// - An unknown session id yields a fresh conversation, never an error.
// - Work on the same session is serialized through the Locker.
// - Idle sessions are evicted by the Sweeper after the configured TTL.
//
// Usage:
//
//	store, _ := session.NewStore(cfg.Session, logger)
//	conv, _ := store.GetOrCreate(ctx, "ab12cd")
//	conv.AppendHuman("yes, speaking")
//	_ = store.Save(ctx, conv)
package session
