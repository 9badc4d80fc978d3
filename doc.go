// Package xsession provides a tamper-evident, self-expiring session
// container.
//
// A Container holds an application payload plus bookkeeping metadata and
// persists them through a Store under a single key. Every save stores a
// SHA-256 digest of the record; every load recomputes it and flags the
// container corrupt when the stored bytes were altered. Valid sessions
// slide their expiry forward by the expiration increment on each load.
//
// Usage:
//
//	type User struct {
//	    Authenticated bool
//	    UserID        string
//	}
//
//	store := memstore.New()
//	sess := xsession.New[User](store, xsession.WithExpirationIncrement(30*time.Minute))
//	defer sess.Close()
//
//	sess.Load(true)
//	if sess.IsError() {
//	    sess.Reset()
//	}
//	sess.SetPayload(User{Authenticated: true, UserID: "admin"})
//	sess.Save()
package xsession
