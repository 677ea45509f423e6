// Package cloudsync keeps the local account set and one remote backup file
// in step.
//
// A sync run authenticates with the active cloud.Provider, compares the
// remote file's modification time with the last successful sync recorded in
// settings, then uploads, downloads and merges, or does nothing. Merging only
// adds accounts whose (issuer, accountName, secretKey) triple is unknown
// locally; edits to an account that exists on both sides are not reconciled.
//
// Runs are single-flight. A second caller blocks until the first finishes or
// its own context ends, so a context deadline doubles as a timeout policy.
// Any failure leaves local accounts and the recorded sync time untouched.
//
// Progress is published as Event values to subscribers:
//
//	unsubscribe := m.Subscribe(func(ev cloudsync.Event) {
//		fmt.Println(ev.Status, ev.Message)
//	})
//	defer unsubscribe()
//	result, err := m.Sync(ctx, password)
package cloudsync
