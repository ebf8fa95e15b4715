package model

import "github.com/ckeiituk/iplist-bot/internal/notify"

// PendingBuild is a notification deferred until the CI build that consumes
// the published commit completes. Created strictly after a successful
// publish; removed from the ledger exactly once by webhook resolution.
type PendingBuild struct {
	UserID int64
	Domain string
	Target notify.Target
}
