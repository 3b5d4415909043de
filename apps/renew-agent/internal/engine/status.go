package engine

import "github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"

// 利用者向けの進捗表示
const (
	StatusConnecting      = "Connecting to Translink. Just a moment."
	StatusReady           = "Click away!"
	StatusSelectingSchool = "Selecting School"
	StatusSigningIn       = "Signing in"
	StatusCheckingPass    = "Checking your UPass"
	StatusRequesting      = "Requesting the latest UPass"
	StatusVerifying       = "Verifying your UPass"
)

// StatusOffline は疎通断時の表示
var StatusOffline = renewerr.KindTransport.Title()
