package httpapi

import (
	"context"
	"net/http"
)

// serverBaseCtx is canceled by the serve command once in-flight analyses
// have been given their drain window.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level context; nil resets it to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives from req, so request-scoped values survive, and is
// additionally canceled when base is done.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(req)
	stop := context.AfterFunc(base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// analysisContext bounds one /analyze call by the client, the server
// lifetime and the optional analysis timeout.
func analysisContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	if analyzeTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, analyzeTimeout)
	return tctx, func() {
		tcancel()
		cancel()
	}
}
