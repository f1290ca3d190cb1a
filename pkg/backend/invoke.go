// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-secgateway.
//
// go-secgateway is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package backend

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// Invoke is the boundary between the gateway and a backend. It refuses
// kinds outside b's capabilities, honours a context that is already done,
// recovers panics and rejects malformed results, so the caller always gets
// a valid canonical result.
func Invoke(ctx context.Context, b CryptoBackend, req *types.Request, log logger.Logger) (res types.Result) {
	if b == nil {
		return types.Fail(failure.Core(failure.CoreServiceUnavailable, "no backend selected"))
	}
	if log == nil {
		log = logger.NoOp()
	}
	if !b.Capabilities().Supports(req.Kind) {
		return types.Fail(failure.Core(failure.CoreUnsupportedOperation,
			"%s backend does not support %s", b.Type(), req.Kind).
			WithContext("backend", b.Type().String()).
			WithContext("operation", req.Kind.String()))
	}
	if err := ctx.Err(); err != nil {
		return types.FailWith(err)
	}

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "backend panicked",
				logger.String("backend", b.Type().String()),
				logger.String("operation", req.Kind.String()),
				logger.String("panic", fmt.Sprint(r)),
				logger.String("stack", string(debug.Stack())))
			res = types.Fail(failure.Core(failure.CoreInternal, "%s backend panicked", b.Type()))
		}
	}()

	res = b.Perform(ctx, req)
	if !res.Valid() {
		log.ErrorContext(ctx, "backend returned a malformed result",
			logger.String("backend", b.Type().String()),
			logger.String("operation", req.Kind.String()))
		return types.Fail(failure.Core(failure.CoreInternal, "%s backend returned neither data nor failure", b.Type()))
	}
	return res
}
