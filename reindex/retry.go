// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reindex

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage"
)

// isPermanent reports failures that another attempt on the same files cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, storage.ErrInvalidPath) ||
		errors.Is(err, storage.ErrAlreadyExists) ||
		errors.Is(err, core.ErrInvalidChunkSize) ||
		errors.Is(err, core.ErrEncodeFailed) ||
		errors.Is(err, fs.ErrPermission)
}

// RetryWithBackoff runs operation up to maxAttempts times, sleeping
// baseDelay, 2*baseDelay, 4*baseDelay... between failures. Permanent
// failures and cancellation of ctx end the loop early. The last operation
// error is returned on exhaustion.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var err error
	delay := baseDelay
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = operation(); err == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if isPermanent(err) {
			slog.Debug("operation failed permanently", "attempt", attempt, "err", err)
			return err
		}
		if attempt == maxAttempts {
			return err
		}
		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
