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

package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(attempts int) Backoff {
	return Backoff{MaxAttempts: attempts, BaseDelay: 10 * time.Millisecond}
}

func TestBackoff_Success(t *testing.T) {
	attempts := 0
	err := fastBackoff(3).Retry(context.Background(), nil, func(context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := fastBackoff(5).Retry(context.Background(), nil, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := fastBackoff(3).Retry(context.Background(), nil, func(context.Context) error {
		attempts++
		return expectedErr
	})
	assert.Equal(t, expectedErr, err, "should return the last error")
	assert.Equal(t, 3, attempts, "should attempt exactly MaxAttempts times")
}

func TestBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := fastBackoff(10).Retry(ctx, nil, func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts, "should stop when context is canceled")
}

func TestBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		attempts := 0
		err := fastBackoff(n).Retry(context.Background(), nil, func(context.Context) error {
			attempts++
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Zero(t, attempts)
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	assert.Zero(t, b.Delay(1), "no wait before the first attempt")
	assert.Equal(t, 100*time.Millisecond, b.Delay(2))
	assert.Equal(t, 200*time.Millisecond, b.Delay(3))
	assert.Equal(t, 400*time.Millisecond, b.Delay(4))
	assert.Equal(t, time.Second, b.Delay(10), "capped at MaxDelay")

	unbounded := Backoff{BaseDelay: time.Millisecond}
	assert.Equal(t, 8*time.Millisecond, unbounded.Delay(5))
}
