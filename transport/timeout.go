// Copyright 2019 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"time"
)

// ErrTimeout is the uniform timeout error every deadline decorator in this
// package reports, regardless of how the underlying operation expressed
// the timeout (context.DeadlineExceeded, os.ErrDeadlineExceeded, or a
// net.Error with Timeout() true).
var ErrTimeout = errors.New("transport: operation timed out")

// WithTimeout runs op under a context bounded by d, translating a deadline
// expiry into ErrTimeout. Any other error from op passes through verbatim.
func WithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := op(opCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if err != nil && opCtx.Err() == context.DeadlineExceeded {
		// op surfaced the expiry as an I/O error on a deadline-aware conn.
		if isTimeout(err) {
			return ErrTimeout
		}
	}
	return err
}

// TimeoutConn decorates a StreamConn so every Read and Write carries a
// fresh per-operation deadline, reported uniformly as ErrTimeout. A zero
// Op leaves the connection undecorated.
type TimeoutConn struct {
	StreamConn
	// Op is the deadline applied to each individual Read/Write.
	Op time.Duration
}

var _ StreamConn = (*TimeoutConn)(nil)

func (c *TimeoutConn) Read(p []byte) (int, error) {
	if c.Op > 0 {
		if err := c.StreamConn.SetReadDeadline(time.Now().Add(c.Op)); err != nil {
			return 0, err
		}
	}
	n, err := c.StreamConn.Read(p)
	if isTimeout(err) {
		return n, ErrTimeout
	}
	return n, err
}

func (c *TimeoutConn) Write(p []byte) (int, error) {
	if c.Op > 0 {
		if err := c.StreamConn.SetWriteDeadline(time.Now().Add(c.Op)); err != nil {
			return 0, err
		}
	}
	n, err := c.StreamConn.Write(p)
	if isTimeout(err) {
		return n, ErrTimeout
	}
	return n, err
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
