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

package httpcodec

import (
	"context"

	"github.com/Jigsaw-Code/edge-net/transport"
)

// DialClientConnection dials addr via dialer and wraps the resulting
// transport.StreamConn as a ClientConnection.
func DialClientConnection(ctx context.Context, dialer transport.StreamDialer, addr string, maxHeaders int) (*ClientConnection, error) {
	conn, err := dialer.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return NewClientConnection(conn, maxHeaders), nil
}
