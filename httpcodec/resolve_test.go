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

package httpcodec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jigsaw-Code/edge-net/httpcodec"
)

func TestResolveConnectionTypeExplicitWins(t *testing.T) {
	h := httpcodec.Headers{{Name: "Connection", Value: "close"}}
	ct, err := httpcodec.ResolveConnectionType(h, httpcodec.Version{Minor: 1}, 0, false, false)
	require.NoError(t, err)
	require.Equal(t, httpcodec.ConnectionClose, ct)
}

func TestResolveConnectionTypeDefaultsByVersion(t *testing.T) {
	ct, err := httpcodec.ResolveConnectionType(nil, httpcodec.Version{Minor: 1}, 0, false, false)
	require.NoError(t, err)
	require.Equal(t, httpcodec.ConnectionKeepAlive, ct)

	ct, err = httpcodec.ResolveConnectionType(nil, httpcodec.Version{Minor: 0}, 0, false, false)
	require.NoError(t, err)
	require.Equal(t, httpcodec.ConnectionClose, ct)
}

func TestResolveConnectionTypeCarryOver(t *testing.T) {
	ct, err := httpcodec.ResolveConnectionType(nil, httpcodec.Version{Minor: 1}, httpcodec.ConnectionClose, true, true)
	require.NoError(t, err)
	require.Equal(t, httpcodec.ConnectionClose, ct)
}

func TestResolveConnectionTypeResponseCannotOverrideCloseCarryOver(t *testing.T) {
	h := httpcodec.Headers{{Name: "Connection", Value: "keep-alive"}}
	_, err := httpcodec.ResolveConnectionType(h, httpcodec.Version{Minor: 1}, httpcodec.ConnectionClose, true, true)
	require.ErrorIs(t, err, httpcodec.ErrHeadersMismatchConnectionType)
}

func TestResolveBodyTypeChunkedOnHTTP10Errors(t *testing.T) {
	h := httpcodec.Headers{{Name: "Transfer-Encoding", Value: "chunked"}}
	_, _, err := httpcodec.ResolveBodyType(h, httpcodec.Version{Minor: 0}, false, httpcodec.ConnectionClose, false)
	require.ErrorIs(t, err, httpcodec.ErrHeadersMismatchBodyType)
}

func TestResolveBodyTypeExplicitContentLength(t *testing.T) {
	h := httpcodec.Headers{{Name: "Content-Length", Value: "42"}}
	bt, n, err := httpcodec.ResolveBodyType(h, httpcodec.Version{Minor: 1}, false, httpcodec.ConnectionKeepAlive, false)
	require.NoError(t, err)
	require.Equal(t, httpcodec.BodyTypeContentLen, bt)
	require.Equal(t, 42, n)
}

func TestResolveBodyTypeRequestDefaultsToZeroContentLen(t *testing.T) {
	bt, n, err := httpcodec.ResolveBodyType(nil, httpcodec.Version{Minor: 1}, false, httpcodec.ConnectionKeepAlive, false)
	require.NoError(t, err)
	require.Equal(t, httpcodec.BodyTypeContentLen, bt)
	require.Equal(t, 0, n)
}

func TestResolveBodyTypeRequestDefaultsToChunkedWhenEnabled(t *testing.T) {
	bt, _, err := httpcodec.ResolveBodyType(nil, httpcodec.Version{Minor: 1}, false, httpcodec.ConnectionKeepAlive, true)
	require.NoError(t, err)
	require.Equal(t, httpcodec.BodyTypeChunked, bt)
}

func TestResolveBodyTypeResponseCloseDefaultsToRaw(t *testing.T) {
	bt, _, err := httpcodec.ResolveBodyType(nil, httpcodec.Version{Minor: 1}, true, httpcodec.ConnectionClose, false)
	require.NoError(t, err)
	require.Equal(t, httpcodec.BodyTypeRaw, bt)
}

func TestResolveBodyTypeResponseKeepAliveUnspecifiedErrors(t *testing.T) {
	_, _, err := httpcodec.ResolveBodyType(nil, httpcodec.Version{Minor: 1}, true, httpcodec.ConnectionKeepAlive, false)
	require.ErrorIs(t, err, httpcodec.ErrHeadersMismatchBodyType)
}

func TestResolveBodyTypeResponseKeepAliveChunkedWhenEnabled(t *testing.T) {
	bt, _, err := httpcodec.ResolveBodyType(nil, httpcodec.Version{Minor: 1}, true, httpcodec.ConnectionKeepAlive, true)
	require.NoError(t, err)
	require.Equal(t, httpcodec.BodyTypeChunked, bt)
}
