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

package bytes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jigsaw-Code/edge-net/bytes"
)

func TestReaderSliceUnderflow(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2, 3})
	s, err := r.Slice(2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, s)

	_, err = r.Slice(2)
	require.ErrorIs(t, err, bytes.ErrDataUnderflow)
}

func TestReaderU16U32(t *testing.T) {
	r := bytes.NewReader([]byte{0x01, 0x02, 0x00, 0x00, 0x00, 0x2a})
	v16, err := r.U16()
	require.NoError(t, err)
	require.EqualValues(t, 0x0102, v16)

	v32, err := r.U32()
	require.NoError(t, err)
	require.EqualValues(t, 0x2a, v32)
}

func TestWriterOverflow(t *testing.T) {
	buf := make([]byte, 2)
	w := bytes.NewWriter(buf)
	_, err := w.PushU16(0xabcd)
	require.NoError(t, err)

	_, err = w.PushByte(1)
	require.ErrorIs(t, err, bytes.ErrBufferOverflow)
}

func TestChecksumFold(t *testing.T) {
	// Ones'-complement end-around carry folds back in: 0xffff + 0x0001 => 0x10000 => fold to 1, NOT => 0xfffe.
	require.EqualValues(t, 0xfffe, bytes.ChecksumFold(0x10000))
}
