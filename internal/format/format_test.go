package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Encoding_RoundTripWords(t *testing.T) {
	buf := make([]byte, 16)
	PutU32(buf, 4, 0xdeadbeef)
	require.Equal(t, uint32(0xdeadbeef), ReadU32(buf, 4))
	require.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, buf[4:8])
}

func Test_Encoding_Fill(t *testing.T) {
	buf := make([]byte, 37)
	Fill(buf, 0xa5)
	for i, b := range buf {
		require.Equalf(t, byte(0xa5), b, "byte %d", i)
	}
	Fill(nil, 1)
}

func Test_Align_Helpers(t *testing.T) {
	const pageSize = 4096

	require.Equal(t, uint32(4096), AlignUp(1, pageSize))
	require.Equal(t, uint32(4096), AlignUp(4096, pageSize))
	require.Equal(t, uint32(8192), AlignUp(4097, pageSize))
	require.Equal(t, uint32(4096), AlignDown(8191, pageSize))

	require.True(t, IsAligned(64, 64))
	require.False(t, IsAligned(72, 64))
}

func Test_Align_PowerOfTwo(t *testing.T) {
	require.True(t, IsPowerOfTwo(1))
	require.True(t, IsPowerOfTwo(64))
	require.False(t, IsPowerOfTwo(0))
	require.False(t, IsPowerOfTwo(48))

	require.Equal(t, uint32(1), NextPowerOfTwo(0))
	require.Equal(t, uint32(64), NextPowerOfTwo(33))
	require.Equal(t, uint32(64), NextPowerOfTwo(64))
	require.Equal(t, uint32(1<<31), NextPowerOfTwo(1<<31))
	require.Equal(t, uint32(0), NextPowerOfTwo(1<<31+1))
}
