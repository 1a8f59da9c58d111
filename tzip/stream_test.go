package tzip

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/ridge/must/v2"
	"github.com/stretchr/testify/require"
)

// split cuts data into n pieces at random positions
func split(rnd *rand.Rand, data []byte, n int) [][]byte {
	res := make([][]byte, 0, n)
	for i := 1; i < n; i++ {
		cut := 0
		if len(data) > 0 {
			cut = rnd.Intn(len(data) + 1)
		}
		res = append(res, data[:cut])
		data = data[cut:]
	}
	return append(res, data)
}

func TestStreamRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	for _, size := range []int{0, 10, ChunkSize + 3, 5 * WindowSize, 1 << 20} {
		for _, n := range []int{1, 2, 7, 50} {
			input := sample(rnd, size)

			enc, err := NewStream(true)
			require.NoError(t, err)
			dec, err := NewStream(true)
			require.NoError(t, err)

			var dict, output []byte
			for _, part := range split(rnd, input, n) {
				msg, err := enc.Compress(part)
				require.NoError(t, err)

				var data []byte
				data, dict, err = dec.Decompress(msg, dict)
				require.NoError(t, err)
				require.Equal(t, len(part), len(data))
				output = append(output, data...)
				require.LessOrEqual(t, len(dict), WindowSize)
			}
			require.True(t, bytes.Equal(input, output), "size=%d n=%d", size, n)

			require.NoError(t, enc.Close())
			require.NoError(t, dec.Close())
		}
	}
}

func TestStreamSameAsSingleCall(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	input := sample(rnd, 3*WindowSize)

	decodeAll := func(parts [][]byte) []byte {
		enc, err := NewStream(true)
		require.NoError(t, err)
		defer enc.Close()
		dec, err := NewStream(true)
		require.NoError(t, err)
		defer dec.Close()

		var dict, output []byte
		for _, part := range parts {
			msg, err := enc.Compress(part)
			require.NoError(t, err)
			var data []byte
			data, dict, err = dec.Decompress(msg, dict)
			require.NoError(t, err)
			output = append(output, data...)
		}
		return output
	}

	require.Equal(t, decodeAll([][]byte{input}), decodeAll(split(rnd, input, 9)))
}

func TestStreamUsesHistory(t *testing.T) {
	enc, err := NewStream(true)
	require.NoError(t, err)
	defer enc.Close()

	message := sample(rand.New(rand.NewSource(4)), 1000)
	first, err := enc.Compress(message)
	require.NoError(t, err)
	second, err := enc.Compress(message)
	require.NoError(t, err)
	require.Less(t, len(second), len(first)/2)

	dec, err := NewStream(true)
	require.NoError(t, err)
	defer dec.Close()

	_, dict, err := dec.Decompress(first, nil)
	require.NoError(t, err)

	// Without the dictionary the back-references of the second message
	// point before the start of the stream
	_, _, err = dec.Decompress(second, nil)
	require.ErrorIs(t, err, ErrCorrupt)

	data, _, err := dec.Decompress(second, dict)
	require.NoError(t, err)
	require.Equal(t, message, data)
}

func TestStreamTrimsSyncMarker(t *testing.T) {
	enc, err := NewStream(true)
	require.NoError(t, err)
	defer enc.Close()

	msg, err := enc.Compress([]byte("hello"))
	require.NoError(t, err)

	single, err := Compress([]byte("hello"), true)
	require.NoError(t, err)
	require.NotEqual(t, single, msg)

	data, err := Decompress(append(append([]byte(nil), msg...), messageTail...), true)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestStreamGzipMode(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	input := sample(rnd, 3*WindowSize)

	enc, err := NewStream(false)
	require.NoError(t, err)
	require.False(t, enc.Raw())
	dec, err := NewStream(false)
	require.NoError(t, err)

	parts := append([][]byte{[]byte("abc"), nil}, split(rnd, input, 6)...)
	parts = append(parts, []byte("abc"))

	var dict, output []byte
	for i, part := range parts {
		msg, err := enc.Compress(part)
		require.NoError(t, err)
		if i == 0 {
			require.Equal(t, []byte{0x1f, 0x8b}, msg[:2])
		}

		var data []byte
		data, dict, err = dec.Decompress(msg, dict)
		require.NoError(t, err, "message %d", i)
		require.Equal(t, len(part), len(data))
		output = append(output, data...)
	}
	expected := append(append([]byte("abc"), input...), "abc"...)
	require.True(t, bytes.Equal(expected, output))

	require.NoError(t, enc.Close())
	require.NoError(t, dec.Close())
}

func TestStreamGzipFirstMessage(t *testing.T) {
	s, err := NewStream(false)
	require.NoError(t, err)

	msg, err := s.Compress([]byte("hello"))
	require.NoError(t, err)

	_, _, err = s.Decompress(msg, []byte("dict"))
	require.ErrorIs(t, err, ErrDictionary)

	_, _, err = s.Decompress([]byte("not a gzip header"), nil)
	require.ErrorIs(t, err, ErrCorrupt)
	_, _, err = s.Decompress(msg[:5], nil)
	require.ErrorIs(t, err, ErrCorrupt)

	// failed calls leave the stream waiting for the header
	data, dict, err := s.Decompress(msg, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
	require.Equal(t, []byte("hello"), dict)

	require.NoError(t, s.Close())
}

func TestStreamGzipOneShotInput(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Name = "hello.txt"
	w.Comment = "greeting"
	w.Extra = []byte{1, 2, 3}
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	for _, gz := range [][]byte{buf.Bytes(), must.OK1(Compress([]byte("hello"), false))} {
		s, err := NewStream(false)
		require.NoError(t, err)
		data, _, err := s.Decompress(gz, nil)
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), data)
		require.NoError(t, s.Close())
	}
}

func TestStreamDecompressCorrupt(t *testing.T) {
	s, err := NewStream(true)
	require.NoError(t, err)

	out, dict, err := s.Decompress([]byte{0xff, 0xff, 0xff, 0xff}, nil)
	require.ErrorIs(t, err, ErrCorrupt)
	require.Nil(t, out)
	require.Nil(t, dict)

	// the stream survives a failed call
	msg, err := s.Compress([]byte("still alive"))
	require.NoError(t, err)
	require.NotEmpty(t, msg)

	require.NoError(t, s.Close())
}

func TestStreamClose(t *testing.T) {
	s, err := NewStream(true)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Close(), ErrStreamClosed)

	_, err = s.Compress([]byte("x"))
	require.ErrorIs(t, err, ErrStreamClosed)
	_, _, err = s.Decompress([]byte("x"), nil)
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestWindow(t *testing.T) {
	require.Equal(t, []byte("abcdef"), window([]byte("abc"), []byte("def")))
	require.Empty(t, window(nil, nil))

	big := bytes.Repeat([]byte{'x'}, WindowSize+10)
	require.Len(t, window([]byte("abc"), big), WindowSize)

	dict := bytes.Repeat([]byte{'d'}, WindowSize)
	w := window(dict, []byte("tail"))
	require.Len(t, w, WindowSize)
	require.True(t, bytes.HasSuffix(w, []byte("dtail")))
}
