package annexb

import (
	"testing"

	"github.com/aler9/gortsplib/v2/pkg/codecs/h264"
	"github.com/stretchr/testify/require"

	"github.com/bluenviron/flv2hls/pkg/buffer"
)

var testSPS = []byte{
	0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02,
	0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04,
	0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9,
	0x20,
}

var testPPS = []byte{0x68, 0xce, 0x3c, 0x80}

var (
	testSEI    = []byte{0x06, 0x05, 0x01, 0xff}
	testIDR    = []byte{0x65, 0x88, 0x84, 0x00}
	testNonIDR = []byte{0x41, 0x9a, 0x02}
)

func avcConfig(sps []byte, pps []byte) []byte {
	ret := []byte{
		0x17, 0x00, 0x00, 0x00, 0x00,
		0x01, sps[1], sps[2], sps[3], 0xff, 0xe1,
		byte(len(sps) >> 8), byte(len(sps)),
	}
	ret = append(ret, sps...)
	ret = append(ret, 0x01, byte(len(pps)>>8), byte(len(pps)))
	ret = append(ret, pps...)
	return ret
}

func avcc(lengthSize int, nalus ...[]byte) []byte {
	var ret []byte
	for _, nalu := range nalus {
		for i := lengthSize - 1; i >= 0; i-- {
			ret = append(ret, byte(len(nalu)>>(8*i)))
		}
		ret = append(ret, nalu...)
	}
	return ret
}

func concat(bufs ...[]byte) []byte {
	var ret []byte
	for _, b := range bufs {
		ret = append(ret, b...)
	}
	return ret
}

var (
	aud        = []byte{0x00, 0x00, 0x00, 0x01, 0x09, 0xf0}
	short      = []byte{0x00, 0x00, 0x01}
	long       = []byte{0x00, 0x00, 0x00, 0x01}
	paramSets  = concat(long, testSPS, long, testPPS)
	testConfig = avcConfig(testSPS, testPPS)
)

func TestRepackage(t *testing.T) {
	for _, ca := range []struct {
		name       string
		lengthSize int
		in         []byte
		out        []byte
	}{
		{
			"idr with sei",
			4,
			avcc(4, testSEI, testIDR),
			concat(aud, short, testSEI, paramSets, short, testIDR),
		},
		{
			"in-band parameter sets and delimiter are replaced",
			4,
			avcc(4, []byte{0x09, 0xf0}, testSPS, testPPS, testIDR),
			concat(aud, paramSets, short, testIDR),
		},
		{
			"non-idr",
			4,
			avcc(4, testNonIDR),
			concat(aud, short, testNonIDR),
		},
		{
			"idr slices share parameter sets",
			4,
			avcc(4, testIDR, testIDR),
			concat(aud, paramSets, short, testIDR, short, testIDR),
		},
		{
			"idr after non-idr",
			4,
			avcc(4, testNonIDR, testIDR),
			concat(aud, short, testNonIDR, paramSets, short, testIDR),
		},
		{
			"2-byte lengths and empty nalus",
			2,
			avcc(2, []byte{}, testNonIDR, []byte{}),
			concat(aud, short, testNonIDR),
		},
		{
			"no delimiter before other nalus",
			1,
			avcc(1, []byte{0x0c, 0xff, 0xff}, testNonIDR),
			concat(long, []byte{0x0c, 0xff, 0xff}, aud, short, testNonIDR),
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			r := NewRepackager(ca.lengthSize, testConfig)
			dst := buffer.NewFixed(1024)

			err := r.Repackage(dst, ca.in)
			require.NoError(t, err)
			require.Equal(t, ca.out, dst.Bytes())
		})
	}
}

func TestRepackageDecodable(t *testing.T) {
	r := NewRepackager(4, testConfig)
	dst := buffer.NewFixed(1024)

	err := r.Repackage(dst, avcc(4, testSEI, testIDR))
	require.NoError(t, err)

	nalus, err := h264.AnnexBUnmarshal(dst.Bytes())
	require.NoError(t, err)
	require.Equal(t, [][]byte{
		{0x09, 0xf0},
		testSEI,
		testSPS,
		testPPS,
		testIDR,
	}, nalus)
}

func TestRepackageLength(t *testing.T) {
	r := NewRepackager(4, testConfig)
	dst := buffer.NewFixed(1024)

	nalus := [][]byte{testSEI, testNonIDR, testNonIDR}
	err := r.Repackage(dst, avcc(4, nalus...))
	require.NoError(t, err)

	naluLen := 0
	for _, nalu := range nalus {
		naluLen += len(nalu)
	}

	// delimiter, then short start codes only
	require.Equal(t, naluLen+len(aud)+len(nalus)*len(short), dst.Len())
}

func TestRepackageErrors(t *testing.T) {
	for _, ca := range []struct {
		name   string
		config []byte
		in     []byte
		size   int
		err    error
	}{
		{
			"truncated length",
			testConfig,
			[]byte{0x00, 0x00, 0x00},
			1024,
			ErrTruncated,
		},
		{
			"truncated nalu",
			testConfig,
			[]byte{0x00, 0x00, 0x00, 0x05, 0x41, 0x9a},
			1024,
			ErrTruncated,
		},
		{
			"buffer full",
			testConfig,
			avcc(4, testIDR),
			len(aud) + len(paramSets),
			buffer.ErrFull,
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			r := NewRepackager(4, ca.config)
			dst := buffer.NewFixed(ca.size)

			err := r.Repackage(dst, ca.in)
			require.ErrorIs(t, err, ca.err)
			require.Equal(t, 0, dst.Len())
		})
	}
}

func TestRepackageInvalidConfig(t *testing.T) {
	r := NewRepackager(4, testConfig[:20])
	dst := buffer.NewFixed(1024)

	err := r.Repackage(dst, avcc(4, testNonIDR))
	require.NoError(t, err)
	require.Equal(t, concat(aud, short, testNonIDR), dst.Bytes())

	err = r.Repackage(dst, avcc(4, testIDR))
	require.Error(t, err)
	require.Equal(t, 0, dst.Len())
}
