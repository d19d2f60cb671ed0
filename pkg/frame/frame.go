package frame

// Sample is a single signed 16-bit PCM amplitude value.
type Sample = int16

// PCMFrame is a block of raw PCM samples. On the board a frame is the
// hardware DMA transfer granularity, but the type itself carries no
// fixed length so devices can negotiate their own sizes.
type PCMFrame []Sample

// ByteLen returns the encoded size of the frame in bytes.
func (f PCMFrame) ByteLen() int {
	return 2 * len(f)
}

// AppendBytes encodes the frame as little-endian 16-bit samples,
// appending to dst and returning the extended slice.
func (f PCMFrame) AppendBytes(dst []byte) []byte {
	for _, s := range f {
		dst = append(dst, byte(uint16(s)), byte(uint16(s)>>8))
	}
	return dst
}

// DecodeBytes interprets src as little-endian 16-bit samples and
// decodes them into dst. Decoding stops at the shorter of the two; the
// number of samples decoded is returned. A trailing odd byte in src is
// ignored.
func DecodeBytes(dst PCMFrame, src []byte) int {
	n := len(src) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = Sample(uint16(src[2*i]) | uint16(src[2*i+1])<<8)
	}
	return n
}
