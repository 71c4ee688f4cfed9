package download

// Assembler owns the fixed-size destination buffer of a blob. It never
// grows or reallocates the buffer.
type Assembler struct {
	buf []byte
}

// NewAssembler allocates a zeroed buffer of total bytes.
func NewAssembler(total int64) *Assembler {
	return &Assembler{buf: make([]byte, total)}
}

// Write copies p into the buffer at offset, overwriting what was there.
// Writes that would fall outside the buffer fail with a *BoundsError and
// leave the buffer untouched.
func (a *Assembler) Write(offset int64, p []byte) error {
	total := int64(len(a.buf))
	if offset < 0 || offset > total || int64(len(p)) > total-offset {
		return &BoundsError{Offset: offset, Length: int64(len(p)), Total: total}
	}

	copy(a.buf[offset:], p)

	return nil
}

// Bytes returns the whole buffer. Until coverage is complete the
// contents are only partially written and must not be trusted.
func (a *Assembler) Bytes() []byte {
	return a.buf
}

// Len returns the fixed buffer length.
func (a *Assembler) Len() int64 {
	return int64(len(a.buf))
}
