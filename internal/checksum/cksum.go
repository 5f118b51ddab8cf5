package checksum

import "hash"

// cksumTable is the MSB-first CRC-32 table for polynomial 0x04C11DB7 used by
// POSIX cksum. hash/crc32 only provides the reflected form.
var cksumTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i) << 24
		for range 8 {
			if c&0x80000000 != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// cksum computes the POSIX cksum CRC. The length of the input is folded in
// when Sum32 is called.
type cksum struct {
	crc uint32
	n   uint64
}

var _ hash.Hash32 = (*cksum)(nil)

func newCksum() *cksum { return &cksum{} }

func (c *cksum) Write(p []byte) (int, error) {
	for _, b := range p {
		c.crc = c.crc<<8 ^ cksumTable[byte(c.crc>>24)^b]
	}
	c.n += uint64(len(p))
	return len(p), nil
}

func (c *cksum) Sum32() uint32 {
	crc := c.crc
	for n := c.n; n != 0; n >>= 8 {
		crc = crc<<8 ^ cksumTable[byte(crc>>24)^byte(n)]
	}
	return ^crc
}

func (c *cksum) Sum(b []byte) []byte {
	s := c.Sum32()
	return append(b, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (c *cksum) Reset()         { c.crc, c.n = 0, 0 }
func (c *cksum) Size() int      { return 4 }
func (c *cksum) BlockSize() int { return 1 }
