package image

import "sync"

const crcPoly = 0xEDB88320

// crcTable is built on first use and only read afterwards.
var crcTable = sync.OnceValue(func() *[256]uint32 {
	var table [256]uint32
	for i := range table {
		c := uint32(i)
		for j := 0; j < 8; j++ {
			if c&1 != 0 {
				c = crcPoly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		table[i] = c
	}
	return &table
})

// crc32PNG computes the chunk CRC over type followed by data.
func crc32PNG(typ, data []byte) uint32 {
	table := crcTable()
	crc := uint32(0xFFFFFFFF)
	for _, b := range typ {
		crc = table[byte(crc)^b] ^ (crc >> 8)
	}
	for _, b := range data {
		crc = table[byte(crc)^b] ^ (crc >> 8)
	}
	return crc ^ 0xFFFFFFFF
}
