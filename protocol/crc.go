package protocol

// X.25 checksum as used by the telemetry framing: CRC-16/MCRF4XX seeded
// with 0xFFFF, accumulated over the frame bytes after the magic byte plus
// the per-message CRC extra seed.

const crcInit uint16 = 0xFFFF

func crcAccumulate(b byte, crc uint16) uint16 {
	tmp := b ^ byte(crc&0xFF)
	tmp ^= tmp << 4
	return (crc >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
}

func crcCalculate(data []byte, extra byte) uint16 {
	crc := crcInit
	for _, b := range data {
		crc = crcAccumulate(b, crc)
	}
	return crcAccumulate(extra, crc)
}
