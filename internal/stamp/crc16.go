package stamp

// crc16 implements CRC-16/CCITT-FALSE: polynomial 0x1021, initial register
// 0xFFFF, no input or output reflection, no final XOR.
//
// The check value for "123456789" is 0x29B1.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = crc16Table[byte(crc>>8)^b] ^ (crc << 8)
	}
	return crc
}

var crc16Table = func() [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if (crc & 0x8000) != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

// crcBytes renders a checksum big-endian, as stored in the packet.
func crcBytes(crc uint16) [2]byte {
	return [2]byte{byte(crc >> 8), byte(crc)}
}
