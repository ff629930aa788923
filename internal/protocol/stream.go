package protocol

import (
	"encoding/binary"
	"fmt"
)

// DecodeFrames splits a raw byte stream into packets. It returns the
// decoded packets, the unconsumed tail (an incomplete trailing frame stays
// buffered for the next read), and an error when the stream is corrupt
// beyond recovery (an oversized length field).
func DecodeFrames(data []byte) ([]*Packet, []byte, error) {
	var packets []*Packet

	for len(data) >= HeaderSize {
		id := binary.LittleEndian.Uint16(data[0:2])
		// data[2] is the legacy compression flag, always skipped.
		size := binary.LittleEndian.Uint32(data[3:7])

		if size > MaxPayloadSize {
			return packets, nil, fmt.Errorf("packet %s declares %d byte payload", PacketName(id), size)
		}
		if len(data) < HeaderSize+int(size) {
			break
		}

		payload := make([]byte, size)
		copy(payload, data[HeaderSize:HeaderSize+int(size)])
		packets = append(packets, NewPacket(id, payload))

		data = data[HeaderSize+int(size):]
	}

	rest := make([]byte, len(data))
	copy(rest, data)
	return packets, rest, nil
}
