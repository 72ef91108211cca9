// SPDX-License-Identifier: MIT
package udp

import (
	applog "beatmap/internal/log"
	"beatmap/internal/transport"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
)

const (
	// HeaderSize is the fixed packet header length in bytes.
	HeaderSize = 4 + 4 + 4 + 2
	// MaxValuesPerPacket keeps packets below a 1500-byte Ethernet MTU.
	MaxValuesPerPacket = 346
)

// ErrShortPacket is returned by ParsePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Frame Offset      | uint32         | 4            | Index of first value    |
| Time Per Frame    | float32        | 4            | Seconds per frame       |
| Value Count       | uint16         | 2            | Number of floats (N)    |
| Values            | []float32      | N * 4        | Series values           |
+-----------------------------------------------------------------------------+

|<---- 4 Bytes ---->|<---- 4 Bytes ---->|<---- 4 Bytes ---->|<-- 2 Bytes -->|<-- N * 4 Bytes -->|
+-------------------+-------------------+-------------------+---------------+--------------------+
|  Sequence Number  |   Frame Offset    |  Time Per Frame   |  Value Count  |       Values       |
|      (uint32)     |     (uint32)      |     (float32)     |    (uint16)   |   (N * float32)    |
+-------------------+-------------------+-------------------+---------------+--------------------+

A series longer than MaxValuesPerPacket is split over consecutive packets.
*/

// Packet is one decoded datagram.
type Packet struct {
	Sequence     uint32
	FrameOffset  uint32
	TimePerFrame float32
	Values       []float32
}

// UDPPublisher packs series messages into datagrams and sends them with a
// UDPSender. Other message types are skipped since the datagram layout
// carries series only.
type UDPPublisher struct {
	sender *UDPSender
	only   string // Series name to publish; empty publishes every series.

	mu           sync.Mutex
	sequenceNum  uint32
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher returns a publisher writing through sender. When name is
// non-empty only series with that name are sent.
func NewUDPPublisher(sender *UDPSender, name string) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	applog.Infof("Transport: UDP publisher sending to %s", sender.Target())

	return &UDPPublisher{
		sender:       sender,
		only:         name,
		f32Buffer:    make([]float32, 0, MaxValuesPerPacket),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Send implements transport.Transport.
func (p *UDPPublisher) Send(data any) error {
	var series transport.Series
	switch v := data.(type) {
	case transport.Series:
		series = v
	case *transport.Series:
		series = *v
	default:
		applog.Debugf("Transport: UDP publisher skipping %T", data)
		return nil
	}

	if p.only != "" && series.Name != p.only {
		return nil
	}
	return p.publish(series)
}

func (p *UDPPublisher) publish(series transport.Series) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for offset := 0; offset < len(series.Values) || offset == 0; offset += MaxValuesPerPacket {
		end := min(offset+MaxValuesPerPacket, len(series.Values))

		p.f32Buffer = p.f32Buffer[:0]
		for _, v := range series.Values[offset:end] {
			p.f32Buffer = append(p.f32Buffer, float32(v))
		}

		p.sequenceNum++
		packet, err := p.pack(uint32(offset), float32(series.TimePerFrame))
		if err != nil {
			return err
		}
		if err := p.sender.Send(packet); err != nil {
			return err
		}
		applog.Debugf("Transport: Sent UDP packet %d (%d bytes)", p.sequenceNum, len(packet))

		if end == len(series.Values) {
			break
		}
	}
	return nil
}

func (p *UDPPublisher) pack(offset uint32, timePerFrame float32) ([]byte, error) {
	p.packetBuffer.Reset()

	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, offset)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, timePerFrame)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(p.f32Buffer)))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer)
	}
	if err != nil {
		return nil, fmt.Errorf("UDPPublisher: packing packet: %w", err)
	}
	return p.packetBuffer.Bytes(), nil
}

// Sequence returns the number of packets sent so far.
func (p *UDPPublisher) Sequence() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequenceNum
}

// Close closes the underlying sender.
func (p *UDPPublisher) Close() error {
	return p.sender.Close()
}

// ParsePacket decodes a datagram produced by UDPPublisher.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}

	pkt := Packet{
		Sequence:     binary.BigEndian.Uint32(data[0:4]),
		FrameOffset:  binary.BigEndian.Uint32(data[4:8]),
		TimePerFrame: math.Float32frombits(binary.BigEndian.Uint32(data[8:12])),
	}
	count := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) < HeaderSize+4*count {
		return Packet{}, fmt.Errorf("%w: header announces %d values, have %d bytes", ErrShortPacket, count, len(data))
	}

	pkt.Values = make([]float32, count)
	for i := range pkt.Values {
		at := HeaderSize + 4*i
		pkt.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(data[at : at+4]))
	}
	return pkt, nil
}

var _ transport.Transport = (*UDPPublisher)(nil)
