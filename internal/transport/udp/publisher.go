// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "spectro/internal/log"
	"spectro/internal/transport"
)

var logger = applog.For("udp")

// headerSize is sequence (4) + timestamp (8) + pixel count (2).
const headerSize = 14

// PacketSender transmits one datagram.
type PacketSender interface {
	Send(data []byte) error
}

// UDPPublisher periodically fetches the newest spectrogram column, packs it
// into a defined binary format and sends it with a PacketSender. It runs in a
// separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   PacketSender
	columns  transport.ColumnProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	sequenceNum uint32

	// Reused on every tick.
	column       []uint32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher for columns. If the interval is
// invalid (<= 0), it defaults to 33ms (~30Hz).
func NewUDPPublisher(interval time.Duration, sender PacketSender, columns transport.ColumnProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	if columns == nil {
		return nil, errors.New("UDPPublisher: column provider cannot be nil")
	}

	if interval <= 0 {
		interval = 33 * time.Millisecond
		logger.Warnf("Invalid interval provided, defaulting to %s", interval)
	}
	logger.Infof("Initializing publisher (Interval: %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		columns:      columns,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process. Subsequent calls are no-ops
// while running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Debugf("Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				logger.Debugf("Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to
// exit. It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Debugf("Publisher goroutine finished after %d packets.", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |  Pixel Count  |         Pixels          |
|      (uint32)     |  (int64, ns, epoch)   |   (uint16)    |  (N * uint32 0xFFRRGGBB)|
+-------------------+-----------------------+---------------+-------------------------+

Pixels are the newest column, top row first.
*/

// publish sends one packet. An empty column (viewport not drawn yet, or
// zero-sized) is not sent.
func (p *UDPPublisher) publish() {
	p.column = p.columns.LatestColumn(p.column)
	if len(p.column) == 0 {
		return
	}

	p.sequenceNum++
	if err := BuildPacket(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), p.column); err != nil {
		logger.Errorf("Error packing column: %v", err)
		return
	}

	packet := p.packetBuffer.Bytes()
	if err := p.sender.Send(packet); err != nil {
		logger.Debugf("Packet %d not sent: %v", p.sequenceNum, err)
		return
	}
	logger.Debugf("Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
}

// BuildPacket resets buf and writes one packet into it.
func BuildPacket(buf *bytes.Buffer, seq uint32, timestamp int64, pixels []uint32) error {
	if len(pixels) > math.MaxUint16 {
		return fmt.Errorf("column of %d pixels does not fit the packet header", len(pixels))
	}

	buf.Reset()
	buf.Grow(headerSize + 4*len(pixels))

	var scratch [8]byte
	binary.BigEndian.PutUint32(scratch[:4], seq)
	buf.Write(scratch[:4])
	binary.BigEndian.PutUint64(scratch[:8], uint64(timestamp))
	buf.Write(scratch[:8])
	binary.BigEndian.PutUint16(scratch[:2], uint16(len(pixels)))
	buf.Write(scratch[:2])
	for _, px := range pixels {
		binary.BigEndian.PutUint32(scratch[:4], px)
		buf.Write(scratch[:4])
	}
	return nil
}

// Packet is a decoded column packet.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Pixels    []uint32
}

// ParsePacket decodes a packet produced by BuildPacket.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, fmt.Errorf("packet of %d bytes shorter than header", len(data))
	}
	count := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) != headerSize+4*count {
		return Packet{}, fmt.Errorf("packet of %d bytes does not hold %d pixels", len(data), count)
	}

	pkt := Packet{
		Seq:       binary.BigEndian.Uint32(data[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:12])),
		Pixels:    make([]uint32, count),
	}
	for i := range pkt.Pixels {
		off := headerSize + 4*i
		pkt.Pixels[i] = binary.BigEndian.Uint32(data[off : off+4])
	}
	return pkt, nil
}

// Close stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
