package main

import (
	"bufio"
	"encoding/binary"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/gopacket"

	"github.com/playhub/lobby/internal/packets"
)

// A TCP segment may carry part of a frame or several frames, so each direction
// of each connection keeps its own buffer.
type sniffer struct {
	Writer *bufio.Writer

	lobbyPort uint16
	dump      bool
	streams   map[string][]byte
}

func newSniffer(w *bufio.Writer, lobbyPort uint16, dump bool) *sniffer {
	return &sniffer{
		Writer:    w,
		lobbyPort: lobbyPort,
		dump:      dump,
		streams:   make(map[string][]byte),
	}
}

func (s *sniffer) startReading(packetChan <-chan gopacket.Packet) {
	for packet := range packetChan {
		if packet.TransportLayer() == nil || packet.ApplicationLayer() == nil {
			continue
		}
		netFlow := packet.NetworkLayer().NetworkFlow()
		flow := packet.TransportLayer().TransportFlow()
		srcPort := binary.BigEndian.Uint16(flow.Src().Raw())

		source := fmt.Sprintf("%v:%v", netFlow.Src(), flow.Src())
		destination := fmt.Sprintf("%v:%v", netFlow.Dst(), flow.Dst())
		s.handlePayload(source, destination, srcPort != s.lobbyPort, packet.ApplicationLayer().Payload())
	}
	s.Writer.Flush()
}

// handlePayload appends data to the stream from source and emits every
// complete frame. A stream announcing an oversized frame is discarded since it
// can't be resynchronised.
func (s *sniffer) handlePayload(source, destination string, fromClient bool, data []byte) {
	key := source + ">" + destination
	buf := append(s.streams[key], data...)

	for len(buf) >= packets.HeaderSize {
		size := packets.FrameSize(buf)
		if size == 0 || size > packets.MaxMessageSize {
			fmt.Fprintf(s.Writer, "%s -> %s: invalid frame size %d, dropping stream\n", source, destination, size)
			buf = nil
			break
		}
		if len(buf) < packets.HeaderSize+size {
			break
		}
		s.emit(source, destination, fromClient, buf[packets.HeaderSize:packets.HeaderSize+size])
		buf = buf[packets.HeaderSize+size:]
	}

	if len(buf) == 0 {
		delete(s.streams, key)
	} else {
		s.streams[key] = append([]byte(nil), buf...)
	}
	s.Writer.Flush()
}

func (s *sniffer) emit(source, destination string, fromClient bool, body []byte) {
	direction := "server"
	if fromClient {
		direction = "client"
	}
	fmt.Fprintf(s.Writer, "[%s] %s -> %s (%d bytes)\n", direction, source, destination, len(body))

	if !s.dump {
		fmt.Fprintf(s.Writer, "%s\n\n", body)
		return
	}

	var (
		msg interface{}
		err error
	)
	if fromClient {
		msg, err = packets.DecodeRequest(body)
	} else {
		msg, err = packets.DecodeServerMessage(body)
	}
	if err != nil {
		fmt.Fprintf(s.Writer, "undecodable frame (%v): %s\n\n", err, body)
		return
	}
	spew.Fdump(s.Writer, msg)
	fmt.Fprintln(s.Writer)
}
