package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/playhub/lobby/internal/packets"
)

func frame(t *testing.T, body string) []byte {
	t.Helper()
	f, err := packets.EncodeFrame([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestHandlePayload_Reassembles(t *testing.T) {
	login := frame(t, `{"action":"login","request_id":"1"}`)
	chat := frame(t, `{"action":"list_chat","request_id":"2"}`)
	stream := append(append([]byte(nil), login...), chat...)

	tests := []struct {
		name     string
		segments [][]byte
	}{
		{"one segment", [][]byte{stream}},
		{"split header", [][]byte{stream[:2], stream[2:]}},
		{"split body", [][]byte{stream[:10], stream[10 : len(login)+3], stream[len(login)+3:]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			s := newSniffer(bufio.NewWriter(&out), 5555, false)
			for _, seg := range tt.segments {
				s.handlePayload("10.0.0.2:40000", "10.0.0.1:5555", true, seg)
			}

			got := out.String()
			if strings.Count(got, "[client]") != 2 {
				t.Fatalf("expected two frames, got:\n%s", got)
			}
			if strings.Index(got, `"login"`) > strings.Index(got, `"list_chat"`) {
				t.Errorf("frames printed out of order:\n%s", got)
			}
			if len(s.streams) != 0 {
				t.Errorf("expected no buffered bytes, got %d streams", len(s.streams))
			}
		})
	}
}

func TestHandlePayload_DumpsServerMessages(t *testing.T) {
	var out bytes.Buffer
	s := newSniffer(bufio.NewWriter(&out), 5555, true)
	s.handlePayload("10.0.0.1:5555", "10.0.0.2:40000", false,
		frame(t, `{"action":"game_started","data":{"room_id":3,"port":18001}}`))

	got := out.String()
	if !strings.Contains(got, "[server]") || !strings.Contains(got, "packets.Push") {
		t.Errorf("expected a dumped push, got:\n%s", got)
	}
}

func TestHandlePayload_DropsOversizedStream(t *testing.T) {
	var out bytes.Buffer
	s := newSniffer(bufio.NewWriter(&out), 5555, false)
	s.handlePayload("a", "b", true, []byte{0xff, 0xff, 0xff, 0xff, '{'})

	if !strings.Contains(out.String(), "invalid frame size") {
		t.Errorf("expected the stream to be dropped, got:\n%s", out.String())
	}
	if len(s.streams) != 0 {
		t.Error("expected the stream buffer to be discarded")
	}
}
