package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req := &Request{
		Info: []byte("session-info"),
		Consumers: []ChannelRequest{
			{MsgSize: 16, AddMsgs: 1, EventFD: true, Info: []byte("c0")},
			{MsgSize: 256, AddMsgs: 4, EventFD: false, Info: nil},
		},
		Producers: []ChannelRequest{
			{MsgSize: 32, AddMsgs: 0, EventFD: true, Info: []byte("producer-info")},
		},
	}

	buf, err := Encode(req, 64)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if string(got.Info) != string(req.Info) {
		t.Fatalf("session info = %q, want %q", got.Info, req.Info)
	}
	if len(got.Consumers) != len(req.Consumers) || len(got.Producers) != len(req.Producers) {
		t.Fatalf("channel counts mismatch: got %d/%d want %d/%d",
			len(got.Consumers), len(got.Producers), len(req.Consumers), len(req.Producers))
	}

	for i, want := range req.Consumers {
		c := got.Consumers[i]
		if c.MsgSize != want.MsgSize || c.AddMsgs != want.AddMsgs || c.EventFD != want.EventFD {
			t.Fatalf("consumer[%d] = %+v, want %+v", i, c, want)
		}
		if string(c.Info) != string(want.Info) {
			t.Fatalf("consumer[%d].Info = %q, want %q", i, c.Info, want.Info)
		}
	}

	for i, want := range req.Producers {
		p := got.Producers[i]
		if p.MsgSize != want.MsgSize || p.AddMsgs != want.AddMsgs || p.EventFD != want.EventFD {
			t.Fatalf("producer[%d] = %+v, want %+v", i, p, want)
		}
		if string(p.Info) != string(want.Info) {
			t.Fatalf("producer[%d].Info = %q, want %q", i, p.Info, want.Info)
		}
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	req := &Request{Consumers: []ChannelRequest{{MsgSize: 8}}}
	buf, err := Encode(req, 64)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	buf[0] = 0

	if _, err := Decode(buf); err == nil {
		t.Fatalf("Decode() with corrupted magic = nil error, want error")
	}
}

func TestDecodeRejectsOversizedChannelCounts(t *testing.T) {
	req := &Request{Consumers: []ChannelRequest{{MsgSize: 8}}}
	buf, err := Encode(req, 64)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Claim far more channel entries than the buffer could possibly hold.
	buf[HeaderSize+4] = 0xFF
	buf[HeaderSize+5] = 0xFF
	buf[HeaderSize+6] = 0xFF
	buf[HeaderSize+7] = 0xFF

	if _, err := Decode(buf); err == nil {
		t.Fatalf("Decode() with absurd consumer count = nil error, want error")
	}
}

func TestDecodeRejectsTruncatedRequest(t *testing.T) {
	req := &Request{
		Consumers: []ChannelRequest{{MsgSize: 8, Info: []byte("hello")}},
	}
	buf, err := Encode(req, 64)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := Decode(buf[:len(buf)-2]); err == nil {
		t.Fatalf("Decode() on truncated buffer = nil error, want error")
	}
}
