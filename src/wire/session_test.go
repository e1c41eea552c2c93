package wire

import "testing"

func TestPacketRoundTripEmptyData(t *testing.T) {
	p := Packet{Type: PacketData, ID: 3, Data: []byte{}}
	b, err := p.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var decoded Packet
	if err := decoded.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if decoded.Data == nil || len(decoded.Data) != 0 {
		t.Fatalf("expected empty non-nil Data, got %#v", decoded.Data)
	}
}

func TestPacketRoundTripNoData(t *testing.T) {
	p := Packet{Type: PacketFin}
	b, err := p.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var decoded Packet
	if err := decoded.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if decoded.Data != nil {
		t.Fatalf("expected nil Data for FIN packet, got %#v", decoded.Data)
	}
}

func TestStatModeBitsRoundTrip(t *testing.T) {
	s := Stat{RelPath: "a/b.txt", Size: 11, Mode: 0644, IsDir: false}
	b, err := s.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var decoded Stat
	if err := decoded.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if decoded != s {
		t.Fatalf("stat not preserved: %+v != %+v", decoded, s)
	}
}
