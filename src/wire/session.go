package wire

// PacketType enumerates the FileSync wire protocol's packet kinds
// (spec.md §4.3).
type PacketType int

const (
	PacketStat PacketType = iota
	PacketData
	PacketReq
	PacketFin
	PacketErr
)

// Stat is one FileSync metadata record (spec.md §3 FileStat), using the
// daemon's filesystem mode encoding rather than raw Unix st_mode.
type Stat struct {
	RelPath  string
	Size     int64
	Mode     uint32
	UID      uint32
	GID      uint32
	ModTime  int64 // unix seconds
	Linkname string
	IsDir    bool
}

func (s Stat) Marshal() ([]byte, error) {
	var buf []byte
	buf = putStringField(buf, 1, s.RelPath)
	buf = putVarintField(buf, 2, uint64(s.Size))
	buf = putVarintField(buf, 3, uint64(s.Mode))
	buf = putVarintField(buf, 4, uint64(s.UID))
	buf = putVarintField(buf, 5, uint64(s.GID))
	buf = putVarintField(buf, 6, uint64(s.ModTime))
	buf = putStringField(buf, 7, s.Linkname)
	buf = putBoolField(buf, 8, s.IsDir)
	return buf, nil
}

func (s *Stat) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*s = Stat{}
	for _, f := range fs {
		switch f.num {
		case 1:
			s.RelPath = string(f.bytes)
		case 2:
			s.Size = int64(f.varint)
		case 3:
			s.Mode = uint32(f.varint)
		case 4:
			s.UID = uint32(f.varint)
		case 5:
			s.GID = uint32(f.varint)
		case 6:
			s.ModTime = int64(f.varint)
		case 7:
			s.Linkname = string(f.bytes)
		case 8:
			s.IsDir = f.varint != 0
		}
	}
	return nil
}

// Packet is a single FileSync protocol message (spec.md §4.3). Exactly one
// of Stat/Data is meaningful depending on Type. Marshal always writes the
// ID field, so a STAT packet carries ID 0 on the wire (spec.md §9
// "Implicit IDs"): callers of this type never set ID for outgoing STAT
// packets and never read it for incoming ones — ID is meaningful only for
// REQ/DATA/ERR.
type Packet struct {
	Type PacketType
	ID   uint32
	Stat *Stat
	Data []byte
}

func (p Packet) Marshal() ([]byte, error) {
	var buf []byte
	buf = putVarintField(buf, 1, uint64(p.Type))
	buf = putVarintField(buf, 2, uint64(p.ID))
	var err error
	if p.Stat != nil {
		if buf, err = putMessageField(buf, 3, p.Stat); err != nil {
			return nil, err
		}
	}
	if p.Data != nil {
		buf = putBytesField(buf, 4, p.Data)
	}
	return buf, nil
}

func (p *Packet) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*p = Packet{}
	sawData := false
	for _, f := range fs {
		switch f.num {
		case 1:
			p.Type = PacketType(f.varint)
		case 2:
			p.ID = uint32(f.varint)
		case 3:
			p.Stat = &Stat{}
			if err := p.Stat.Unmarshal(f.bytes); err != nil {
				return err
			}
		case 4:
			p.Data = f.bytes
			sawData = true
		}
	}
	if sawData && p.Data == nil {
		p.Data = []byte{}
	}
	return nil
}
