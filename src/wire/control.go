package wire

// SolveRequest carries a serialized Definition plus solve parameters to the
// daemon's control service (spec.md §4.4 step 3, §6).
type SolveRequest struct {
	Definition     []byte
	SessionID      string
	Frontend       string
	FrontendAttrs  map[string]string
	ExporterKind   string
	ExporterAttrs  map[string]string
	CacheImports   []string
	CacheExports   []string
}

func (r SolveRequest) Marshal() ([]byte, error) {
	var buf []byte
	buf = putBytesField(buf, 1, r.Definition)
	buf = putStringField(buf, 2, r.SessionID)
	buf = putStringField(buf, 3, r.Frontend)
	for _, e := range sortedKVs(r.FrontendAttrs) {
		b, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		buf = putBytesField(buf, 4, b)
	}
	buf = putStringField(buf, 5, r.ExporterKind)
	for _, e := range sortedKVs(r.ExporterAttrs) {
		b, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		buf = putBytesField(buf, 6, b)
	}
	for _, c := range r.CacheImports {
		buf = putStringField(buf, 7, c)
	}
	for _, c := range r.CacheExports {
		buf = putStringField(buf, 8, c)
	}
	return buf, nil
}

func (r *SolveRequest) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*r = SolveRequest{FrontendAttrs: map[string]string{}, ExporterAttrs: map[string]string{}}
	for _, f := range fs {
		switch f.num {
		case 1:
			r.Definition = f.bytes
		case 2:
			r.SessionID = string(f.bytes)
		case 3:
			r.Frontend = string(f.bytes)
		case 4:
			var e kv
			if err := e.Unmarshal(f.bytes); err != nil {
				return err
			}
			r.FrontendAttrs[e.Key] = e.Value
		case 5:
			r.ExporterKind = string(f.bytes)
		case 6:
			var e kv
			if err := e.Unmarshal(f.bytes); err != nil {
				return err
			}
			r.ExporterAttrs[e.Key] = e.Value
		case 7:
			r.CacheImports = append(r.CacheImports, string(f.bytes))
		case 8:
			r.CacheExports = append(r.CacheExports, string(f.bytes))
		}
	}
	return nil
}

// SolveResponse is the control service's Solve RPC response: an opaque
// bag of exporter-reported attributes (spec.md §4.6 step 6 names
// "moby.image.id" as the key the Build Session looks for).
type SolveResponse struct {
	ExporterResponse map[string]string
}

func (r SolveResponse) Marshal() ([]byte, error) {
	var buf []byte
	for _, e := range sortedKVs(r.ExporterResponse) {
		b, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		buf = putBytesField(buf, 1, b)
	}
	return buf, nil
}

func (r *SolveResponse) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*r = SolveResponse{ExporterResponse: map[string]string{}}
	for _, f := range fs {
		if f.num == 1 {
			var e kv
			if err := e.Unmarshal(f.bytes); err != nil {
				return err
			}
			r.ExporterResponse[e.Key] = e.Value
		}
	}
	return nil
}

// Vertex reports one node's state in the daemon's execution of the LLB
// graph (GLOSSARY "Vertex").
type Vertex struct {
	Digest    string
	Name      string
	Started   bool
	Completed bool
	Cached    bool
	Error     string
}

func (v Vertex) Marshal() ([]byte, error) {
	var buf []byte
	buf = putStringField(buf, 1, v.Digest)
	buf = putStringField(buf, 2, v.Name)
	buf = putBoolField(buf, 3, v.Started)
	buf = putBoolField(buf, 4, v.Completed)
	buf = putBoolField(buf, 5, v.Cached)
	buf = putStringField(buf, 6, v.Error)
	return buf, nil
}

func (v *Vertex) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*v = Vertex{}
	for _, f := range fs {
		switch f.num {
		case 1:
			v.Digest = string(f.bytes)
		case 2:
			v.Name = string(f.bytes)
		case 3:
			v.Started = f.varint != 0
		case 4:
			v.Completed = f.varint != 0
		case 5:
			v.Cached = f.varint != 0
		case 6:
			v.Error = string(f.bytes)
		}
	}
	return nil
}

// VertexLog is one chunk of a vertex's captured stdout/stderr.
type VertexLog struct {
	Vertex string
	Stream int32
	Msg    []byte
}

func (l VertexLog) Marshal() ([]byte, error) {
	var buf []byte
	buf = putStringField(buf, 1, l.Vertex)
	buf = putVarintField(buf, 2, uint64(l.Stream))
	buf = putBytesField(buf, 3, l.Msg)
	return buf, nil
}

func (l *VertexLog) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*l = VertexLog{}
	for _, f := range fs {
		switch f.num {
		case 1:
			l.Vertex = string(f.bytes)
		case 2:
			l.Stream = int32(f.varint)
		case 3:
			l.Msg = f.bytes
		}
	}
	return nil
}

// StatusResponse is one message of the daemon's status stream
// (spec.md §4.4 step 4).
type StatusResponse struct {
	Vertexes []Vertex
	Logs     []VertexLog
}

func (s StatusResponse) Marshal() ([]byte, error) {
	var buf []byte
	var err error
	for _, v := range s.Vertexes {
		if buf, err = putMessageField(buf, 1, v); err != nil {
			return nil, err
		}
	}
	for _, l := range s.Logs {
		if buf, err = putMessageField(buf, 2, l); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (s *StatusResponse) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*s = StatusResponse{}
	for _, f := range fs {
		switch f.num {
		case 1:
			var v Vertex
			if err := v.Unmarshal(f.bytes); err != nil {
				return err
			}
			s.Vertexes = append(s.Vertexes, v)
		case 2:
			var l VertexLog
			if err := l.Unmarshal(f.bytes); err != nil {
				return err
			}
			s.Logs = append(s.Logs, l)
		}
	}
	return nil
}
