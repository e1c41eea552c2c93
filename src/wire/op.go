package wire

import (
	"fmt"
	"sort"
)

// Platform identifies the target architecture/OS an Op runs against.
type Platform struct {
	Architecture string
	OS           string
	Variant      string
	OSFeatures   []string
}

// DefaultPlatform is the platform substituted for an unset one (spec.md §4.1 step 1).
func DefaultPlatform() Platform {
	return Platform{Architecture: "amd64", OS: "linux"}
}

func (p Platform) IsZero() bool { return p.Architecture == "" && p.OS == "" }

func (p Platform) Marshal() ([]byte, error) {
	var buf []byte
	buf = putStringField(buf, 1, p.Architecture)
	buf = putStringField(buf, 2, p.OS)
	buf = putStringField(buf, 3, p.Variant)
	for _, f := range p.OSFeatures {
		buf = putStringField(buf, 4, f)
	}
	return buf, nil
}

func (p *Platform) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*p = Platform{}
	for _, f := range fs {
		switch f.num {
		case 1:
			p.Architecture = string(f.bytes)
		case 2:
			p.OS = string(f.bytes)
		case 3:
			p.Variant = string(f.bytes)
		case 4:
			p.OSFeatures = append(p.OSFeatures, string(f.bytes))
		}
	}
	return nil
}

// CacheSharing controls how concurrent builds may share a cache mount.
type CacheSharing int

const (
	CacheShared CacheSharing = iota
	CachePrivate
	CacheLocked
)

// CacheOpt is the persistence identity of a cache mount (spec.md §3 CacheOpt).
type CacheOpt struct {
	ID       string
	Sharing  CacheSharing
}

func (c CacheOpt) Marshal() ([]byte, error) {
	var buf []byte
	buf = putStringField(buf, 1, c.ID)
	buf = putVarintField(buf, 2, uint64(c.Sharing))
	return buf, nil
}

func (c *CacheOpt) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*c = CacheOpt{}
	for _, f := range fs {
		switch f.num {
		case 1:
			c.ID = string(f.bytes)
		case 2:
			c.Sharing = CacheSharing(f.varint)
		}
	}
	return nil
}

// TmpfsOpt configures a Tmpfs-type mount.
type TmpfsOpt struct {
	SizeBytes int64
}

func (t TmpfsOpt) Marshal() ([]byte, error) {
	return putVarintField(nil, 1, uint64(t.SizeBytes)), nil
}

func (t *TmpfsOpt) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*t = TmpfsOpt{}
	for _, f := range fs {
		if f.num == 1 {
			t.SizeBytes = int64(f.varint)
		}
	}
	return nil
}

// MountType is the kind of filesystem binding a Mount establishes.
type MountType int

const (
	MountBind MountType = iota
	MountCache
	MountTmpfs
)

// zigzag encodes a signed int so small negative numbers (notably the -1
// sentinels spec.md §3 defines for InputIdx/OutputIdx) stay compact.
func zigzag(v int) uint64   { return uint64((v << 1) ^ (v >> 63)) }
func unzigzag(v uint64) int { return int((v >> 1) ^ -(v & 1)) }

// Mount is a single filesystem binding attached to an Exec op.
type Mount struct {
	InputIdx  int
	OutputIdx int
	Dest      string
	Readonly  bool
	Type      MountType
	CacheOpt  *CacheOpt
	TmpfsOpt  *TmpfsOpt
}

func (m Mount) Marshal() ([]byte, error) {
	var buf []byte
	buf = putVarintField(buf, 1, zigzag(m.InputIdx))
	buf = putVarintField(buf, 2, zigzag(m.OutputIdx))
	buf = putStringField(buf, 3, m.Dest)
	buf = putBoolField(buf, 4, m.Readonly)
	buf = putVarintField(buf, 5, uint64(m.Type))
	var err error
	if m.CacheOpt != nil {
		if buf, err = putMessageField(buf, 6, m.CacheOpt); err != nil {
			return nil, err
		}
	}
	if m.TmpfsOpt != nil {
		if buf, err = putMessageField(buf, 7, m.TmpfsOpt); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (m *Mount) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = Mount{}
	for _, f := range fs {
		switch f.num {
		case 1:
			m.InputIdx = unzigzag(f.varint)
		case 2:
			m.OutputIdx = unzigzag(f.varint)
		case 3:
			m.Dest = string(f.bytes)
		case 4:
			m.Readonly = f.varint != 0
		case 5:
			m.Type = MountType(f.varint)
		case 6:
			m.CacheOpt = &CacheOpt{}
			if err := m.CacheOpt.Unmarshal(f.bytes); err != nil {
				return err
			}
		case 7:
			m.TmpfsOpt = &TmpfsOpt{}
			if err := m.TmpfsOpt.Unmarshal(f.bytes); err != nil {
				return err
			}
		}
	}
	return nil
}

// Meta carries the invocation details of an Exec op.
type Meta struct {
	Args []string
	// Env must be sorted lexicographically and include SOURCE_DATE_EPOCH=0;
	// this package does not enforce that (src/llb does), it only encodes it.
	Env []string
	Cwd  string
	User string
}

func (m Meta) Marshal() ([]byte, error) {
	var buf []byte
	for _, a := range m.Args {
		buf = putStringField(buf, 1, a)
	}
	for _, e := range m.Env {
		buf = putStringField(buf, 2, e)
	}
	buf = putStringField(buf, 3, m.Cwd)
	buf = putStringField(buf, 4, m.User)
	return buf, nil
}

func (m *Meta) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = Meta{}
	for _, f := range fs {
		switch f.num {
		case 1:
			m.Args = append(m.Args, string(f.bytes))
		case 2:
			m.Env = append(m.Env, string(f.bytes))
		case 3:
			m.Cwd = string(f.bytes)
		case 4:
			m.User = string(f.bytes)
		}
	}
	return nil
}

// Input names one output of a previously-added op.
type Input struct {
	Digest      string
	OutputIndex int64
}

func (i Input) Marshal() ([]byte, error) {
	var buf []byte
	buf = putStringField(buf, 1, i.Digest)
	buf = putVarintField(buf, 2, uint64(i.OutputIndex))
	return buf, nil
}

func (i *Input) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*i = Input{}
	for _, f := range fs {
		switch f.num {
		case 1:
			i.Digest = string(f.bytes)
		case 2:
			i.OutputIndex = int64(f.varint)
		}
	}
	return nil
}

// kv is a canonical (sorted by key) string-to-string entry, used to encode
// maps deterministically.
type kv struct {
	Key, Value string
}

func (e kv) Marshal() ([]byte, error) {
	var buf []byte
	buf = putStringField(buf, 1, e.Key)
	buf = putStringField(buf, 2, e.Value)
	return buf, nil
}

func (e *kv) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*e = kv{}
	for _, f := range fs {
		switch f.num {
		case 1:
			e.Key = string(f.bytes)
		case 2:
			e.Value = string(f.bytes)
		}
	}
	return nil
}

func sortedKVs(m map[string]string) []kv {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kv, len(keys))
	for i, k := range keys {
		out[i] = kv{Key: k, Value: m[k]}
	}
	return out
}

// SourceOp identifies an external input: a base image or the local context.
type SourceOp struct {
	Identifier string
	Attrs      map[string]string
}

func (s SourceOp) Marshal() ([]byte, error) {
	var buf []byte
	buf = putStringField(buf, 1, s.Identifier)
	for _, e := range sortedKVs(s.Attrs) {
		b, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		buf = putBytesField(buf, 2, b)
	}
	return buf, nil
}

func (s *SourceOp) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*s = SourceOp{Attrs: map[string]string{}}
	for _, f := range fs {
		switch f.num {
		case 1:
			s.Identifier = string(f.bytes)
		case 2:
			var e kv
			if err := e.Unmarshal(f.bytes); err != nil {
				return err
			}
			s.Attrs[e.Key] = e.Value
		}
	}
	return nil
}

// NetMode controls network namespace visibility for an Exec op.
type NetMode int

const (
	NetSandbox NetMode = iota
	NetHost
	NetNone
)

// SecurityMode controls the privilege level an Exec op runs with.
type SecurityMode int

const (
	SecuritySandbox SecurityMode = iota
	SecurityInsecure
)

// ExecOp runs a command against a set of mounts.
type ExecOp struct {
	Meta         Meta
	Mounts       []Mount
	NetMode      NetMode
	SecurityMode SecurityMode
}

func (e ExecOp) Marshal() ([]byte, error) {
	var buf []byte
	var err error
	if buf, err = putMessageField(buf, 1, e.Meta); err != nil {
		return nil, err
	}
	for _, m := range e.Mounts {
		if buf, err = putMessageField(buf, 2, m); err != nil {
			return nil, err
		}
	}
	buf = putVarintField(buf, 3, uint64(e.NetMode))
	buf = putVarintField(buf, 4, uint64(e.SecurityMode))
	return buf, nil
}

func (e *ExecOp) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*e = ExecOp{}
	for _, f := range fs {
		switch f.num {
		case 1:
			if err := e.Meta.Unmarshal(f.bytes); err != nil {
				return err
			}
		case 2:
			var m Mount
			if err := m.Unmarshal(f.bytes); err != nil {
				return err
			}
			e.Mounts = append(e.Mounts, m)
		case 3:
			e.NetMode = NetMode(f.varint)
		case 4:
			e.SecurityMode = SecurityMode(f.varint)
		}
	}
	return nil
}

// MergeInput is one layer contributed to a Merge op.
type MergeInput struct {
	Input Input
}

func (m MergeInput) Marshal() ([]byte, error) {
	return putMessageField(nil, 1, m.Input)
}

func (m *MergeInput) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = MergeInput{}
	for _, f := range fs {
		if f.num == 1 {
			if err := m.Input.Unmarshal(f.bytes); err != nil {
				return err
			}
		}
	}
	return nil
}

// MergeOp unions a sequence of layers, in order, into one filesystem.
type MergeOp struct {
	Inputs []MergeInput
}

func (m MergeOp) Marshal() ([]byte, error) {
	var buf []byte
	var err error
	for _, in := range m.Inputs {
		if buf, err = putMessageField(buf, 1, in); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (m *MergeOp) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = MergeOp{}
	for _, f := range fs {
		if f.num == 1 {
			var in MergeInput
			if err := in.Unmarshal(f.bytes); err != nil {
				return err
			}
			m.Inputs = append(m.Inputs, in)
		}
	}
	return nil
}

// OpKind tags which variant an Op carries.
type OpKind int

const (
	KindSource OpKind = iota
	KindExec
	KindMerge
	KindReference
)

// Op is the tagged four-case node of the LLB graph (spec.md §3).
type Op struct {
	Inputs   []Input
	Platform Platform
	Kind     OpKind
	Source   *SourceOp
	Exec     *ExecOp
	Merge    *MergeOp
}

func (o Op) Marshal() ([]byte, error) {
	var buf []byte
	var err error
	for _, in := range o.Inputs {
		if buf, err = putMessageField(buf, 1, in); err != nil {
			return nil, err
		}
	}
	if buf, err = putMessageField(buf, 2, o.Platform); err != nil {
		return nil, err
	}
	buf = putVarintField(buf, 3, uint64(o.Kind))
	switch o.Kind {
	case KindSource:
		if o.Source == nil {
			return nil, fmt.Errorf("wire: Source op missing SourceOp payload")
		}
		if buf, err = putMessageField(buf, 4, o.Source); err != nil {
			return nil, err
		}
	case KindExec:
		if o.Exec == nil {
			return nil, fmt.Errorf("wire: Exec op missing ExecOp payload")
		}
		if buf, err = putMessageField(buf, 5, o.Exec); err != nil {
			return nil, err
		}
	case KindMerge:
		if o.Merge == nil {
			return nil, fmt.Errorf("wire: Merge op missing MergeOp payload")
		}
		if buf, err = putMessageField(buf, 6, o.Merge); err != nil {
			return nil, err
		}
	case KindReference:
		// no inner payload
	default:
		return nil, fmt.Errorf("wire: unknown op kind %d", o.Kind)
	}
	return buf, nil
}

func (o *Op) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*o = Op{}
	for _, f := range fs {
		switch f.num {
		case 1:
			var in Input
			if err := in.Unmarshal(f.bytes); err != nil {
				return err
			}
			o.Inputs = append(o.Inputs, in)
		case 2:
			if err := o.Platform.Unmarshal(f.bytes); err != nil {
				return err
			}
		case 3:
			o.Kind = OpKind(f.varint)
		case 4:
			o.Source = &SourceOp{}
			if err := o.Source.Unmarshal(f.bytes); err != nil {
				return err
			}
		case 5:
			o.Exec = &ExecOp{}
			if err := o.Exec.Unmarshal(f.bytes); err != nil {
				return err
			}
		case 6:
			o.Merge = &MergeOp{}
			if err := o.Merge.Unmarshal(f.bytes); err != nil {
				return err
			}
		}
	}
	return nil
}

// metaEntry is one (digest, opaque value) pair of Definition.Metadata.
type metaEntry struct {
	Digest string
	Value  []byte
}

func (e metaEntry) Marshal() ([]byte, error) {
	var buf []byte
	buf = putStringField(buf, 1, e.Digest)
	buf = putBytesField(buf, 2, e.Value)
	return buf, nil
}

func (e *metaEntry) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*e = metaEntry{}
	for _, f := range fs {
		switch f.num {
		case 1:
			e.Digest = string(f.bytes)
		case 2:
			e.Value = f.bytes
		}
	}
	return nil
}

// Definition is the serialized, submittable form of the LLB graph.
type Definition struct {
	Ops [][]byte
	// Digests[i] is the digest of Ops[i], as computed by the Builder
	// (spec.md §3 "digests[i] is the digest of that encoding").
	Digests []string
	// Metadata is stored as ordered pairs parallel to Ops/Digests rather
	// than a Go map so that Marshal needs no further sorting pass to stay
	// canonical; empty entries are legal and carry no metadata.
	Metadata   []string
	SourceInfo []byte
}

func (d Definition) Marshal() ([]byte, error) {
	var buf []byte
	for _, op := range d.Ops {
		buf = putBytesField(buf, 1, op)
	}
	for i := range d.Ops {
		dg := ""
		if i < len(d.Digests) {
			dg = d.Digests[i]
		}
		meta := ""
		if i < len(d.Metadata) {
			meta = d.Metadata[i]
		}
		e := metaEntry{Digest: dg, Value: []byte(meta)}
		eb, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		buf = putBytesField(buf, 2, eb)
	}
	buf = putBytesField(buf, 3, d.SourceInfo)
	return buf, nil
}

func (d *Definition) Unmarshal(b []byte) error {
	fs, err := parseFields(b)
	if err != nil {
		return err
	}
	*d = Definition{}
	for _, f := range fs {
		switch f.num {
		case 1:
			d.Ops = append(d.Ops, f.bytes)
		case 2:
			var e metaEntry
			if err := e.Unmarshal(f.bytes); err != nil {
				return err
			}
			d.Digests = append(d.Digests, e.Digest)
			d.Metadata = append(d.Metadata, string(e.Value))
		case 3:
			d.SourceInfo = f.bytes
		}
	}
	return nil
}
