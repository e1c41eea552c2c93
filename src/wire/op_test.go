package wire

import "testing"

func TestOpRoundTripIdentity(t *testing.T) {
	op := Op{
		Inputs:   []Input{{Digest: "sha256:" + "0", OutputIndex: 0}},
		Platform: DefaultPlatform(),
		Kind:     KindExec,
		Exec: &ExecOp{
			Meta: Meta{
				Args: []string{"/bin/sh", "-c", "echo hi"},
				Env:  []string{"A=1", "SOURCE_DATE_EPOCH=0"},
				Cwd:  "/build",
			},
			Mounts: []Mount{
				{InputIdx: -1, OutputIdx: -1, Dest: "/tmp", Type: MountTmpfs},
				{InputIdx: 0, OutputIdx: 0, Dest: "/", Type: MountBind},
			},
		},
	}
	b1, err := op.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Op
	if err := decoded.Unmarshal(b1); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	b2, err := decoded.Marshal()
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if string(b1) != string(b2) {
		t.Fatalf("encode(decode(encode(op))) != encode(op):\n%x\n%x", b1, b2)
	}
	if decoded.Exec.Mounts[0].InputIdx != -1 || decoded.Exec.Mounts[0].OutputIdx != -1 {
		t.Fatalf("mount sentinel -1 not preserved: %+v", decoded.Exec.Mounts[0])
	}
}

func TestSourceOpAttrsCanonicalOrder(t *testing.T) {
	s := SourceOp{Identifier: "docker-image://alpine", Attrs: map[string]string{
		"z-attr": "1",
		"a-attr": "2",
		"m-attr": "3",
	}}
	b1, err := s.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	b2, err := s.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if string(b1) != string(b2) {
		t.Fatal("marshaling the same attrs map twice produced different bytes")
	}
	var decoded SourceOp
	if err := decoded.Unmarshal(b1); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Attrs) != 3 || decoded.Attrs["a-attr"] != "2" {
		t.Fatalf("attrs not preserved: %+v", decoded.Attrs)
	}
}

func TestMergeOpRoundTrip(t *testing.T) {
	m := MergeOp{Inputs: []MergeInput{
		{Input: Input{Digest: "sha256:aaa", OutputIndex: 0}},
		{Input: Input{Digest: "sha256:bbb", OutputIndex: 0}},
	}}
	b1, err := m.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var decoded MergeOp
	if err := decoded.Unmarshal(b1); err != nil {
		t.Fatal(err)
	}
	b2, err := decoded.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if string(b1) != string(b2) {
		t.Fatal("merge op round trip not identity")
	}
	if len(decoded.Inputs) != 2 || decoded.Inputs[1].Input.Digest != "sha256:bbb" {
		t.Fatalf("merge inputs not preserved: %+v", decoded.Inputs)
	}
}

func TestDefinitionRoundTrip(t *testing.T) {
	op := Op{Kind: KindReference, Platform: DefaultPlatform()}
	ob, err := op.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	d := Definition{
		Ops:     [][]byte{ob},
		Digests: []string{"sha256:deadbeef"},
		Metadata: []string{""},
	}
	b1, err := d.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var decoded Definition
	if err := decoded.Unmarshal(b1); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Ops) != 1 || decoded.Digests[0] != "sha256:deadbeef" {
		t.Fatalf("definition not preserved: %+v", decoded)
	}
	b2, err := decoded.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if string(b1) != string(b2) {
		t.Fatal("definition round trip not identity")
	}
}

func TestReferenceOpHasNoPayload(t *testing.T) {
	op := Op{Kind: KindReference, Inputs: []Input{{Digest: "sha256:x", OutputIndex: 0}}, Platform: DefaultPlatform()}
	b, err := op.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var decoded Op
	if err := decoded.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if decoded.Source != nil || decoded.Exec != nil || decoded.Merge != nil {
		t.Fatalf("reference op should carry no inner payload: %+v", decoded)
	}
}
