package wire

import (
	"strings"
	"testing"

	"github.com/unaxfromsibiria/roomb-go/internal/protocol"
)

func TestReadFrame_WellFormed(t *testing.T) {
	r := strings.NewReader(`{"target":2,"part":false,"data":"hello","cid":""}`)
	f := NewFramer(r, 2048, "test")

	frame, ok, err := f.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for well-formed frame")
	}
	if frame.Target != protocol.SignIn || frame.Data != "hello" {
		t.Fatalf("frame = %+v", frame)
	}
}

func TestReadFrame_MalformedDropped(t *testing.T) {
	r := strings.NewReader(`not-json-at-all`)
	f := NewFramer(r, 2048, "test")

	_, ok, err := f.ReadFrame()
	if err != nil {
		t.Fatalf("malformed frame should not be a hard error, got %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for malformed frame")
	}
}

func TestReadFrame_EndOfStream(t *testing.T) {
	r := strings.NewReader("x") // 1 byte
	f := NewFramer(r, 2048, "test")

	_, _, err := f.ReadFrame()
	if err != ErrEndOfStream {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestFold_AssociativeAcrossSplits(t *testing.T) {
	f1 := protocol.ClientFrame{Target: protocol.ClientData, Part: true, Data: "{\"gro"}
	f2 := protocol.ClientFrame{Target: protocol.ClientData, Part: true, Data: "up\":1,"}
	f3 := protocol.ClientFrame{Target: protocol.ClientData, Part: false, Data: "\"cid\":\"X\"}"}

	var twoThenOne protocol.Command
	Fold(&twoThenOne, f1)
	Fold(&twoThenOne, f2)
	full := Fold(&twoThenOne, f3)
	if !full {
		t.Fatal("expected command to be complete")
	}

	var allAtOnce protocol.Command
	for _, f := range []protocol.ClientFrame{f1, f2, f3} {
		Fold(&allAtOnce, f)
	}

	if twoThenOne.Data != allAtOnce.Data {
		t.Fatalf("reassembly mismatch: %q vs %q", twoThenOne.Data, allAtOnce.Data)
	}
}
