package protocol

import "testing"

func TestCommand_SetupThenAppend(t *testing.T) {
	var cmd Command
	if !cmd.IsNew() {
		t.Fatal("zero-value command should be new")
	}

	cmd.Setup(ClientFrame{Target: ClientData, Part: true, Cid: "X", Data: "{\"gro"})
	if cmd.Full {
		t.Fatal("partial frame should not complete the command")
	}
	if cmd.IsNew() {
		t.Fatal("command with data should no longer be new")
	}

	cmd.Append(ClientFrame{Target: ClientData, Part: false, Cid: "X", Data: "up\":1,\"cid\":\"X\"}"})
	if !cmd.Full {
		t.Fatal("non-partial frame should complete the command")
	}
	if cmd.Data != `{"group":1,"cid":"X"}` {
		t.Fatalf("reassembled data = %q", cmd.Data)
	}
}

func TestCommand_FullImpliesNotPart(t *testing.T) {
	var cmd Command
	cmd.Setup(ClientFrame{Target: SignIn, Part: false, Data: ""})
	if !cmd.Full || cmd.Part {
		t.Fatalf("full=%v part=%v, want full=true part=false", cmd.Full, cmd.Part)
	}
}

func TestNeedAuth(t *testing.T) {
	cases := map[CommandTarget]bool{
		Unknown:    false,
		Quit:       false,
		SignIn:     false,
		Auth:       false,
		ClientData: true,
	}
	for target, want := range cases {
		if got := NeedAuth(target); got != want {
			t.Errorf("NeedAuth(%v) = %v, want %v", target, got, want)
		}
	}
}
