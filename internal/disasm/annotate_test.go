package disasm

import (
	"strings"
	"testing"
)

func TestTargetAnnotator(t *testing.T) {
	ann := TargetAnnotator()
	tests := []struct {
		inst Inst
		want string
	}{
		{Inst{Addr: 0x10, Op: OpGoto, Size: 1, Branch: -4}, "-> 000c"},
		{Inst{Addr: 2, Op: OpIfEq, Size: 2, Branch: 0x20}, "-> 0022"},
		{Inst{Op: OpReturnVoid, Size: 1}, ""},
		{Inst{Op: OpInvokeStatic, Size: 3}, ""},
	}
	for _, tt := range tests {
		if got := ann(tt.inst); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.inst.Name(), got, tt.want)
		}
	}
}

func TestPayloadAnnotator(t *testing.T) {
	ann := PayloadAnnotator()

	sw := Inst{Addr: 2, Op: OpPackedSwitch, Size: 3, Payload: &Payload{
		Kind:  PackedSwitchPayload,
		Addr:  8,
		Cases: []SwitchCase{{Key: 0, Rel: 4}, {Key: 1, Rel: 5}},
	}}
	got := ann(sw)
	if !strings.HasPrefix(got, "packed-switch-payload @0008") {
		t.Errorf("switch annotation = %q", got)
	}
	if !strings.Contains(got, "0 -> 0006, 1 -> 0007") {
		t.Errorf("switch annotation = %q, want case targets", got)
	}

	fill := Inst{Op: OpFillArrayData, Size: 3, Payload: &Payload{
		Kind: FillArrayPayload, Addr: 6, Elements: 4, ElementWidth: 2,
	}}
	if got := ann(fill); got != "fill-array-data-payload @0006: 4 x 2 bytes" {
		t.Errorf("fill annotation = %q", got)
	}

	if got := ann(Inst{Op: OpNop}); got != "" {
		t.Errorf("nop annotation = %q, want empty", got)
	}
}

func TestRenderUnusedOpcode(t *testing.T) {
	if got := Render(Inst{Op: 0x3e}, nil); got != "unused-3e" {
		t.Errorf("got %q, want unused-3e", got)
	}
}

func TestListingFirstAnnotatorWins(t *testing.T) {
	insts := []Inst{{Addr: 0, Op: OpGoto, Size: 1, Raw: []uint16{0x0028}}}
	first := func(Inst) string { return "first" }
	second := func(Inst) string { return "second" }
	out := Listing(insts, nil, Annotator(first), Annotator(second))
	if !strings.Contains(out, "; first") || strings.Contains(out, "second") {
		t.Errorf("got %q", out)
	}
}
