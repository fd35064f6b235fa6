package disasm

import "testing"

func TestFlow(t *testing.T) {
	tests := []struct {
		code []uint16
		want Flow
	}{
		{[]uint16{0x000e}, FlowReturn},
		{[]uint16{0x0011}, FlowReturn},
		{[]uint16{0x0027}, FlowThrow},
		{[]uint16{0x0128}, FlowGoto},
		{[]uint16{0x0029, 0x0001}, FlowGoto},
		{[]uint16{0x002a, 0x0001, 0x0000}, FlowGoto},
		{[]uint16{0x1032, 0x0001}, FlowBranch},
		{[]uint16{0x003d, 0x0001}, FlowBranch},
		{[]uint16{0x1071, 0x0000, 0x0000}, FlowNext},
		{[]uint16{0x0000}, FlowNext},
	}
	for _, tt := range tests {
		inst, err := decodeAt(tt.code, 0)
		if err != nil {
			t.Fatalf("decodeAt(%04x): %v", tt.code, err)
		}
		if got := inst.Flow(); got != tt.want {
			t.Errorf("%s: flow = %s, want %s", inst.Name(), got, tt.want)
		}
	}
}

func TestDecodeBranch_Goto(t *testing.T) {
	// goto/16 -0x10 at 0x20 → target 0x10
	inst := Inst{Addr: 0x20, Op: 0x29, Size: 2, Branch: -0x10}
	bi := DecodeBranch(inst)
	if bi == nil {
		t.Fatal("expected goto")
	}
	if bi.Target != 0x10 {
		t.Errorf("target = 0x%x, want 0x10", bi.Target)
	}
	if bi.Cond {
		t.Error("goto should not be conditional")
	}
}

func TestDecodeBranch_If(t *testing.T) {
	inst := Inst{Addr: 4, Op: OpIfEqz, Size: 2, Branch: 6}
	bi := DecodeBranch(inst)
	if bi == nil {
		t.Fatal("expected if-eqz")
	}
	if bi.Target != 10 || !bi.Cond {
		t.Errorf("got %+v, want conditional target 10", bi)
	}
}

func TestDecodeBranch_Switch(t *testing.T) {
	inst := Inst{Addr: 2, Op: OpSparseSwitch, Size: 3, Payload: &Payload{
		Kind:  SparseSwitchPayload,
		Cases: []SwitchCase{{Key: 1, Rel: 4}, {Key: 9, Rel: 6}},
	}}
	bi := DecodeBranch(inst)
	if bi == nil || !bi.Cond {
		t.Fatalf("got %+v, want conditional switch", bi)
	}
	if len(bi.Cases) != 2 || bi.Cases[0] != 6 || bi.Cases[1] != 8 {
		t.Errorf("cases = %v, want [6 8]", bi.Cases)
	}
}

func TestDecodeBranch_ReturnThrow(t *testing.T) {
	if bi := DecodeBranch(Inst{Op: OpReturnVoid}); bi == nil || !bi.IsRet {
		t.Errorf("return-void: got %+v", bi)
	}
	if bi := DecodeBranch(Inst{Op: OpThrow}); bi == nil || !bi.IsThrow {
		t.Errorf("throw: got %+v", bi)
	}
}

func TestDecodeBranch_NonBranch(t *testing.T) {
	for _, op := range []Opcode{OpNop, OpInvokeStatic, OpFillArrayData, OpConst4} {
		if bi := DecodeBranch(Inst{Op: op}); bi != nil {
			t.Errorf("%s: expected nil, got %+v", op, bi)
		}
		if IsBranchTerminator(Inst{Op: op}) {
			t.Errorf("%s should not terminate a block", op)
		}
	}
}

func TestIsInvoke(t *testing.T) {
	for op := 0x6e; op <= 0x78; op++ {
		if op == 0x73 {
			continue
		}
		if !IsInvoke(Inst{Op: Opcode(op)}) {
			t.Errorf("%s should be an invoke", Opcode(op))
		}
	}
	for _, op := range []Opcode{0xfa, 0xfb, 0xfc, 0xfd} {
		if !IsInvoke(Inst{Op: op}) {
			t.Errorf("%s should be an invoke", op)
		}
	}
	if IsInvoke(Inst{Op: 0x24}) {
		t.Error("filled-new-array is not an invoke")
	}
}
