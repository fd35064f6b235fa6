package disasm

import (
	"errors"
	"strconv"
	"testing"

	"dexcfg/internal/dexfmt"
)

func buildCFG(t *testing.T, code []uint16, tries []TryRange) FuncCFG {
	t.Helper()
	c, err := Decode(code)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cfg, err := BuildCFG("test", c, tries)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	checkPartition(t, cfg)
	return cfg
}

// checkPartition verifies that blocks cover every instruction exactly once.
func checkPartition(t *testing.T, cfg FuncCFG) {
	t.Helper()
	next := 0
	for i, b := range cfg.Blocks {
		if b.ID != i {
			t.Errorf("block %d has ID %d", i, b.ID)
		}
		if b.Start != next {
			t.Errorf("block %d starts at %d, want %d", i, b.Start, next)
		}
		if b.End <= b.Start {
			t.Errorf("block %d is empty [%d,%d)", i, b.Start, b.End)
		}
		if b.StartAddr != cfg.Insts[b.Start].Addr || b.EndAddr != cfg.Insts[b.End-1].End() {
			t.Errorf("block %d addr range [%d,%d) does not match its instructions", i, b.StartAddr, b.EndAddr)
		}
		next = b.End
	}
	if next != len(cfg.Insts) {
		t.Errorf("blocks end at %d, want %d", next, len(cfg.Insts))
	}
}

func succs(b BasicBlock) []string {
	var out []string
	for _, s := range b.Succs {
		out = append(out, s.Label()+"->"+strconv.Itoa(s.BlockID))
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildCFG_SingleReturn(t *testing.T) {
	cfg := buildCFG(t, []uint16{0x000e}, nil)
	if len(cfg.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(cfg.Blocks))
	}
	blk := cfg.Blocks[0]
	if !blk.IsEntry || !blk.IsTerm {
		t.Errorf("entry=%v term=%v, want both", blk.IsEntry, blk.IsTerm)
	}
	if n := len(cfg.Edges()); n != 0 {
		t.Errorf("edges = %d, want 0", n)
	}
}

func TestBuildCFG_ConditionalBranch(t *testing.T) {
	//   0: if-eqz v0, +4
	//   2: const/4 v1, 0x1
	//   3: return-void
	//   4: const/4 v1, 0x2   (branch target)
	//   5: return-void
	cfg := buildCFG(t, []uint16{0x0038, 0x0004, 0x1112, 0x000e, 0x2112, 0x000e}, nil)
	if len(cfg.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(cfg.Blocks))
	}
	want := []string{"true->2", "false->1"}
	if got := succs(cfg.Blocks[0]); !equalStrings(got, want) {
		t.Errorf("block 0 succs = %v, want %v", got, want)
	}
	if n := len(cfg.Edges()); n != 2 {
		t.Errorf("edges = %d, want 2", n)
	}
	if cfg.Blocks[0].IsTerm {
		t.Error("branch block marked terminal")
	}
}

func TestBuildCFG_PackedSwitch(t *testing.T) {
	code := []uint16{
		0x002b, 0x0008, 0x0000, // 0: packed-switch v0, +8
		0x000e,                 // 3: return-void (default)
		0x000e,                 // 4: case 0
		0x000e,                 // 5: case 1
		0x000e,                 // 6: case 2
		0x000e,                 // 7: unreachable
		0x0100, 0x0003, 0x0000, 0x0000,
		0x0004, 0x0000, 0x0005, 0x0000, 0x0006, 0x0000,
	}
	cfg := buildCFG(t, code, nil)
	if len(cfg.Blocks) != 6 {
		t.Fatalf("blocks = %d, want 6", len(cfg.Blocks))
	}
	want := []string{"case 0->2", "case 1->3", "case 2->4", "default->1"}
	if got := succs(cfg.Blocks[0]); !equalStrings(got, want) {
		t.Errorf("switch succs = %v, want %v", got, want)
	}
}

func TestBuildCFG_PayloadPadding(t *testing.T) {
	code := []uint16{
		0x002b, 0x0008, 0x0000, // 0: packed-switch v0, +8
		0x0f28,                 // 3: goto +15 (default)
		0x000e,                 // 4: case 0
		0x000e,                 // 5: case 1
		0x000e,                 // 6: case 2
		0x0000,                 // 7: nop, aligns the payload
		0x0100, 0x0003, 0x0000, 0x0000,
		0x0004, 0x0000, 0x0005, 0x0000, 0x0006, 0x0000,
		0x000e, // 18: return-void
	}
	cfg := buildCFG(t, code, nil)
	if len(cfg.Blocks) != 7 {
		t.Fatalf("blocks = %d, want 7", len(cfg.Blocks))
	}
	want := []string{"case 0->2", "case 1->3", "case 2->4", "default->1"}
	if got := succs(cfg.Blocks[0]); !equalStrings(got, want) {
		t.Errorf("switch succs = %v, want %v", got, want)
	}
	pad := cfg.Blocks[5]
	if pad.StartAddr != 7 || pad.EndAddr != 8 {
		t.Errorf("pad block = [%d,%d), want [7,8)", pad.StartAddr, pad.EndAddr)
	}
	if !pad.IsTerm || len(pad.Succs) != 0 {
		t.Errorf("pad block term=%v succs=%v, want terminal with no edges", pad.IsTerm, succs(pad))
	}
	if got := succs(cfg.Blocks[1]); !equalStrings(got, []string{"goto->6"}) {
		t.Errorf("goto succs = %v, want [goto->6]", got)
	}
	if cfg.Blocks[6].StartAddr != 18 {
		t.Errorf("block after payload starts at %d, want 18", cfg.Blocks[6].StartAddr)
	}
	for _, e := range cfg.Edges() {
		if e.To == 5 {
			t.Errorf("edge %d->%d reaches the pad", e.From, e.To)
		}
	}
}

func TestBuildCFG_SparseSwitchOrder(t *testing.T) {
	code := []uint16{
		0x002c, 0x0006, 0x0000, // 0: sparse-switch v0, +6
		0x000e,                 // 3: default
		0x000e,                 // 4
		0x000e,                 // 5
		0x0200, 0x0002,
		0x0007, 0x0000, 0x0002, 0x0000, // keys 7, 2 (unsorted)
		0x0004, 0x0000, 0x0005, 0x0000,
	}
	cfg := buildCFG(t, code, nil)
	want := []string{"case 2->3", "case 7->2", "default->1"}
	if got := succs(cfg.Blocks[0]); !equalStrings(got, want) {
		t.Errorf("switch succs = %v, want %v", got, want)
	}
}

func TestBuildCFG_TryCatch(t *testing.T) {
	//   0: const/4 v0, 0x0
	//   1: const/4 v1, 0x1
	//   2: div-int/2addr v0, v1
	//   3: return-void
	//   4: move-exception v0   (handler)
	//   5: return-void
	code := []uint16{0x0012, 0x1112, 0x10b3, 0x000e, 0x000d, 0x000e}
	tries := []TryRange{{Start: 0, End: 3, Handlers: []Handler{{Type: "Ljava/lang/Exception;", Addr: 4}}}}
	cfg := buildCFG(t, code, tries)
	if len(cfg.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(cfg.Blocks))
	}
	want := []string{"catch java.lang.Exception->1"}
	if got := succs(cfg.Blocks[0]); !equalStrings(got, want) {
		t.Errorf("block 0 succs = %v, want %v", got, want)
	}
	if !cfg.Blocks[0].IsTerm {
		t.Error("block ending in return should be terminal despite catch edge")
	}
	if len(cfg.Blocks[1].Succs) != 0 {
		t.Errorf("handler block succs = %v, want none", succs(cfg.Blocks[1]))
	}
}

func TestBuildCFG_CatchAllAfterNormalEdges(t *testing.T) {
	//   0: if-eqz v0, +3   (try start)
	//   2: const/4 v0, 0x1
	//   3: return-void
	//   4: move-exception v0   (Exception handler)
	//   5: return-void
	//   6: return-void         (catch-all)
	code := []uint16{0x0038, 0x0003, 0x1012, 0x000e, 0x000d, 0x000e, 0x000e}
	tries := []TryRange{{Start: 0, End: 3, Handlers: []Handler{
		{Type: "Ljava/lang/Exception;", Addr: 4},
		{Type: "", Addr: 6},
	}}}
	cfg := buildCFG(t, code, tries)
	// Blocks: 0 [0], 1 [2,3), 2 [3], 3 [4,5], 4 [6]
	if len(cfg.Blocks) != 5 {
		t.Fatalf("blocks = %d, want 5", len(cfg.Blocks))
	}
	want := []string{"true->2", "false->1", "catch java.lang.Exception->3", "catch any->4"}
	if got := succs(cfg.Blocks[0]); !equalStrings(got, want) {
		t.Errorf("block 0 succs = %v, want %v", got, want)
	}
	// The try ends at 3, so block 1 is covered and block 2 is not.
	want = []string{"fallthrough->2", "catch java.lang.Exception->3", "catch any->4"}
	if got := succs(cfg.Blocks[1]); !equalStrings(got, want) {
		t.Errorf("block 1 succs = %v, want %v", got, want)
	}
	if got := succs(cfg.Blocks[2]); len(got) != 0 {
		t.Errorf("block 2 succs = %v, want none", got)
	}
}

func TestBuildCFG_TryEndIsNotLeader(t *testing.T) {
	// The try covers only the first const; the block still spans both.
	code := []uint16{0x0012, 0x1112, 0x000e, 0x000e}
	tries := []TryRange{{Start: 0, End: 1, Handlers: []Handler{{Addr: 3}}}}
	cfg := buildCFG(t, code, tries)
	if len(cfg.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(cfg.Blocks))
	}
	if cfg.Blocks[0].End != 3 {
		t.Errorf("block 0 ends at index %d, want 3", cfg.Blocks[0].End)
	}
	want := []string{"catch any->1"}
	if got := succs(cfg.Blocks[0]); !equalStrings(got, want) {
		t.Errorf("block 0 succs = %v, want %v", got, want)
	}
}

func TestBuildCFG_GotoLoop(t *testing.T) {
	//   0: add-int/lit8 v0, v0, 0x1
	//   2: if-nez v0, +3
	//   4: goto -2
	//   5: return-void
	code := []uint16{0x00d8, 0x0100, 0x0039, 0x0003, 0xfe28, 0x000e}
	cfg := buildCFG(t, code, nil)
	if len(cfg.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(cfg.Blocks))
	}
	tests := []struct {
		block int
		want  []string
	}{
		{0, []string{"fallthrough->1"}},
		{1, []string{"true->3", "false->2"}},
		{2, []string{"goto->1"}},
		{3, nil},
	}
	for _, tt := range tests {
		if got := succs(cfg.Blocks[tt.block]); !equalStrings(got, tt.want) {
			t.Errorf("block %d succs = %v, want %v", tt.block, got, tt.want)
		}
	}
}

func TestBuildCFG_InvalidTarget(t *testing.T) {
	tests := []struct {
		name  string
		code  []uint16
		tries []TryRange
		off   int64
	}{
		{"goto mid-instruction", []uint16{0x0014, 0x0000, 0x0000, 0xfe28}, nil, 3},
		{"branch past end", []uint16{0x0038, 0x0005, 0x000e}, nil, 0},
		{"falls off end", []uint16{0x0012}, nil, 0},
		{"falls into payload", []uint16{
			0x0026, 0x0004, 0x0000, 0x0000,
			0x0300, 0x0001, 0x0000, 0x0000,
		}, nil, 3},
		{"handler past end", []uint16{0x000e}, []TryRange{{Start: 0, End: 1, Handlers: []Handler{{Addr: 7}}}}, 7},
		{"try start mid-instruction", []uint16{0x0014, 0x0000, 0x0000, 0x000e},
			[]TryRange{{Start: 1, End: 3, Handlers: []Handler{{Addr: 3}}}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Decode(tt.code)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			_, err = BuildCFG("bad", c, tt.tries)
			if !errors.Is(err, dexfmt.ErrInvalidTarget) {
				t.Fatalf("err = %v, want InvalidTarget", err)
			}
			var de *dexfmt.Error
			if errors.As(err, &de) && de.Offset != tt.off {
				t.Errorf("offset = %d, want %d", de.Offset, tt.off)
			}
		})
	}
}

func TestBuildCFG_Empty(t *testing.T) {
	cfg, err := BuildCFG("empty", &Code{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(cfg.Blocks))
	}
}

func TestBlockOf(t *testing.T) {
	cfg := buildCFG(t, []uint16{0x0038, 0x0004, 0x1112, 0x000e, 0x2112, 0x000e}, nil)
	for i, want := range []int{0, 1, 1, 2, 2} {
		got, ok := cfg.BlockOf(i)
		if !ok || got != want {
			t.Errorf("BlockOf(%d) = %d, %v, want %d", i, got, ok, want)
		}
	}
	if _, ok := cfg.BlockOf(5); ok {
		t.Error("BlockOf past end succeeded")
	}
}
