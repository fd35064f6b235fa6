package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexcfg/internal/config"
	"dexcfg/internal/dex"
	"dexcfg/internal/dexfmt"
	"dexcfg/internal/dextest"
	"dexcfg/internal/disasm"
	"dexcfg/internal/logging"
	"dexcfg/internal/output"
	"dexcfg/internal/render"
)

const (
	fooClass = "Lcom/example/Foo;"
	badClass = "Lcom/example/Bad;"
)

func code(insns ...uint16) *dextest.Code {
	return &dextest.Code{Registers: 2, Ins: 1, Outs: 1, Insns: insns}
}

func sampleBuilder() *dextest.Builder {
	b := &dextest.Builder{
		Classes: []dextest.Class{
			{
				Descriptor: fooClass,
				Super:      "Ljava/lang/Object;",
				Flags:      uint32(dex.AccPublic),
				Methods: []dextest.Method{
					{Name: "<init>", Return: "V", Flags: uint32(dex.AccPublic | dex.AccConstructor),
						Code: code(0x000e)},
					// if-eqz v0, +3; return-void; return-void
					{Name: "branch", Return: "V", Params: []string{"I"}, Flags: uint32(dex.AccStatic),
						Code: code(0x0038, 0x0003, 0x000e, 0x000e)},
					// const-string v0, "hello"; invoke-static {v0}, helper; return-void
					{Name: "calls", Return: "V", Flags: uint32(dex.AccStatic),
						Code: code(0x001a, 0x0000, 0x1071, 0x0000, 0x0000, 0x000e)},
					{Name: "helper", Return: "V", Params: []string{"Ljava/lang/String;"}, Flags: uint32(dex.AccStatic),
						Code: code(0x000e)},
					// packed-switch v0, +4; return-void; payload first_key=3 -> 0003
					{Name: "sw", Return: "V", Params: []string{"I"}, Flags: uint32(dex.AccStatic),
						Code: code(0x002b, 0x0004, 0x0000, 0x000e, 0x0100, 0x0001, 0x0003, 0x0000, 0x0003, 0x0000)},
					{Name: "abs", Return: "V", Flags: uint32(dex.AccPublic | dex.AccAbstract), Virtual: true},
					// nop x3; return-void; move-exception v0; return-void
					{Name: "guarded", Return: "V", Flags: uint32(dex.AccPublic), Virtual: true,
						Code: &dextest.Code{
							Registers: 2, Ins: 1,
							Insns: []uint16{0x0000, 0x0000, 0x0000, 0x000e, 0x000d, 0x000e},
							Tries: []dextest.Try{{
								Start: 0, Count: 3,
								Handlers:    []dextest.Handler{{Type: "Ljava/lang/Exception;", Addr: 4}},
								HasCatchAll: true, CatchAll: 5,
							}},
						}},
				},
			},
			{
				Descriptor: badClass,
				Super:      "Ljava/lang/Object;",
				Methods: []dextest.Method{
					// unused opcode 0x3e
					{Name: "opcode", Return: "V", Flags: uint32(dex.AccStatic), Code: code(0x003e)},
					// goto +5 past the end
					{Name: "target", Return: "V", Flags: uint32(dex.AccStatic), Code: code(0x0528, 0x000e)},
				},
			},
		},
		Strings: []string{"hello"},
	}
	// Patch pool indices now that the layout is known.
	calls := b.Classes[0].Methods[2].Code
	calls.Insns[1] = uint16(b.StringIndex("hello"))
	calls.Insns[3] = uint16(b.MethodIndex(fooClass, "helper"))
	return b
}

func newAnalyzer(t *testing.T, resolve bool) *Analyzer {
	t.Helper()
	f, err := dex.Parse(sampleBuilder().Bytes())
	require.NoError(t, err)
	return New(f, Options{ResolveNames: resolve})
}

func edgeLabels(cfg disasm.FuncCFG) []string {
	var out []string
	for _, e := range cfg.Edges() {
		out = append(out, e.Label())
	}
	return out
}

func TestQuery_Branch(t *testing.T) {
	a := newAnalyzer(t, true)
	m, err := a.Query("com.example.Foo", "branch", "")
	require.NoError(t, err)

	assert.Equal(t, "Lcom/example/Foo;->branch(I)V", m.Name)
	assert.Equal(t, "branch(I)V", m.Member)
	require.Len(t, m.CFG.Blocks, 3)
	assert.Equal(t, []string{"true", "false"}, edgeLabels(m.CFG))
	assert.True(t, m.CFG.Blocks[0].IsEntry)
	assert.True(t, m.CFG.Blocks[1].IsTerm)
	assert.True(t, m.CFG.Blocks[2].IsTerm)
}

func TestQuery_TryCatch(t *testing.T) {
	a := newAnalyzer(t, true)
	m, err := a.Query(fooClass, "guarded", "()V")
	require.NoError(t, err)

	require.Len(t, m.CFG.Blocks, 3)
	assert.Equal(t, []string{"catch java.lang.Exception", "catch any", "fallthrough"}, edgeLabels(m.CFG))

	tries, err := TryRanges(a.File(), m.Encoded.Code)
	require.NoError(t, err)
	require.Len(t, tries, 1)
	assert.Equal(t, 0, tries[0].Start)
	assert.Equal(t, 3, tries[0].End)
	assert.Equal(t, []disasm.Handler{{Type: "Ljava/lang/Exception;", Addr: 4}, {Addr: 5}}, tries[0].Handlers)
}

func TestQuery_Switch(t *testing.T) {
	a := newAnalyzer(t, true)
	m, err := a.Query(fooClass, "sw", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"case 3", "default"}, edgeLabels(m.CFG))
	require.Len(t, m.Code.Payloads, 1)
}

func TestQuery_PaddedSwitch(t *testing.T) {
	b := &dextest.Builder{
		Classes: []dextest.Class{{
			Descriptor: fooClass,
			Super:      "Ljava/lang/Object;",
			Methods: []dextest.Method{
				// packed-switch v0, +5; return-void; nop; payload first_key=3 -> 0003
				{Name: "sw", Return: "V", Params: []string{"I"}, Flags: uint32(dex.AccStatic),
					Code: code(0x002b, 0x0005, 0x0000, 0x000e, 0x0000,
						0x0100, 0x0001, 0x0003, 0x0000, 0x0003, 0x0000)},
			},
		}},
	}
	f, err := dex.Parse(b.Bytes())
	require.NoError(t, err)
	a := New(f, Options{ResolveNames: true})

	m, err := a.Query(fooClass, "sw", "(I)V")
	require.NoError(t, err)
	require.Len(t, m.CFG.Blocks, 3)
	assert.Equal(t, []string{"case 3", "default"}, edgeLabels(m.CFG))

	pad := m.CFG.Blocks[2]
	assert.Equal(t, disasm.OpNop, m.CFG.Insts[pad.Start].Op)
	assert.True(t, pad.IsTerm)
	assert.Empty(t, pad.Succs)
}

func TestQuery_Errors(t *testing.T) {
	a := newAnalyzer(t, true)

	_, err := a.Query("com.example.Missing", "run", "")
	require.Error(t, err)
	assert.Equal(t, dexfmt.KindMethodNotFound, dexfmt.KindOf(err))
	assert.True(t, errors.Is(err, dex.ErrClassNotFound))

	_, err = a.Query(fooClass, "nope", "")
	assert.True(t, errors.Is(err, dexfmt.ErrMethodNotFound))
	assert.False(t, errors.Is(err, dex.ErrClassNotFound))

	_, err = a.Query(fooClass, "abs", "")
	assert.True(t, errors.Is(err, dexfmt.ErrMethodNotFound))

	_, err = a.Query(badClass, "opcode", "")
	assert.True(t, errors.Is(err, dexfmt.ErrUnknownOpcode))
	assert.Equal(t, "decode", dexfmt.KindOf(err).Stage())
	assert.Contains(t, err.Error(), "Lcom/example/Bad;->opcode()V")

	_, err = a.Query(badClass, "target", "")
	assert.True(t, errors.Is(err, dexfmt.ErrInvalidTarget))
	assert.Equal(t, "cfg", dexfmt.KindOf(err).Stage())
}

func TestAnalyze_NoCode(t *testing.T) {
	a := newAnalyzer(t, false)
	c, err := a.Class(fooClass)
	require.NoError(t, err)
	var abs *dex.EncodedMethod
	for _, em := range c.Methods {
		if em.Code == nil {
			abs = em
		}
	}
	require.NotNil(t, abs)

	m, err := a.Analyze(abs)
	require.NoError(t, err)
	assert.Nil(t, m.Code)
	assert.Empty(t, m.CFG.Blocks)
	assert.Equal(t, "Lcom/example/Foo;->abs()V", m.CFG.Name)
}

func TestResolver(t *testing.T) {
	a := newAnalyzer(t, true)
	b := sampleBuilder()
	r := a.Resolver()
	require.NotNil(t, r)

	s, ok := r(disasm.IndexString, b.StringIndex("hello"))
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	s, ok = r(disasm.IndexMethod, b.MethodIndex(fooClass, "helper"))
	assert.True(t, ok)
	assert.Equal(t, "Lcom/example/Foo;->helper(Ljava/lang/String;)V", s)

	s, ok = r(disasm.IndexType, b.TypeIndex(fooClass))
	assert.True(t, ok)
	assert.Equal(t, fooClass, s)

	_, ok = r(disasm.IndexMethod, 0xffff)
	assert.False(t, ok)
	_, ok = r(disasm.IndexCallSite, 0)
	assert.False(t, ok)

	assert.Nil(t, newAnalyzer(t, false).Resolver())
}

func TestAnalyze_CallsResolved(t *testing.T) {
	a := newAnalyzer(t, true)
	m, err := a.Query(fooClass, "calls", "")
	require.NoError(t, err)
	require.Len(t, m.Calls, 1)
	assert.Equal(t, "Lcom/example/Foo;->helper(Ljava/lang/String;)V", m.Calls[0].Callee())
	assert.Equal(t, "static", m.Calls[0].Kind)

	raw := newAnalyzer(t, false)
	m, err = raw.Query(fooClass, "calls", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.Calls[0].Callee(), "method@"))
}

func TestRender_Formats(t *testing.T) {
	a := newAnalyzer(t, true)
	m, err := a.Query(fooClass, "calls", "")
	require.NoError(t, err)

	dot, err := a.Render(m, RenderOptions{Format: config.FormatDOT, Theme: render.Plain})
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph cfg {")
	assert.Contains(t, string(dot), "&quot;hello&quot;")
	again, err := a.Render(m, RenderOptions{Format: config.FormatDOT, Theme: render.Plain})
	require.NoError(t, err)
	assert.Equal(t, dot, again)

	js, err := a.Render(m, RenderOptions{Format: config.FormatJSON})
	require.NoError(t, err)
	var rec output.CFGRecord
	require.NoError(t, json.Unmarshal(js, &rec))
	assert.Equal(t, m.Name, rec.Method)
	require.Len(t, rec.Calls, 1)

	lat, err := a.Render(m, RenderOptions{Format: config.FormatLattice})
	require.NoError(t, err)
	assert.NotEmpty(t, lat)

	_, err = a.Render(m, RenderOptions{Format: "svg"})
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	var logs bytes.Buffer
	f, err := dex.Parse(sampleBuilder().Bytes())
	require.NoError(t, err)
	a := New(f, Options{ResolveNames: true, Logger: logging.NewLoggerWithWriter(&logs, "debug")})

	results, err := a.Batch(context.Background(), "com/example/Foo", 2, &RenderOptions{Format: config.FormatDOT})
	require.NoError(t, err)

	var members []string
	for _, r := range results {
		members = append(members, r.Method.Member)
		assert.True(t, bytes.HasPrefix(r.Doc, []byte("digraph cfg {")), r.Method.Name)
	}
	// abs has no code and is skipped; order follows class data.
	assert.Equal(t, []string{"<init>()V", "branch(I)V", "calls()V", "helper(Ljava/lang/String;)V", "sw(I)V", "guarded()V"}, members)
	assert.Contains(t, logs.String(), "cfg built")
}

func TestBatch_NoRender(t *testing.T) {
	a := newAnalyzer(t, true)
	results, err := a.Batch(context.Background(), fooClass, 1, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.Nil(t, r.Doc)
	}
}

func TestBatch_FailFast(t *testing.T) {
	a := newAnalyzer(t, true)
	_, err := a.Batch(context.Background(), badClass, 4, nil)
	require.Error(t, err)
	k := dexfmt.KindOf(err)
	assert.Contains(t, []dexfmt.Kind{dexfmt.KindUnknownOpcode, dexfmt.KindInvalidTarget}, k)
}

func TestBatch_Canceled(t *testing.T) {
	a := newAnalyzer(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Batch(ctx, fooClass, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatch_MissingClass(t *testing.T) {
	a := newAnalyzer(t, true)
	_, err := a.Batch(context.Background(), "com.example.Nope", 1, nil)
	assert.True(t, errors.Is(err, dex.ErrClassNotFound))
}

func TestCallGraph(t *testing.T) {
	a := newAnalyzer(t, true)
	infos, err := a.CallGraph(context.Background(), fooClass, 4)
	require.NoError(t, err)
	require.Len(t, infos, 6)

	var calls *disasm.CallEdge
	for _, mi := range infos {
		if mi.Name == "Lcom/example/Foo;->calls()V" {
			require.Len(t, mi.Calls, 1)
			calls = &mi.Calls[0]
			assert.Equal(t, "hello", mi.Strings[0])
		}
	}
	require.NotNil(t, calls)
	assert.Equal(t, "Lcom/example/Foo;->helper(Ljava/lang/String;)V", calls.TargetName)
}
