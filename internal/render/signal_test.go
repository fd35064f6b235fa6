package render

import (
	"fmt"
	"strings"
	"testing"

	"dexcfg/internal/callgraph"
	"dexcfg/internal/disasm"
	"dexcfg/internal/signal"
)

const smsDefault = "Landroid/telephony/SmsManager;->getDefault()Landroid/telephony/SmsManager;"

func signalGraph() *signal.Graph {
	urls := make(map[int]string)
	for i := 0; i < 7; i++ {
		urls[i*2] = fmt.Sprintf("https://host%d.example.com/", i)
	}
	return signal.Build([]callgraph.MethodInfo{
		{
			Name:    "La;->send()V",
			Strings: map[int]string{0: "content://sms/sent"},
			Calls:   []disasm.CallEdge{{FromAddr: 2, Kind: "virtual", TargetName: smsDefault}},
		},
		{
			Name:  "La;->run()V",
			Calls: []disasm.CallEdge{{Kind: "direct", TargetName: "La;->send()V"}},
		},
		{Name: "La;->idle()V"},
		{Name: "Lb;->beacon()V", Strings: urls},
	}, 1)
}

func TestSignalDOT(t *testing.T) {
	out := SignalDOT(signalGraph(), "Signals", NASA)

	for _, want := range []string{
		"digraph signal {",
		"Signals",
		`subgraph cluster_` + dotID("La;"),
		dotID("La;->send()V") + ` [label="send()V\nsms,url", color="#C62828"`,
		dotID("La;->run()V") + ` [label="run()V", color="#BDBDBD"`,
		`label="content://sms/sent"`,
		`label="Landroid/telephony/SmsManager;->getDefault()Landroid/tele..."`,
		dotID("La;->run()V") + " -> " + dotID("La;->send()V") + ` [color="#C62828"]`,
		`label="+2 more"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, dotID("La;->idle()V")) {
		t.Error("methods outside the signal and context sets should be omitted")
	}
	if n := strings.Count(out, "https://host"); n != 5 {
		t.Errorf("drew %d url leaves, want 5", n)
	}
	if out != SignalDOT(signalGraph(), "Signals", NASA) {
		t.Error("output not deterministic")
	}
}

func TestSignalDOT_Empty(t *testing.T) {
	out := SignalDOT(signal.Build(nil, 1), "", Plain)
	if !strings.HasPrefix(out, "digraph signal {") || !strings.HasSuffix(out, "}\n") {
		t.Errorf("bad empty graph:\n%s", out)
	}
	if strings.Contains(out, "->") {
		t.Errorf("empty graph has edges:\n%s", out)
	}
}
