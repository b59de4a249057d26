package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"nfesorter/internal/nfe"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

func TestAccumulatorCountsMalformedAsRejected(t *testing.T) {
	var acc Accumulator
	for _, c := range []nfe.Category{
		nfe.CategoryApproved,
		nfe.CategoryContingency,
		nfe.CategoryRejected,
		nfe.CategoryMalformed,
		nfe.CategoryApproved,
	} {
		acc.Increment(c)
	}
	got := acc.Snapshot()
	want := Stats{Approved: 2, Contingency: 1, Rejected: 2}
	if got != want {
		t.Fatalf("snapshot=%+v want %+v", got, want)
	}
	if got.Total() != 5 {
		t.Fatalf("total=%d want 5", got.Total())
	}
}

func TestStatsJSONKeys(t *testing.T) {
	b, err := json.Marshal(Stats{Approved: 1, Contingency: 2, Rejected: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"aprovados":1,"contingencia":2,"rejeitados":3}` {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestRenderEmptyProducesNothing(t *testing.T) {
	var b Builder
	data, ok, err := b.Render()
	if err != nil || ok || data != nil {
		t.Fatalf("expected no report, got ok=%v err=%v data=%q", ok, err, data)
	}
}

func TestRenderLayout(t *testing.T) {
	var b Builder
	b.Record("lote/c.xml", "110", "Rejeicao: duplicidade")
	b.Record("a.xml", nfe.ParseErrorCode, nfe.ParseErrorText)

	data, ok, err := b.Render()
	if err != nil || !ok {
		t.Fatalf("render: ok=%v err=%v", ok, err)
	}
	if !bytes.HasPrefix(data, bom) {
		t.Fatalf("missing byte-order mark: %q", data[:min(len(data), 8)])
	}
	want := "Arquivo;cStat;Motivo\nlote/c.xml;110;Rejeicao: duplicidade\na.xml;ERRO_PARSE;XML invalido\n"
	if got := string(data[len(bom):]); got != want {
		t.Fatalf("report body:\n%q\nwant\n%q", got, want)
	}
}

func TestRenderQuotesSpecialFields(t *testing.T) {
	var b Builder
	b.Record("x.xml", "225", `Falha; campo "vNF" inválido`)
	data, _, err := b.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, bom)))
	r.Comma = ';'
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[1][2] != `Falha; campo "vNF" inválido` {
		t.Fatalf("reason not preserved: %q", rows[1][2])
	}
	if b.Len() != 1 {
		t.Fatalf("len=%d want 1", b.Len())
	}
}
