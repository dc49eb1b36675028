package activity

import (
	"strings"
	"testing"
)

func TestNormalizeStripsInclude(t *testing.T) {
	circuit := `OPENQASM 3.0;
include "stdgates.inc";
qubit[2] q;
bit[2] c;
h q[0];
cx q[0], q[1];
c = measure q;
`
	got := Normalize(circuit)

	if strings.Contains(got, "include") {
		t.Errorf("include directive survived normalization:\n%s", got)
	}
	if !strings.Contains(got, "gate h a") {
		t.Errorf("standard prelude not injected:\n%s", got)
	}
	if !strings.Contains(got, "h q[0];") {
		t.Errorf("circuit body lost:\n%s", got)
	}

	// прелюдия идёт после заголовка
	header := strings.Index(got, "OPENQASM")
	prelude := strings.Index(got, "gate h a")
	if header < 0 || prelude < header {
		t.Errorf("prelude before header:\n%s", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	circuits := []string{
		"OPENQASM 3.0;\ninclude \"stdgates.inc\";\nqubit q;\nbit c;\nh q;\nc = measure q;\n",
		"OPENQASM 3.0;\nqubit q;\nbit c;\nh q;\nc = measure q;\n",
		"OPENQASM 3.0;\ngate foo a { U(0,0,0) a; }\nqubit q;\nbit c;\nfoo q;\nc = measure q;\n",
	}

	for _, circuit := range circuits {
		once := Normalize(circuit)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize is not idempotent:\n--- once ---\n%s\n--- twice ---\n%s", once, twice)
		}
	}
}

func TestNormalizeKeepsUserGates(t *testing.T) {
	circuit := `OPENQASM 3.0;
gate myrot(theta) a { U(theta, 0, 0) a; }
qubit q;
bit c;
myrot(pi/2) q;
c = measure q;
`
	got := Normalize(circuit)

	// схема определяет гейты сама — прелюдию не вставляем
	if strings.Contains(got, "gate h a") {
		t.Errorf("prelude injected despite user gate definitions:\n%s", got)
	}
	if !strings.Contains(got, "gate myrot(theta) a") {
		t.Errorf("user gate definition lost:\n%s", got)
	}
}

func TestNormalizeNoHeader(t *testing.T) {
	circuit := "qubit q;\nbit c;\nh q;\nc = measure q;\n"
	got := Normalize(circuit)

	if !strings.HasPrefix(got, "gate id a") {
		t.Errorf("prelude should lead when there is no header:\n%s", got)
	}
}
