package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

func TestRunBell(t *testing.T) {
	s := New(Config{Seed: 42})

	const shots = 4096
	hist, err := s.Run(context.Background(), bellSource, shots)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := hist.Shots(); got != shots {
		t.Errorf("Shots() = %d, want %d", got, shots)
	}

	for key := range hist {
		if key != "00" && key != "11" {
			t.Errorf("unexpected outcome %q in bell histogram", key)
		}
	}

	// амплитуды равные, оба исхода должны встретиться с запасом
	for _, key := range []string{"00", "11"} {
		n := hist[key]
		if math.Abs(float64(n)-shots/2) > shots/10 {
			t.Errorf("hist[%q] = %d, want ~%d", key, n, shots/2)
		}
	}
}

func TestRunDeterministicOutcome(t *testing.T) {
	source := `
OPENQASM 3.0;
qubit[2] q;
bit[2] c;
x q[0];
c = measure q;
`
	s := New(Config{Seed: 1})
	hist, err := s.Run(context.Background(), source, 100)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// x на q[0]: бит c[0] — младший, ключ "01" (старший бит слева)
	if hist["01"] != 100 {
		t.Errorf("hist = %v, want {\"01\": 100}", hist)
	}
}

func TestRunGHZ(t *testing.T) {
	source := `
OPENQASM 3.0;
qubit[3] q;
bit[3] c;
h q[0];
cx q[0], q[1];
cx q[1], q[2];
c = measure q;
`
	s := New(Config{Seed: 7})
	hist, err := s.Run(context.Background(), source, 1000)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for key := range hist {
		if key != "000" && key != "111" {
			t.Errorf("unexpected outcome %q in GHZ histogram", key)
		}
	}
	if hist.Shots() != 1000 {
		t.Errorf("Shots() = %d, want 1000", hist.Shots())
	}
}

func TestRunSeedReproducible(t *testing.T) {
	run := func() map[string]int {
		s := New(Config{Seed: 99})
		hist, err := s.Run(context.Background(), bellSource, 256)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return hist
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("histograms differ: %v vs %v", a, b)
	}
	for k, v := range a {
		if b[k] != v {
			t.Errorf("hist[%q] = %d vs %d", k, v, b[k])
		}
	}
}

func TestRunConcurrent(t *testing.T) {
	// воркер делит один Simulator между параллельными инстансами;
	// под -race ловит гонку на генераторе
	s := New(Config{Seed: 5})

	const workers = 4
	const shots = 2048

	var wg sync.WaitGroup
	errs := make([]error, workers)
	hists := make([]map[string]int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hist, err := s.Run(context.Background(), bellSource, shots)
			errs[i], hists[i] = err, hist
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("Run() #%d error = %v", i, errs[i])
		}
		total := 0
		for _, n := range hists[i] {
			total += n
		}
		if total != shots {
			t.Errorf("Run() #%d sampled %d shots, want %d", i, total, shots)
		}
	}
}

func TestRunTooManyQubits(t *testing.T) {
	s := New(Config{MaxQubits: 2, Seed: 1})
	source := `
OPENQASM 3.0;
qubit[3] q;
bit[3] c;
h q[0];
c = measure q;
`
	_, err := s.Run(context.Background(), source, 10)
	if !errors.Is(err, ErrTooManyQubits) {
		t.Errorf("Run() error = %v, want ErrTooManyQubits", err)
	}
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Config{Seed: 1})
	_, err := s.Run(ctx, bellSource, 10000)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunContextDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	s := New(Config{Seed: 1})
	_, err := s.Run(ctx, bellSource, 10000)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestUMatrixUnitary(t *testing.T) {
	for _, angles := range [][3]float64{
		{0, 0, 0},
		{math.Pi, 0, math.Pi},
		{math.Pi / 2, 0, math.Pi},
		{1.1, 2.2, 3.3},
	} {
		u00, u01, u10, u11 := uMatrix(angles[0], angles[1], angles[2])

		// столбцы ортонормированы
		norm0 := abs2(u00) + abs2(u10)
		norm1 := abs2(u01) + abs2(u11)
		if math.Abs(norm0-1) > 1e-12 || math.Abs(norm1-1) > 1e-12 {
			t.Errorf("U(%v): column norms %v, %v", angles, norm0, norm1)
		}
	}
}

func abs2(c complex128) float64 {
	return real(c)*real(c) + imag(c)*imag(c)
}

func TestIsDeterministic(t *testing.T) {
	for _, err := range []error{ErrParse, ErrUnsupported, ErrUnknownGate, ErrEmptyCircuit, ErrNoMeasurement, ErrTooManyQubits} {
		if !IsDeterministic(err) {
			t.Errorf("IsDeterministic(%v) = false", err)
		}
	}
	if IsDeterministic(ErrInternal) {
		t.Error("IsDeterministic(ErrInternal) = true")
	}
	if IsDeterministic(context.Canceled) {
		t.Error("IsDeterministic(context.Canceled) = true")
	}
}
