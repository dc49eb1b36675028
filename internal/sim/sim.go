package sim

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/shaiso/Quanta/internal/domain"
)

// DefaultMaxQubits — лимит кубитов по умолчанию.
// 2^20 амплитуд по 16 байт ≈ 16 МиБ на statevector.
const DefaultMaxQubits = 20

// Config — настройки симулятора.
type Config struct {
	// MaxQubits — максимальное число кубитов в схеме.
	MaxQubits int

	// Seed — зерно генератора для сэмплирования.
	// 0 — недетерминированное зерно.
	Seed uint64
}

// Simulator — statevector-симулятор квантовых схем.
// Один Simulator делят конкурентные workflow-инстансы; rand.Rand не
// потокобезопасен, поэтому генератор под мьютексом.
type Simulator struct {
	maxQubits int

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New создаёт симулятор.
func New(cfg Config) *Simulator {
	maxQubits := cfg.MaxQubits
	if maxQubits <= 0 {
		maxQubits = DefaultMaxQubits
	}

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Simulator{
		maxQubits: maxQubits,
		rng:       rng,
	}
}

// Run парсит и исполняет схему, сэмплируя shots измерений.
// Ключи гистограммы — битовые строки классического регистра,
// старший бит слева. Сумма значений равна shots.
func (s *Simulator) Run(ctx context.Context, circuit string, shots int) (domain.Histogram, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("%w: shots must be positive, got %d", ErrInternal, shots)
	}

	prog, err := Parse(circuit)
	if err != nil {
		return nil, err
	}
	if prog.NumQubits > s.maxQubits {
		return nil, fmt.Errorf("%w: %d qubits (limit %d)", ErrTooManyQubits, prog.NumQubits, s.maxQubits)
	}

	state, err := s.evolve(ctx, prog)
	if err != nil {
		return nil, err
	}

	return s.sample(ctx, prog, state, shots)
}

// evolve применяет все гейты программы к начальному состоянию |0...0⟩.
func (s *Simulator) evolve(ctx context.Context, prog *Program) ([]complex128, error) {
	state := make([]complex128, 1<<prog.NumQubits)
	state[0] = 1

	for i, op := range prog.Ops {
		// длинные схемы прерываемы между гейтами
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := apply(state, prog.NumQubits, op); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// apply применяет одну инструкцию (controlled-)U к вектору состояния.
// Кубит i соответствует биту i индекса амплитуды (little-endian).
func apply(state []complex128, numQubits int, op Instruction) error {
	if op.Target < 0 || op.Target >= numQubits {
		return fmt.Errorf("%w: target qubit %d out of range", ErrInternal, op.Target)
	}

	var ctrlMask int
	for _, c := range op.Controls {
		if c < 0 || c >= numQubits {
			return fmt.Errorf("%w: control qubit %d out of range", ErrInternal, c)
		}
		if c == op.Target {
			return fmt.Errorf("%w: control equals target qubit %d", ErrInternal, c)
		}
		ctrlMask |= 1 << c
	}

	u00, u01, u10, u11 := uMatrix(op.Theta, op.Phi, op.Lambda)
	targetBit := 1 << op.Target

	for i := range state {
		// обрабатываем каждую пару (|...0...⟩, |...1...⟩) один раз
		if i&targetBit != 0 {
			continue
		}
		if i&ctrlMask != ctrlMask {
			continue
		}
		j := i | targetBit
		a0, a1 := state[i], state[j]
		state[i] = u00*a0 + u01*a1
		state[j] = u10*a0 + u11*a1
	}
	return nil
}

// uMatrix — матрица U(θ, φ, λ):
//
//	[ cos(θ/2)            -e^{iλ}·sin(θ/2)      ]
//	[ e^{iφ}·sin(θ/2)      e^{i(φ+λ)}·cos(θ/2)  ]
func uMatrix(theta, phi, lambda float64) (u00, u01, u10, u11 complex128) {
	cos := complex(math.Cos(theta/2), 0)
	sin := complex(math.Sin(theta/2), 0)

	u00 = cos
	u01 = -cmplx.Exp(complex(0, lambda)) * sin
	u10 = cmplx.Exp(complex(0, phi)) * sin
	u11 = cmplx.Exp(complex(0, phi+lambda)) * cos
	return u00, u01, u10, u11
}

// sample сэмплирует shots исходов из финального состояния и
// собирает гистограмму по классическому регистру.
func (s *Simulator) sample(ctx context.Context, prog *Program, state []complex128, shots int) (domain.Histogram, error) {
	cumulative := make([]float64, len(state))
	total := 0.0
	for i, amp := range state {
		total += real(amp)*real(amp) + imag(amp)*imag(amp)
		cumulative[i] = total
	}
	if math.Abs(total-1) > 1e-6 {
		return nil, fmt.Errorf("%w: state norm %.9f", ErrInternal, total)
	}

	hist := make(domain.Histogram)
	for shot := 0; shot < shots; shot++ {
		if shot%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		s.rngMu.Lock()
		r := s.rng.Float64() * total
		s.rngMu.Unlock()
		outcome := sort.SearchFloat64s(cumulative, r)
		if outcome >= len(state) {
			outcome = len(state) - 1
		}

		hist[bitstring(prog, outcome)]++
	}
	return hist, nil
}

// bitstring собирает ключ гистограммы из исхода измерений:
// классический бит i занимает позицию i справа (старший бит слева).
func bitstring(prog *Program, outcome int) string {
	bits := make([]byte, prog.NumClbits)
	for i := range bits {
		bits[i] = '0'
	}
	for _, m := range prog.Measures {
		if outcome&(1<<m.Qubit) != 0 {
			bits[prog.NumClbits-1-m.Clbit] = '1'
		} else {
			bits[prog.NumClbits-1-m.Clbit] = '0'
		}
	}
	return string(bits)
}
