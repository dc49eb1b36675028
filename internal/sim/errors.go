package sim

import "errors"

// Ошибки симулятора.
//
// Все ошибки, кроме ErrInternal, детерминированы: они зависят только
// от текста схемы и повторный запуск даст тот же результат.
var (
	// ErrEmptyCircuit — пустая схема (или пустая после нормализации).
	ErrEmptyCircuit = errors.New("circuit is empty")

	// ErrParse — синтаксическая ошибка в тексте схемы.
	ErrParse = errors.New("parse error")

	// ErrUnsupported — конструкция вне поддерживаемого подмножества QASM3.
	ErrUnsupported = errors.New("unsupported construct")

	// ErrUnknownGate — применение необъявленного гейта.
	ErrUnknownGate = errors.New("unknown gate")

	// ErrTooManyQubits — схема превышает лимит кубитов симулятора.
	ErrTooManyQubits = errors.New("too many qubits")

	// ErrNoMeasurement — схема не содержит ни одного измерения.
	ErrNoMeasurement = errors.New("circuit has no measurements")

	// ErrInternal — внутренняя ошибка симулятора.
	ErrInternal = errors.New("simulator internal error")
)

// IsDeterministic возвращает true, если ошибка детерминирована
// входными данными и повтор не имеет смысла.
func IsDeterministic(err error) bool {
	for _, kind := range []error{
		ErrEmptyCircuit, ErrParse, ErrUnsupported,
		ErrUnknownGate, ErrTooManyQubits, ErrNoMeasurement,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
