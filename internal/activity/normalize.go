package activity

import (
	"regexp"
	"strings"
)

// includeRe матчит include-директивы QASM3 целиком.
var includeRe = regexp.MustCompile(`(?m)^\s*include\s+"[^"]*"\s*;\s*$`)

// standardPrelude — определения стандартных гейтов через примитивы
// U и ctrl @. Подставляется вместо "stdgates.inc", который симулятор
// не умеет читать с диска.
const standardPrelude = `gate id a { U(0, 0, 0) a; }
gate x a { U(pi, 0, pi) a; }
gate y a { U(pi, pi/2, pi/2) a; }
gate z a { U(0, 0, pi) a; }
gate h a { U(pi/2, 0, pi) a; }
gate s a { U(0, 0, pi/2) a; }
gate sdg a { U(0, 0, -pi/2) a; }
gate t a { U(0, 0, pi/4) a; }
gate tdg a { U(0, 0, -pi/4) a; }
gate cx c, t { ctrl @ x c, t; }`

// gateDefRe определяет, есть ли в схеме собственные gate-определения.
var gateDefRe = regexp.MustCompile(`(?m)^\s*gate\s`)

// Normalize приводит схему к самодостаточному виду: вырезает
// include-директивы и, если схема не определяет гейты сама,
// вставляет стандартную прелюдию после заголовка OPENQASM.
//
// Функция идемпотентна: Normalize(Normalize(x)) == Normalize(x).
func Normalize(circuit string) string {
	out := includeRe.ReplaceAllString(circuit, "")

	if gateDefRe.MatchString(out) {
		return out
	}

	idx := headerEnd(out)
	if idx < 0 {
		// нет заголовка — прелюдия в начало, парсер сам разберётся
		return standardPrelude + "\n" + out
	}
	return out[:idx] + "\n" + standardPrelude + out[idx:]
}

// headerEnd возвращает позицию сразу после "OPENQASM ...;" или -1.
func headerEnd(source string) int {
	idx := strings.Index(source, "OPENQASM")
	if idx < 0 {
		return -1
	}
	end := strings.Index(source[idx:], ";")
	if end < 0 {
		return -1
	}
	return idx + end + 1
}
