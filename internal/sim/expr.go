package sim

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// evalExpr вычисляет угловое выражение: числа, pi, имена параметров,
// + - * /, скобки, унарный минус.
func evalExpr(expr string, vars map[string]float64) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: empty expression", ErrParse)
	}

	ev := &exprEval{tokens: tokens, vars: vars}
	v, err := ev.parseSum()
	if err != nil {
		return 0, err
	}
	if ev.pos != len(ev.tokens) {
		return 0, fmt.Errorf("%w: trailing tokens in expression %q", ErrParse, expr)
	}
	return v, nil
}

func tokenize(expr string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(expr) {
		r := rune(expr[i])
		switch {
		case r == ' ' || r == '\t':
			i++
		case strings.ContainsRune("+-*/()", r):
			tokens = append(tokens, string(r))
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(expr) && (unicode.IsDigit(rune(expr[j])) || expr[j] == '.' || expr[j] == 'e' ||
				(j > i && (expr[j] == '+' || expr[j] == '-') && (expr[j-1] == 'e' || expr[j-1] == 'E'))) {
				j++
			}
			tokens = append(tokens, expr[i:j])
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j])) || expr[j] == '_') {
				j++
			}
			tokens = append(tokens, expr[i:j])
			i = j
		case r == 'π':
			tokens = append(tokens, "pi")
			i += len("π")
		default:
			return nil, fmt.Errorf("%w: unexpected character %q in expression", ErrParse, r)
		}
	}
	return tokens, nil
}

type exprEval struct {
	tokens []string
	vars   map[string]float64
	pos    int
}

func (e *exprEval) peek() string {
	if e.pos < len(e.tokens) {
		return e.tokens[e.pos]
	}
	return ""
}

func (e *exprEval) parseSum() (float64, error) {
	v, err := e.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch e.peek() {
		case "+":
			e.pos++
			rhs, err := e.parseProduct()
			if err != nil {
				return 0, err
			}
			v += rhs
		case "-":
			e.pos++
			rhs, err := e.parseProduct()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (e *exprEval) parseProduct() (float64, error) {
	v, err := e.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch e.peek() {
		case "*":
			e.pos++
			rhs, err := e.parseUnary()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case "/":
			e.pos++
			rhs, err := e.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("%w: division by zero in expression", ErrParse)
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (e *exprEval) parseUnary() (float64, error) {
	switch e.peek() {
	case "-":
		e.pos++
		v, err := e.parseUnary()
		return -v, err
	case "+":
		e.pos++
		return e.parseUnary()
	}
	return e.parseAtom()
}

func (e *exprEval) parseAtom() (float64, error) {
	tok := e.peek()
	if tok == "" {
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrParse)
	}
	e.pos++

	switch {
	case tok == "(":
		v, err := e.parseSum()
		if err != nil {
			return 0, err
		}
		if e.peek() != ")" {
			return 0, fmt.Errorf("%w: missing ')' in expression", ErrParse)
		}
		e.pos++
		return v, nil

	case tok == "pi" || tok == "tau":
		if tok == "tau" {
			return 2 * math.Pi, nil
		}
		return math.Pi, nil

	case unicode.IsDigit(rune(tok[0])) || tok[0] == '.':
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid number %q", ErrParse, tok)
		}
		return v, nil

	default:
		v, ok := e.vars[tok]
		if !ok {
			return 0, fmt.Errorf("%w: unknown identifier %q in expression", ErrParse, tok)
		}
		return v, nil
	}
}
