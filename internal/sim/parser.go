package sim

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Program — распарсенная схема, сведённая к примитивам симулятора:
// (controlled-)U и финальным измерениям.
type Program struct {
	// NumQubits — суммарный размер qubit-регистров.
	NumQubits int

	// NumClbits — суммарный размер bit-регистров.
	NumClbits int

	// Ops — применения гейтов в порядке следования.
	Ops []Instruction

	// Measures — финальные измерения qubit → clbit.
	Measures []Measure
}

// Instruction — применение U(θ, φ, λ) с опциональными контролами.
// Любой гейт поддерживаемого подмножества раскрывается в эту форму.
type Instruction struct {
	Theta, Phi, Lambda float64
	Controls           []int
	Target             int
}

// Measure — измерение кубита в классический бит.
type Measure struct {
	Qubit int
	Clbit int
}

// maxExpandDepth ограничивает рекурсию раскрытия макросов
// (защита от циклических определений gate).
const maxExpandDepth = 16

// builtinGates — стандартные однокубитные гейты как углы U(θ, φ, λ).
// Совпадают с определениями из стандартной QASM3-прелюдии.
var builtinGates = map[string][3]float64{
	"id":  {0, 0, 0},
	"x":   {math.Pi, 0, math.Pi},
	"y":   {math.Pi, math.Pi / 2, math.Pi / 2},
	"z":   {0, 0, math.Pi},
	"h":   {math.Pi / 2, 0, math.Pi},
	"s":   {0, 0, math.Pi / 2},
	"sdg": {0, 0, -math.Pi / 2},
	"t":   {0, 0, math.Pi / 4},
	"tdg": {0, 0, -math.Pi / 4},
}

type register struct {
	offset int
	size   int
}

// macroStmt — одно применение внутри тела gate-определения.
// Если ctrls=k, первые k аргументов — контролы.
type macroStmt struct {
	name   string
	angles []string
	ctrls  int
	args   []string
}

type macroDef struct {
	params []string
	qargs  []string
	body   []macroStmt
}

type parser struct {
	qregs  map[string]register
	cregs  map[string]register
	macros map[string]macroDef
	prog   *Program

	// measured запрещает гейты после первого измерения:
	// симулятор сэмплирует только финальные измерения.
	measured bool
}

// Parse разбирает текст схемы в Program.
func Parse(source string) (*Program, error) {
	stmts, err := splitStatements(source)
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, ErrEmptyCircuit
	}

	p := &parser{
		qregs:  make(map[string]register),
		cregs:  make(map[string]register),
		macros: make(map[string]macroDef),
		prog:   &Program{},
	}

	for i, stmt := range stmts {
		if err := p.parseStatement(stmt, i == 0); err != nil {
			return nil, err
		}
	}

	if p.prog.NumQubits == 0 {
		return nil, fmt.Errorf("%w: no qubit declarations", ErrParse)
	}
	if len(p.prog.Measures) == 0 {
		return nil, ErrNoMeasurement
	}
	return p.prog, nil
}

// splitStatements режет исходник на операторы: по ';' на верхнем
// уровне и по закрывающей '}' для gate-блоков. Комментарии '//'
// вырезаются.
func splitStatements(source string) ([]string, error) {
	var stmts []string
	var buf strings.Builder
	depth := 0

	lines := strings.Split(source, "\n")
	for _, line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		for _, r := range line {
			switch r {
			case '{':
				depth++
				buf.WriteRune(r)
			case '}':
				depth--
				if depth < 0 {
					return nil, fmt.Errorf("%w: unbalanced '}'", ErrParse)
				}
				buf.WriteRune(r)
				if depth == 0 {
					stmts = appendStatement(stmts, buf.String())
					buf.Reset()
				}
			case ';':
				if depth == 0 {
					stmts = appendStatement(stmts, buf.String())
					buf.Reset()
				} else {
					buf.WriteRune(r)
				}
			default:
				buf.WriteRune(r)
			}
		}
		buf.WriteRune(' ')
	}

	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced '{'", ErrParse)
	}
	if tail := strings.TrimSpace(buf.String()); tail != "" {
		return nil, fmt.Errorf("%w: missing ';' after %q", ErrParse, truncate(tail))
	}
	return stmts, nil
}

func appendStatement(stmts []string, raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return stmts
	}
	return append(stmts, s)
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

func (p *parser) parseStatement(stmt string, first bool) error {
	switch {
	case strings.HasPrefix(stmt, "OPENQASM"):
		if !first {
			return fmt.Errorf("%w: OPENQASM header must be the first statement", ErrParse)
		}
		version := strings.TrimSpace(strings.TrimPrefix(stmt, "OPENQASM"))
		if !strings.HasPrefix(version, "3") {
			return fmt.Errorf("%w: OPENQASM version %q", ErrUnsupported, version)
		}
		return nil

	case hasKeyword(stmt, "include"):
		return fmt.Errorf("%w: include directives", ErrUnsupported)

	case hasKeyword(stmt, "qubit"):
		return p.parseRegister(stmt, "qubit")

	case hasKeyword(stmt, "bit"):
		return p.parseRegister(stmt, "bit")

	case hasKeyword(stmt, "gate"):
		return p.parseGateDef(stmt)

	case hasKeyword(stmt, "barrier"):
		// barrier не влияет на statevector-симуляцию
		return nil

	case hasKeyword(stmt, "measure"):
		return p.parseMeasureArrow(stmt)

	case strings.Contains(stmt, "= measure "), strings.Contains(stmt, "=measure "):
		return p.parseMeasureAssign(stmt)

	case hasKeyword(stmt, "reset"),
		hasKeyword(stmt, "if"),
		hasKeyword(stmt, "for"),
		hasKeyword(stmt, "while"),
		hasKeyword(stmt, "def"),
		hasKeyword(stmt, "cal"),
		hasKeyword(stmt, "input"),
		hasKeyword(stmt, "output"):
		return fmt.Errorf("%w: %q", ErrUnsupported, firstWord(stmt))

	default:
		return p.parseApplication(stmt)
	}
}

// hasKeyword проверяет, что оператор начинается с ключевого слова
// (а не с идентификатора гейта с тем же префиксом).
func hasKeyword(stmt, kw string) bool {
	if !strings.HasPrefix(stmt, kw) {
		return false
	}
	rest := stmt[len(kw):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '[' || rest[0] == '('
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}

// parseRegister разбирает "qubit[4] q" / "qubit q" / "bit[2] c" / "bit c".
func (p *parser) parseRegister(stmt, kind string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(stmt, kind))
	size := 1

	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return fmt.Errorf("%w: %q", ErrParse, truncate(stmt))
		}
		n, err := strconv.Atoi(strings.TrimSpace(rest[1:end]))
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: invalid register size in %q", ErrParse, truncate(stmt))
		}
		size = n
		rest = strings.TrimSpace(rest[end+1:])
	}

	name := rest
	if !isIdentifier(name) {
		return fmt.Errorf("%w: invalid register name %q", ErrParse, name)
	}

	if kind == "qubit" {
		if _, ok := p.qregs[name]; ok {
			return fmt.Errorf("%w: duplicate register %q", ErrParse, name)
		}
		p.qregs[name] = register{offset: p.prog.NumQubits, size: size}
		p.prog.NumQubits += size
	} else {
		if _, ok := p.cregs[name]; ok {
			return fmt.Errorf("%w: duplicate register %q", ErrParse, name)
		}
		p.cregs[name] = register{offset: p.prog.NumClbits, size: size}
		p.prog.NumClbits += size
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// parseGateDef разбирает "gate name(params)? qargs { body }".
func (p *parser) parseGateDef(stmt string) error {
	open := strings.Index(stmt, "{")
	if open < 0 || !strings.HasSuffix(stmt, "}") {
		return fmt.Errorf("%w: malformed gate definition %q", ErrParse, truncate(stmt))
	}

	header := strings.TrimSpace(strings.TrimPrefix(stmt[:open], "gate "))
	body := stmt[open+1 : len(stmt)-1]

	var def macroDef
	name := header
	if paren := strings.Index(header, "("); paren >= 0 {
		close := strings.Index(header, ")")
		if close < paren {
			return fmt.Errorf("%w: malformed gate parameters %q", ErrParse, truncate(stmt))
		}
		for _, param := range splitArgs(header[paren+1 : close]) {
			if !isIdentifier(param) {
				return fmt.Errorf("%w: invalid gate parameter %q", ErrParse, param)
			}
			def.params = append(def.params, param)
		}
		name = strings.TrimSpace(header[:paren])
		header = name + " " + header[close+1:]
	}

	fields := strings.SplitN(header, " ", 2)
	name = strings.TrimSpace(fields[0])
	if !isIdentifier(name) {
		return fmt.Errorf("%w: invalid gate name %q", ErrParse, name)
	}
	if len(fields) < 2 {
		return fmt.Errorf("%w: gate %q has no qubit arguments", ErrParse, name)
	}
	for _, arg := range splitArgs(fields[1]) {
		if !isIdentifier(arg) {
			return fmt.Errorf("%w: invalid gate argument %q in %q", ErrParse, arg, name)
		}
		def.qargs = append(def.qargs, arg)
	}

	for _, raw := range strings.Split(body, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		ms, err := parseMacroStmt(raw)
		if err != nil {
			return fmt.Errorf("in gate %q: %w", name, err)
		}
		def.body = append(def.body, *ms)
	}

	// Переопределение (в том числе builtin-гейта) разрешено:
	// стандартная прелюдия определяет h, x, cx поверх U и ctrl @.
	p.macros[name] = def
	return nil
}

// parseMacroStmt разбирает одно применение внутри тела gate:
// "U(pi/2, 0, pi) a" или "ctrl(1) @ x c, t".
func parseMacroStmt(raw string) (*macroStmt, error) {
	ms := &macroStmt{}

	rest, ctrls, err := stripCtrlModifiers(raw)
	if err != nil {
		return nil, err
	}
	ms.ctrls = ctrls

	name, angles, operands, err := splitApplication(rest)
	if err != nil {
		return nil, err
	}
	ms.name = name
	ms.angles = angles
	ms.args = operands
	return ms, nil
}

// stripCtrlModifiers снимает префиксы "ctrl @" / "ctrl(n) @",
// возвращая остаток и суммарное количество контролов.
func stripCtrlModifiers(s string) (string, int, error) {
	ctrls := 0
	for {
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "ctrl") {
			if strings.HasPrefix(s, "negctrl") || strings.HasPrefix(s, "inv") || strings.HasPrefix(s, "pow") {
				return "", 0, fmt.Errorf("%w: gate modifier %q", ErrUnsupported, firstWord(s))
			}
			return s, ctrls, nil
		}

		rest := strings.TrimSpace(strings.TrimPrefix(s, "ctrl"))
		n := 1
		if strings.HasPrefix(rest, "(") {
			close := strings.Index(rest, ")")
			if close < 0 {
				return "", 0, fmt.Errorf("%w: malformed ctrl modifier", ErrParse)
			}
			v, err := strconv.Atoi(strings.TrimSpace(rest[1:close]))
			if err != nil || v <= 0 {
				return "", 0, fmt.Errorf("%w: malformed ctrl count", ErrParse)
			}
			n = v
			rest = strings.TrimSpace(rest[close+1:])
		}
		if !strings.HasPrefix(rest, "@") {
			return "", 0, fmt.Errorf("%w: ctrl modifier without '@'", ErrParse)
		}
		ctrls += n
		s = strings.TrimPrefix(rest, "@")
	}
}

// splitApplication разбирает "name(angle, ...)? operand, operand".
func splitApplication(s string) (name string, angles []string, operands []string, err error) {
	s = strings.TrimSpace(s)

	if paren := strings.Index(s, "("); paren >= 0 && (strings.Index(s, " ") < 0 || paren < strings.Index(s, " ")) {
		close := matchParen(s, paren)
		if close < 0 {
			return "", nil, nil, fmt.Errorf("%w: unbalanced '(' in %q", ErrParse, truncate(s))
		}
		name = strings.TrimSpace(s[:paren])
		angles = splitArgs(s[paren+1 : close])
		s = s[close+1:]
	} else {
		fields := strings.SplitN(s, " ", 2)
		name = fields[0]
		if len(fields) < 2 {
			return "", nil, nil, fmt.Errorf("%w: gate %q without operands", ErrParse, name)
		}
		s = fields[1]
	}

	if !isIdentifier(name) && name != "U" {
		return "", nil, nil, fmt.Errorf("%w: invalid gate name %q", ErrParse, name)
	}

	operands = splitArgs(s)
	if len(operands) == 0 {
		return "", nil, nil, fmt.Errorf("%w: gate %q without operands", ErrParse, name)
	}
	return name, angles, operands, nil
}

// matchParen возвращает индекс скобки, парной s[open].
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitArgs режет список аргументов по запятым верхнего уровня.
func splitArgs(s string) []string {
	var args []string
	depth := 0
	var buf strings.Builder
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
			buf.WriteRune(r)
		case ')', ']':
			depth--
			buf.WriteRune(r)
		case ',':
			if depth == 0 {
				args = appendStatement(args, buf.String())
				buf.Reset()
			} else {
				buf.WriteRune(r)
			}
		default:
			buf.WriteRune(r)
		}
	}
	return appendStatement(args, buf.String())
}

// parseApplication разбирает применение гейта на верхнем уровне.
func (p *parser) parseApplication(stmt string) error {
	if p.measured {
		return fmt.Errorf("%w: gate after measurement", ErrUnsupported)
	}

	rest, ctrls, err := stripCtrlModifiers(stmt)
	if err != nil {
		return err
	}

	name, angleExprs, operandExprs, err := splitApplication(rest)
	if err != nil {
		return err
	}

	angles := make([]float64, len(angleExprs))
	for i, expr := range angleExprs {
		v, err := evalExpr(expr, nil)
		if err != nil {
			return err
		}
		angles[i] = v
	}

	// Broadcast: однокубитный гейт без контролов над целым регистром.
	if ctrls == 0 && len(operandExprs) == 1 {
		if reg, ok := p.qregs[strings.TrimSpace(operandExprs[0])]; ok && reg.size > 1 {
			if !p.isSingleQubitGate(name) {
				return fmt.Errorf("%w: gate %q over register %q", ErrUnsupported, name, operandExprs[0])
			}
			for i := 0; i < reg.size; i++ {
				if err := p.expand(name, angles, nil, []int{reg.offset + i}, 0); err != nil {
					return err
				}
			}
			return nil
		}
	}

	qubits := make([]int, len(operandExprs))
	for i, expr := range operandExprs {
		q, err := p.resolveQubit(expr)
		if err != nil {
			return err
		}
		qubits[i] = q
	}

	return p.expand(name, angles, qubits[:ctrls], qubits[ctrls:], 0)
}

func (p *parser) isSingleQubitGate(name string) bool {
	if name == "U" {
		return true
	}
	if _, ok := builtinGates[name]; ok {
		// может быть переопределён макросом с другой арностью
		if def, shadowed := p.macros[name]; shadowed {
			return len(def.qargs) == 1
		}
		return true
	}
	if def, ok := p.macros[name]; ok {
		return len(def.qargs) == 1
	}
	return false
}

// resolveQubit резолвит "q[2]" или одиночный "q" (регистр размера 1)
// в глобальный индекс кубита.
func (p *parser) resolveQubit(expr string) (int, error) {
	name, index, hasIndex, err := parseOperand(expr)
	if err != nil {
		return 0, err
	}

	reg, ok := p.qregs[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown qubit register %q", ErrParse, name)
	}
	if !hasIndex {
		if reg.size != 1 {
			return 0, fmt.Errorf("%w: register %q used without index", ErrParse, name)
		}
		return reg.offset, nil
	}
	if index < 0 || index >= reg.size {
		return 0, fmt.Errorf("%w: index %d out of range for %q", ErrParse, index, name)
	}
	return reg.offset + index, nil
}

func parseOperand(expr string) (name string, index int, hasIndex bool, err error) {
	expr = strings.TrimSpace(expr)
	bracket := strings.Index(expr, "[")
	if bracket < 0 {
		if !isIdentifier(expr) {
			return "", 0, false, fmt.Errorf("%w: invalid operand %q", ErrParse, expr)
		}
		return expr, 0, false, nil
	}

	if !strings.HasSuffix(expr, "]") {
		return "", 0, false, fmt.Errorf("%w: invalid operand %q", ErrParse, expr)
	}
	name = strings.TrimSpace(expr[:bracket])
	idx, convErr := strconv.Atoi(strings.TrimSpace(expr[bracket+1 : len(expr)-1]))
	if !isIdentifier(name) || convErr != nil {
		return "", 0, false, fmt.Errorf("%w: invalid operand %q", ErrParse, expr)
	}
	return name, idx, true, nil
}

// expand раскрывает применение гейта до Instruction'ов.
// controls — уже накопленные контролы, operands — собственные кубиты гейта.
func (p *parser) expand(name string, angles []float64, controls, operands []int, depth int) error {
	if depth > maxExpandDepth {
		return fmt.Errorf("%w: gate definitions nested too deeply (cycle?)", ErrParse)
	}

	// Пользовательское определение имеет приоритет над builtin:
	// прелюдия переопределяет стандартные гейты через U.
	if def, ok := p.macros[name]; ok {
		return p.expandMacro(def, name, angles, controls, operands, depth)
	}

	switch {
	case name == "U":
		if len(angles) != 3 {
			return fmt.Errorf("%w: U expects 3 parameters, got %d", ErrParse, len(angles))
		}
		if len(operands) != 1 {
			return fmt.Errorf("%w: U expects 1 qubit, got %d", ErrParse, len(operands))
		}
		return p.emit(angles[0], angles[1], angles[2], controls, operands[0])

	case name == "cx" || name == "CX":
		if len(angles) != 0 {
			return fmt.Errorf("%w: cx takes no parameters", ErrParse)
		}
		if len(operands) != 2 {
			return fmt.Errorf("%w: cx expects 2 qubits, got %d", ErrParse, len(operands))
		}
		g := builtinGates["x"]
		return p.emit(g[0], g[1], g[2], append(append([]int{}, controls...), operands[0]), operands[1])

	default:
		g, ok := builtinGates[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownGate, name)
		}
		if len(angles) != 0 {
			return fmt.Errorf("%w: gate %q takes no parameters", ErrParse, name)
		}
		if len(operands) != 1 {
			return fmt.Errorf("%w: gate %q expects 1 qubit, got %d", ErrParse, name, len(operands))
		}
		return p.emit(g[0], g[1], g[2], controls, operands[0])
	}
}

func (p *parser) expandMacro(def macroDef, name string, angles []float64, controls, operands []int, depth int) error {
	if len(angles) != len(def.params) {
		return fmt.Errorf("%w: gate %q expects %d parameters, got %d", ErrParse, name, len(def.params), len(angles))
	}
	if len(operands) != len(def.qargs) {
		return fmt.Errorf("%w: gate %q expects %d qubits, got %d", ErrParse, name, len(def.qargs), len(operands))
	}

	vars := make(map[string]float64, len(def.params))
	for i, param := range def.params {
		vars[param] = angles[i]
	}
	binding := make(map[string]int, len(def.qargs))
	for i, arg := range def.qargs {
		binding[arg] = operands[i]
	}

	for _, stmt := range def.body {
		stmtAngles := make([]float64, len(stmt.angles))
		for i, expr := range stmt.angles {
			v, err := evalExpr(expr, vars)
			if err != nil {
				return fmt.Errorf("in gate %q: %w", name, err)
			}
			stmtAngles[i] = v
		}

		qubits := make([]int, len(stmt.args))
		for i, arg := range stmt.args {
			q, ok := binding[arg]
			if !ok {
				return fmt.Errorf("%w: unknown qubit %q in gate %q", ErrParse, arg, name)
			}
			qubits[i] = q
		}

		stmtControls := append(append([]int{}, controls...), qubits[:stmt.ctrls]...)
		if err := p.expand(stmt.name, stmtAngles, stmtControls, qubits[stmt.ctrls:], depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) emit(theta, phi, lambda float64, controls []int, target int) error {
	// один физический кубит не может быть одновременно контролом
	// и целью (или контролом дважды)
	seen := map[int]bool{target: true}
	for _, c := range controls {
		if seen[c] {
			return fmt.Errorf("%w: duplicate qubit %d in gate application", ErrParse, c)
		}
		seen[c] = true
	}

	p.prog.Ops = append(p.prog.Ops, Instruction{
		Theta:    theta,
		Phi:      phi,
		Lambda:   lambda,
		Controls: controls,
		Target:   target,
	})
	return nil
}

// parseMeasureArrow разбирает "measure q -> c" (включая индексные формы).
func (p *parser) parseMeasureArrow(stmt string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(stmt, "measure "))
	parts := strings.SplitN(rest, "->", 2)
	if len(parts) != 2 {
		return fmt.Errorf("%w: malformed measure %q", ErrParse, truncate(stmt))
	}
	return p.addMeasure(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
}

// parseMeasureAssign разбирает "c = measure q" (включая индексные формы).
func (p *parser) parseMeasureAssign(stmt string) error {
	parts := strings.SplitN(stmt, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("%w: malformed measure %q", ErrParse, truncate(stmt))
	}
	target := strings.TrimSpace(parts[0])
	source := strings.TrimSpace(parts[1])
	source = strings.TrimSpace(strings.TrimPrefix(source, "measure"))
	return p.addMeasure(source, target)
}

// addMeasure регистрирует измерение qubitExpr → clbitExpr.
// Полные регистры измеряются поэлементно (размеры должны совпадать).
func (p *parser) addMeasure(qubitExpr, clbitExpr string) error {
	p.measured = true

	qname, qindex, qIndexed, err := parseOperand(qubitExpr)
	if err != nil {
		return err
	}
	qreg, ok := p.qregs[qname]
	if !ok {
		return fmt.Errorf("%w: unknown qubit register %q", ErrParse, qname)
	}

	cname, cindex, cIndexed, err := parseOperand(clbitExpr)
	if err != nil {
		return err
	}
	creg, ok := p.cregs[cname]
	if !ok {
		return fmt.Errorf("%w: unknown bit register %q", ErrParse, cname)
	}

	if !qIndexed && !cIndexed {
		if qreg.size != creg.size {
			return fmt.Errorf("%w: register size mismatch in measure (%d vs %d)", ErrParse, qreg.size, creg.size)
		}
		for i := 0; i < qreg.size; i++ {
			p.prog.Measures = append(p.prog.Measures, Measure{
				Qubit: qreg.offset + i,
				Clbit: creg.offset + i,
			})
		}
		return nil
	}

	if !qIndexed {
		if qreg.size != 1 {
			return fmt.Errorf("%w: register %q used without index", ErrParse, qname)
		}
		qindex = 0
	}
	if !cIndexed {
		if creg.size != 1 {
			return fmt.Errorf("%w: register %q used without index", ErrParse, cname)
		}
		cindex = 0
	}
	if qindex < 0 || qindex >= qreg.size {
		return fmt.Errorf("%w: index %d out of range for %q", ErrParse, qindex, qname)
	}
	if cindex < 0 || cindex >= creg.size {
		return fmt.Errorf("%w: index %d out of range for %q", ErrParse, cindex, cname)
	}

	p.prog.Measures = append(p.prog.Measures, Measure{
		Qubit: qreg.offset + qindex,
		Clbit: creg.offset + cindex,
	})
	return nil
}
