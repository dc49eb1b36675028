// Package sim — встроенный симулятор квантовых схем.
//
// Поддерживает подмножество QASM3, достаточное для типовых схем:
// объявления qubit/bit регистров, стандартные гейты (h, x, y, z, s,
// sdg, t, tdg, cx), примитив U(θ, φ, λ), модификатор ctrl @,
// пользовательские определения gate (раскрываются как макросы до U и
// controlled-U) и финальные измерения.
//
// Выполнение — statevector: вектор из 2^n комплексных амплитуд,
// измерения сэмплируются в конце. Результат — гистограмма битовых
// строк, сумма значений равна числу shots.
//
// Пакет ничего не знает об инфраструктуре Quanta: это «внешний»
// исполнитель, который activity-слой оборачивает таймаутом и
// трансляцией ошибок.
package sim
