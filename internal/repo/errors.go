package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict — условное обновление не прошло precondition-проверку:
	// текущий статус записи не входит в ожидаемые. Для вызывающего это
	// benign race (например, отставший инстанс пытается повторно
	// применить терминальный переход) — логируется и игнорируется,
	// пользователю не пробрасывается.
	ErrConflict = errors.New("status precondition failed")

	// ErrLeaseHeld — lease на workflow-инстанс удерживается другим
	// живым воркером.
	ErrLeaseHeld = errors.New("lease held by another worker")
)
