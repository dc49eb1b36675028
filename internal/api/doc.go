// Package api — HTTP gateway: приём задач, статусы, отмена/удаление.
//
// Gateway ничего не исполняет сам: он записывает задачу в Task Store
// и публикует событие в очередь; всё остальное делает пул воркеров.
package api
