// Package cli реализует инструмент командной строки Quanta.
//
// CLI — клиентская утилита для взаимодействия с Quanta API.
// Работает через HTTP и не импортирует внутренние пакеты сервиса.
//
// Команды организованы по ресурсам:
//   - task: submit, show, list, delete, wait
//   - health: проверка состояния сервиса
//
// Каждая группа создаётся через фабричную функцию (NewTaskCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
//
// Данные выводятся в stdout (таблица или JSON с флагом --json),
// сообщения — в stderr, что позволяет использовать pipe:
//
//	quanta task list --json | jq .
package cli
