// Package supervisor управляет жизненным циклом сервиса.
//
// Supervisor владеет контекстами выполнения (мультиплексор, цикл опроса,
// очистка, зеркало) и долговременным хранилищем. Фатальные ошибки
// инициализации (сокет, БД) обрабатываются вызывающим до New.
package supervisor
