// Package repo — долговременное хранилище телеметрии в PostgreSQL (pgx).
//
// Две логические таблицы:
//   - sensors  — каталог датчиков (адрес уникален, имя, время регистрации)
//   - readings — временной ряд показаний со ссылкой на датчик по адресу
//
// ReadingRepo реализует границу persistence для цикла опроса (Persist)
// и для очистки по сроку хранения (PruneOlderThan). Ошибки этих вызовов
// вызывающая сторона только логирует.
package repo
