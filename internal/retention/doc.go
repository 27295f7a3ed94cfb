// Package retention выполняет периодическую очистку показаний.
//
// Sweeper по cron-расписанию (по умолчанию "@every 1m") удаляет из
// хранилища показания старше срока хранения (по умолчанию 7 дней).
// Каталог датчиков не затрагивается.
package retention
