// Package viewer реализует мультиплексор соединений зрителей.
//
// Зрители подключаются к локальному сокету (по умолчанию
// unix:/tmp/sensor_system.sock) и получают SensorData-конверт на каждом
// тике опроса. Число одновременных зрителей ограничено ёмкостью таблицы
// слотов; лишние соединения закрываются сразу после accept.
//
// Отказ записи или обрыв соединения освобождает слот немедленно, без
// повторов и без влияния на других зрителей. Порядок доставки по слотам
// не гарантируется.
//
// Зритель может отправлять запросы: SensorList (текущий снапшот),
// Control (enable/disable/rename датчика) и Status (состояние сервера).
package viewer
