// Package cli реализует инструмент командной строки SensorHub.
//
// # Обзор
//
// CLI подключается к сервису тремя путями:
//   - через сокет зрителей (тот же wire-формат, что у любого зрителя)
//   - напрямую к PostgreSQL для чтения истории
//   - к RabbitMQ для подписки на зеркало снапшотов
//
// # Ключевые компоненты
//
// ## Client
//
// Клиент зрителя. Отправляет SensorList, Control и Status и ждёт ответ
// нужного типа, пропуская рассылку SensorData между ответами.
//
//	client, err := cli.Dial("unix", "/tmp/sensor_system.sock", 2*time.Second)
//	records, err := client.SensorList()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: sensorhub sensor list --json | jq .
//
// ## Commands
//
//   - sensor: list, enable, disable, rename
//   - status
//   - watch
//   - history: recent, stats
//   - mirror
//
// Каждая группа создаётся через фабричную функцию (NewSensorCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
