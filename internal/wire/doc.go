// Package wire реализует протокол зрителей: конверт фиксированного размера.
//
// Конверт (1024 байта, little endian):
//   - type    — 4 байта: 1=SensorData, 2=SensorList, 3=Control, 4=Status
//   - size    — 4 байта: реально занятая длина payload
//   - payload — 1016 байт
//
// SensorData несёт упакованный массив 48-байтных записей датчиков
// (до MaxRecords штук), Status и Control — NUL-терминированную строку.
// Всё, что не помещается в payload, молча обрезается при кодировании.
package wire
