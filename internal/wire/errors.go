package wire

import "errors"

// Ошибки кодирования.
var (
	// ErrShortEnvelope — длина буфера не равна EnvelopeSize.
	ErrShortEnvelope = errors.New("envelope must be exactly 1024 bytes")

	// ErrPayloadTooLarge — size больше ёмкости payload.
	ErrPayloadTooLarge = errors.New("payload size exceeds capacity")

	// ErrUnknownType — неизвестный тип сообщения.
	ErrUnknownType = errors.New("unknown message type")

	// ErrWrongType — сообщение другого типа.
	ErrWrongType = errors.New("wrong message type")
)
