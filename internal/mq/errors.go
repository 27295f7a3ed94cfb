package mq

import "errors"

// ErrNotConnected — нет открытого AMQP канала (идёт переподключение).
var ErrNotConnected = errors.New("amqp channel not available")
