package tws

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/ridge/travertine/tzip"
	"go.uber.org/zap"
)

const (
	kindText   byte = 0
	kindBinary byte = 1
)

// codec compresses the messages of one connection. The sender goroutine owns
// tx, the receiver goroutine owns rx and dict.
type codec struct {
	tx   *tzip.Stream
	rx   *tzip.Stream
	dict []byte
}

func newCodec() (*codec, error) {
	tx, err := tzip.NewStream(true)
	if err != nil {
		return nil, fmt.Errorf("failed to set up WebSocket compression: %w", err)
	}
	rx, err := tzip.NewStream(true)
	if err != nil {
		_ = tx.Close()
		return nil, fmt.Errorf("failed to set up WebSocket compression: %w", err)
	}
	return &codec{tx: tx, rx: rx}, nil
}

func (c *codec) encode(msg Message) (int, []byte, error) {
	compressed, err := c.tx.Compress(msg.Data)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to compress WebSocket message: %w", err)
	}
	kind := kindText
	if msg.Binary {
		kind = kindBinary
	}
	frame := make([]byte, 0, len(compressed)+1)
	frame = append(frame, kind)
	frame = append(frame, compressed...)
	return websocket.BinaryMessage, frame, nil
}

func (c *codec) decode(messageType int, frame []byte) (Message, error) {
	if messageType != websocket.BinaryMessage || len(frame) == 0 {
		return Message{}, errors.New("uncompressed message on a compressed WebSocket connection")
	}
	kind := frame[0]
	if kind != kindText && kind != kindBinary {
		return Message{}, fmt.Errorf("unexpected compressed WebSocket message kind %d", kind)
	}
	data, dict, err := c.rx.Decompress(frame[1:], c.dict)
	if err != nil {
		return Message{}, fmt.Errorf("failed to decompress WebSocket message: %w", err)
	}
	c.dict = dict
	return Message{Binary: kind == kindBinary, Data: data}, nil
}

func (c *codec) close(logger *zap.Logger) {
	if err := errors.Join(c.tx.Close(), c.rx.Close()); err != nil {
		logger.Warn("Failed to release WebSocket compression", zap.Error(err))
	}
}
