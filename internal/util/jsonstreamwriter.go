package util

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

type JsonStreamWriterItem struct {
	Key  string
	Data []byte
}

// JsonStreamWriter writes one JSON object incrementally, one key per item,
// syncing after every write so an interrupted run leaves a usable prefix.
type JsonStreamWriter[I any] struct {
	Filepath      string
	Input         chan JsonStreamWriterItem
	waiter        sync.WaitGroup
	fh            *os.File
	lock          sync.Mutex
	isInitialized bool
	convert       func(I) (JsonStreamWriterItem, error)
	logger        *slog.Logger
}

func NewJsonStreamWriter[I any](filePath string, convert func(I) (JsonStreamWriterItem, error)) (*JsonStreamWriter[I], error) {
	fh, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}
	stream := &JsonStreamWriter[I]{
		Filepath: filePath,
		Input:    make(chan JsonStreamWriterItem, 10000),
		fh:       fh,
		convert:  convert,
		logger:   slog.Default(),
	}
	if _, err = stream.fh.WriteString("{"); err != nil {
		fh.Close()
		return nil, err
	}
	if err = stream.fh.Sync(); err != nil {
		fh.Close()
		return nil, err
	}

	stream.waiter.Add(1)
	go stream.writer()

	return stream, nil
}

func (stream *JsonStreamWriter[I]) writer() {
	defer stream.waiter.Done()
	for item := range stream.Input {
		if err := stream.WriteItem(item.Key, item.Data); err != nil {
			stream.logger.Error("failed to write item to json stream", "key", item.Key, "error", err)
		}
	}
}

func formatBuffer(key string, data []byte, initialized bool) ([]byte, error) {
	encodedKey, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(encodedKey)+len(data)+3)
	if initialized {
		buf = append(buf, ',')
	}
	buf = append(buf, encodedKey...)
	buf = append(buf, ':', ' ')
	return append(buf, data...), nil
}

func (stream *JsonStreamWriter[I]) WriteItem(key string, data []byte) error {
	stream.lock.Lock()
	defer stream.lock.Unlock()

	buf, err := formatBuffer(key, data, stream.isInitialized)
	if err != nil {
		return err
	}
	if _, err = stream.fh.Write(buf); err != nil {
		return err
	}
	stream.isInitialized = true

	return stream.fh.Sync()
}

func (stream *JsonStreamWriter[I]) WriteObject(obj I) {
	item, err := stream.convert(obj)
	if err != nil {
		stream.logger.Warn("could not write item to json stream because conversion failed", "error", err)
		return
	}
	stream.Input <- item
}

func (stream *JsonStreamWriter[I]) Close() {
	if stream.Input == nil {
		return
	}

	close(stream.Input)
	stream.waiter.Wait()
	stream.Input = nil

	stream.lock.Lock()
	defer stream.lock.Unlock()

	if _, err := stream.fh.WriteString("}"); err != nil {
		stream.logger.Error("failed to write closing bracket", "error", err)
		return
	}
	if err := stream.fh.Sync(); err != nil {
		stream.logger.Error("failed to sync, bracket might not be committed to file", "error", err)
	}
	if err := stream.fh.Close(); err != nil {
		stream.logger.Error("failed to close file handle", "error", err)
	}
}
