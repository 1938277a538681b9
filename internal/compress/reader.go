package compress

import (
	"fmt"
	"io"
)

// decompressReader — обертка над телом входящего запроса, которая
// прозрачно распаковывает данные выбранным кодеком. Кодек инициализируется
// при первом чтении: поврежденное сжатое тело проявляется ошибкой чтения
// у вызывающего, а не на этапе установки фильтра.
type decompressReader struct {
	body  io.ReadCloser
	codec Codec
	zr    io.ReadCloser
	err   error
}

func newDecompressReader(body io.ReadCloser, codec Codec) *decompressReader {
	return &decompressReader{
		body:  body,
		codec: codec,
	}
}

// Read считывает распакованные данные тела запроса.
func (d *decompressReader) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.zr == nil {
		zr, err := d.codec.NewDecompressor(d.body)
		if err != nil {
			d.err = fmt.Errorf("%w: %v", ErrMalformedBody, err)
			return 0, d.err
		}
		d.zr = zr
	}
	return d.zr.Read(p)
}

// Close закрывает распаковывающий поток и исходное тело запроса.
// Тело закрывается всегда, даже если поток завершился с ошибкой;
// возвращается первая из ошибок.
func (d *decompressReader) Close() error {
	var err error
	if d.zr != nil {
		err = d.zr.Close()
		d.zr = nil
	}
	if cerr := d.body.Close(); err == nil {
		err = cerr
	}
	return err
}
