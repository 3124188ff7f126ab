package tether

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"reflect"
)

// maxEventSize bounds a single server-sent event line.
const maxEventSize = 1 << 20

// readEvents parses a text/event-stream body and calls fn with the data of
// each event. Comments such as ": heartbeat" and fields other than data are
// skipped. Parsing stops when fn returns false.
func readEvents(r io.Reader, fn func(data []byte) bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxEventSize)
	var data bytes.Buffer
	pending := false
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			if pending {
				if !fn(data.Bytes()) {
					return nil
				}
				data.Reset()
				pending = false
			}
			continue
		}
		if line[0] == ':' {
			continue
		}
		field, value, _ := bytes.Cut(line, []byte(":"))
		if string(field) != "data" {
			continue
		}
		if pending {
			data.WriteByte('\n')
		}
		data.Write(bytes.TrimPrefix(value, []byte(" ")))
		pending = true
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if pending {
		fn(data.Bytes())
	}
	return nil
}

// events builds the iter.Seq2[T, error] for an event-stream method. The
// sequence is single use; the body is closed when iteration stops, so a
// sequence that is never ranged over keeps the body and the governor's
// derived context open. An error event or read failure is yielded once and
// ends the sequence.
func (a *adapter) events(ctx context.Context, seq reflect.Type, body io.ReadCloser) reflect.Value {
	elem := seq.In(0).In(0)
	return reflect.MakeFunc(seq, func(in []reflect.Value) []reflect.Value {
		defer body.Close()
		yield := in[0]
		send := func(v reflect.Value, err error) bool {
			if err != nil {
				return yield.Call([]reflect.Value{reflect.Zero(elem), errorValue(err)})[0].Bool()
			}
			return yield.Call([]reflect.Value{v, reflect.Zero(errorType)})[0].Bool()
		}
		err := readEvents(body, func(data []byte) bool {
			v, err := a.decode(elem, data)
			if err != nil {
				send(v, err)
				return false
			}
			return send(v, nil)
		})
		if err != nil {
			send(reflect.Value{}, readError(ctx, err))
		}
		return nil
	})
}

func errorValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}
