package tether

import (
	"context"
	"iter"
	"net/http"
	"reflect"
	"strings"
	"testing"
)

func TestReadEvents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", "data: {\"id\":1}\n\n", []string{`{"id":1}`}},
		{"id and heartbeat are skipped", "id: 7\ndata: a\n\n: heartbeat\n\ndata: b\n\n", []string{"a", "b"}},
		{"multi-line data", "data: first\ndata: second\n\n", []string{"first\nsecond"}},
		{"no space after colon", "data:x\n\n", []string{"x"}},
		{"event and retry fields ignored", "event: update\nretry: 10\ndata: y\n\n", []string{"y"}},
		{"trailing event without blank line", "data: last", []string{"last"}},
		{"crlf", "data: z\r\n\r\n", []string{"z"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := readEvents(strings.NewReader(tt.input), func(data []byte) bool {
				got = append(got, string(data))
				return true
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestReadEvents_Stop(t *testing.T) {
	n := 0
	err := readEvents(strings.NewReader("data: 1\n\ndata: 2\n\ndata: 3\n\n"), func([]byte) bool {
		n++
		return n < 2
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected parsing to stop after 2 events, got %d", n)
	}
}

func TestAdapter_EventsBodyOwnedBySequence(t *testing.T) {
	a := &adapter{codec: JSON, handler: DefaultResponseHandler}
	body := &trackingBody{Reader: strings.NewReader("data: {\"id\":1}\n\ndata: {\"id\":2}\n\n")}
	resp := &http.Response{StatusCode: http.StatusOK, Body: body}
	call := &CallDescriptor{Shape: ShapeEvents, Value: reflect.TypeFor[*Post](), Result: reflect.TypeFor[iter.Seq2[*Post, error]]()}

	v, err := a.adapt(context.Background(), call, resp)
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if body.closed {
		t.Fatal("body closed before the sequence was ranged over")
	}

	seq := v.Interface().(iter.Seq2[*Post, error])
	for post, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if post.ID != 1 {
			t.Errorf("expected first post, got %+v", post)
		}
		break
	}
	if !body.closed {
		t.Error("expected the body to be closed when iteration stopped")
	}
}
