package protobuf

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/broady/tether"
	"github.com/broady/tether/testutil"
)

func TestCodecs_RoundTrip(t *testing.T) {
	for name, codec := range map[string]tether.Codec{"binary": Binary, "json": JSON} {
		t.Run(name, func(t *testing.T) {
			data, err := codec.Marshal(wrapperspb.String("hello"))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got wrapperspb.StringValue
			if err := codec.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.GetValue() != "hello" {
				t.Errorf("expected hello, got %q", got.GetValue())
			}
		})
	}
}

func TestCodecs_RejectNonMessages(t *testing.T) {
	if _, err := Binary.Marshal(struct{}{}); err == nil || !strings.Contains(err.Error(), "not a proto.Message") {
		t.Errorf("expected error for a non-message, got %v", err)
	}
	var s string
	if err := JSON.Unmarshal([]byte(`"x"`), &s); err == nil {
		t.Error("expected error for a non-message target")
	}
}

type echoAPI struct {
	Echo func(ctx context.Context, msg *wrapperspb.StringValue) (*wrapperspb.StringValue, error) `http:"POST /echo" params:"body"`
}

func TestCodec_WithClient(t *testing.T) {
	srv := testutil.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var in wrapperspb.StringValue
		if err := proto.Unmarshal(data, &in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, _ := proto.Marshal(wrapperspb.String(strings.ToUpper(in.GetValue())))
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(out)
	}))

	api, err := tether.New[echoAPI](tether.NewClient(srv.URL).WithCodec(Binary).WithSkipValidation())
	if err != nil {
		t.Fatal(err)
	}
	got, err := api.Echo(context.Background(), wrapperspb.String("quiet"))
	if err != nil {
		t.Fatalf("Echo: %v", err)
	}
	if got.GetValue() != "QUIET" {
		t.Errorf("expected QUIET, got %q", got.GetValue())
	}
	testutil.AssertHeader(t, srv.Last(t), "Content-Type", "application/x-protobuf")
}
