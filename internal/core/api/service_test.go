package api

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/lumen/internal/core/auth"
	"github.com/solatis/lumen/internal/engine"
	"github.com/solatis/lumen/internal/profile"
)

const fuelProfile = `{
  "name": "fuel",
  "elements": [{
    "id": "warning", "name": "low fuel",
    "timeline": {"main_ms": 500},
    "condition": {
      "kind": "static",
      "condition": {
        "kind": "predicate", "predicate_type": "static",
        "operator": {"extension_id": "builtin", "type": "less-than"},
        "left_path": {"data_model": {"extension_id": "racing", "key": "car"}, "path": "fuel"},
        "right_value": {"kind": "float", "value": 5.5}
      }
    }
  }]
}`

// asExtension stands in for the auth interceptor.
func asExtension(ext string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if ext != "" {
			ctx = auth.WithExtensionID(ctx, ext)
		}
		return handler(ctx, req)
	}
}

func newTestClient(t *testing.T, ext string) (*ConditionHostClient, *engine.Engine) {
	t.Helper()
	eng, err := engine.New(engine.Options{})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	doc, err := profile.Decode([]byte(fuelProfile), profile.FormatJSON)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if err := eng.LoadProfile(context.Background(), doc); err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}

	svc, err := NewConditionHostService(eng, nil)
	if err != nil {
		t.Fatalf("NewConditionHostService failed: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(asExtension(ext)))
	RegisterConditionHostServer(srv, svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewConditionHostClient(conn), eng
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct failed: %v", err)
	}
	return s
}

func elementMet(t *testing.T, states *structpb.Struct) bool {
	t.Helper()
	elements := states.GetFields()["elements"].GetListValue().GetValues()
	if len(elements) != 1 {
		t.Fatalf("got %d element states, want 1", len(elements))
	}
	return elements[0].GetStructValue().GetFields()["met"].GetBoolValue()
}

func TestConditionHost_PublishDrivesConditions(t *testing.T) {
	ctx := context.Background()
	client, eng := newTestClient(t, "racing")

	publish := func(fuel float64) {
		t.Helper()
		req := mustStruct(t, map[string]any{
			"key":    "car",
			"data":   map[string]any{"fuel": fuel, "speed": 212.5},
			"events": []any{"lap_completed"},
		})
		if _, err := client.PublishDataModel(ctx, req); err != nil {
			t.Fatalf("PublishDataModel failed: %v", err)
		}
		eng.Tick(ctx, 100*time.Millisecond)
	}

	publish(40.5)
	states, err := client.GetElementStates(ctx)
	if err != nil {
		t.Fatalf("GetElementStates failed: %v", err)
	}
	if elementMet(t, states) {
		t.Error("warning met with a full tank")
	}

	publish(3.5)
	states, err = client.GetElementStates(ctx)
	if err != nil {
		t.Fatalf("GetElementStates failed: %v", err)
	}
	if !elementMet(t, states) {
		t.Error("warning not met with fuel below 5.5")
	}

	at, err := client.TriggerEvent(ctx, mustStruct(t, map[string]any{"key": "car", "event": "lap_completed", "arguments": map[string]any{"lap": 3}}))
	if err != nil {
		t.Fatalf("TriggerEvent failed: %v", err)
	}
	if at.AsTime().IsZero() {
		t.Error("TriggerEvent returned zero time")
	}

	catalog, err := client.Describe(ctx)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	var found bool
	for _, m := range catalog.GetFields()["data_models"].GetListValue().GetValues() {
		id := m.GetStructValue().GetFields()["id"].GetStructValue().GetFields()
		if id["extension_id"].GetStringValue() == "racing" && id["key"].GetStringValue() == "car" {
			found = true
		}
	}
	if !found {
		t.Error("Describe did not list racing/car")
	}

	if _, err := client.RemoveDataModel(ctx, mustStruct(t, map[string]any{"key": "car"})); err != nil {
		t.Fatalf("RemoveDataModel failed: %v", err)
	}
	eng.Tick(ctx, 100*time.Millisecond)
	states, _ = client.GetElementStates(ctx)
	if elementMet(t, states) {
		t.Error("warning still met after its model was removed")
	}
}

func TestConditionHost_Errors(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, "racing")

	if _, err := client.PublishDataModel(ctx, mustStruct(t, map[string]any{"key": "car", "data": map[string]any{"fuel": 1}})); err != nil {
		t.Fatalf("PublishDataModel failed: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"publish without key", func() error {
			_, err := client.PublishDataModel(ctx, mustStruct(t, map[string]any{"data": map[string]any{}}))
			return err
		}, codes.InvalidArgument},
		{"event shadows property", func() error {
			_, err := client.PublishDataModel(ctx, mustStruct(t, map[string]any{"key": "car", "data": map[string]any{"fuel": 1}, "events": []any{"fuel"}}))
			return err
		}, codes.InvalidArgument},
		{"trigger without event", func() error {
			_, err := client.TriggerEvent(ctx, mustStruct(t, map[string]any{"key": "car"}))
			return err
		}, codes.InvalidArgument},
		{"trigger unknown event", func() error {
			_, err := client.TriggerEvent(ctx, mustStruct(t, map[string]any{"key": "car", "event": "pit_stop"}))
			return err
		}, codes.NotFound},
		{"trigger unknown model", func() error {
			_, err := client.TriggerEvent(ctx, mustStruct(t, map[string]any{"key": "bike", "event": "lap"}))
			return err
		}, codes.NotFound},
		{"remove unknown model", func() error {
			_, err := client.RemoveDataModel(ctx, mustStruct(t, map[string]any{"key": "bike"}))
			return err
		}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(tt.call()); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConditionHost_BuiltinIsReserved(t *testing.T) {
	client, _ := newTestClient(t, "builtin")
	_, err := client.PublishDataModel(context.Background(), mustStruct(t, map[string]any{"key": "time", "data": map[string]any{}}))
	if status.Code(err) != codes.AlreadyExists {
		t.Errorf("code = %v, want AlreadyExists", status.Code(err))
	}
}

func TestConditionHost_RequiresExtension(t *testing.T) {
	client, _ := newTestClient(t, "")
	_, err := client.PublishDataModel(context.Background(), mustStruct(t, map[string]any{"key": "car"}))
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal", status.Code(err))
	}
}
