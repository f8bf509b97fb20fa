// Package api provides the ConditionHost gRPC service through which plugins
// publish data models and fire events.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/solatis/lumen/internal/core/auth"
	"github.com/solatis/lumen/internal/engine"
	"github.com/solatis/lumen/internal/types"
)

// MaxProperties bounds the top-level properties of one published model.
const MaxProperties = 1024

// Host is the engine surface the service drives.
// Implemented by *engine.Engine.
type Host interface {
	PublishDataModel(id types.DataModelID, values map[string]any, events []string) error
	RemoveDataModel(id types.DataModelID) error
	TriggerEvent(id types.DataModelID, name string, args map[string]any) (time.Time, error)
	States() []engine.ElementState
	Describe() engine.Catalog
}

// ConditionHostService implements ConditionHostServer.
// Thin orchestration layer: the caller's extension comes from auth, the
// work happens in the engine.
type ConditionHostService struct {
	host   Host
	logger *slog.Logger
}

// NewConditionHostService creates service instance with dependencies.
func NewConditionHostService(host Host, logger *slog.Logger) (*ConditionHostService, error) {
	if host == nil {
		return nil, fmt.Errorf("host cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ConditionHostService{host: host, logger: logger}, nil
}

// modelID builds the data model id from the authenticated extension and the
// request's "key" field.
func modelID(ctx context.Context, req *structpb.Struct) (types.DataModelID, error) {
	ext := auth.ExtensionIDFromContext(ctx)
	if ext == "" {
		return types.DataModelID{}, status.Error(codes.Internal, "missing extension_id in context")
	}
	key := req.GetFields()["key"].GetStringValue()
	if key == "" {
		return types.DataModelID{}, invalidArgument("key is required")
	}
	return types.DataModelID{ExtensionID: ext, Key: key}, nil
}

// PublishDataModel creates or updates a data model owned by the caller.
func (s *ConditionHostService) PublishDataModel(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	id, err := modelID(ctx, req)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	data := fields["data"].GetStructValue().AsMap()
	if len(data) > MaxProperties {
		return nil, invalidArgument(fmt.Sprintf("data model exceeds maximum of %d properties", MaxProperties))
	}

	var events []string
	for _, v := range fields["events"].GetListValue().GetValues() {
		name := v.GetStringValue()
		if name == "" {
			return nil, invalidArgument("event names must be non-empty strings")
		}
		if _, clash := data[name]; clash {
			return nil, invalidArgument(fmt.Sprintf("event %q collides with a data property", name))
		}
		events = append(events, name)
	}

	if err := s.host.PublishDataModel(id, data, events); err != nil {
		return nil, statusError(err)
	}
	s.logger.DebugContext(ctx, "data model published", "model", id.String(), "properties", len(data), "events", len(events))
	return &emptypb.Empty{}, nil
}

// RemoveDataModel removes a data model owned by the caller.
func (s *ConditionHostService) RemoveDataModel(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	id, err := modelID(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.host.RemoveDataModel(id); err != nil {
		return nil, statusError(err)
	}
	s.logger.InfoContext(ctx, "data model removed", "model", id.String())
	return &emptypb.Empty{}, nil
}

// TriggerEvent fires an event of a data model owned by the caller.
func (s *ConditionHostService) TriggerEvent(ctx context.Context, req *structpb.Struct) (*timestamppb.Timestamp, error) {
	id, err := modelID(ctx, req)
	if err != nil {
		return nil, err
	}
	fields := req.GetFields()
	name := fields["event"].GetStringValue()
	if name == "" {
		return nil, invalidArgument("event is required")
	}

	var args map[string]any
	if st := fields["arguments"].GetStructValue(); st != nil {
		args = st.AsMap()
	}

	at, err := s.host.TriggerEvent(id, name, args)
	if err != nil {
		return nil, statusError(err)
	}
	return timestamppb.New(at), nil
}

// GetElementStates returns {"elements": [...]} with the state of every
// element after the last tick.
func (s *ConditionHostService) GetElementStates(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(map[string]any{"elements": s.host.States()})
}

// Describe returns the catalog of data models, operators and languages.
func (s *ConditionHostService) Describe(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.host.Describe())
}

// toStruct converts a JSON-tagged value into a Struct via its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
