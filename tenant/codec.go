package tenant

import (
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/tenantcache/codec"
)

// Codec names accepted by NewCodec.
const (
	CodecJSON     = "json"
	CodecCBOR     = "cbor"
	CodecMsgpack  = "msgpack"
	CodecProtobuf = "protobuf"
)

// NewCodec returns the payload codec for cached tenants. maxPayload > 0
// bounds both encoded and decoded sizes.
func NewCodec(name string, maxPayload int) (codec.Codec[Tenant], error) {
	var inner codec.Codec[Tenant]
	switch name {
	case "", CodecJSON:
		inner = codec.JSON[Tenant]{}
	case CodecCBOR:
		c, err := codec.NewCBOR[Tenant](true)
		if err != nil {
			return nil, err
		}
		inner = c
	case CodecMsgpack:
		inner = codec.Msgpack[Tenant]{}
	case CodecProtobuf:
		c, err := newStructCodec()
		if err != nil {
			return nil, err
		}
		inner = c
	default:
		return nil, fmt.Errorf("tenant: unknown codec %q", name)
	}
	if maxPayload <= 0 {
		return inner, nil
	}
	return codec.Limit[Tenant]{Inner: inner, MaxDecode: maxPayload, MaxEncode: maxPayload}, nil
}

// newStructCodec stores a Tenant as a google.protobuf.Struct so no generated
// types are needed. Numbers inside Settings come back as float64.
func newStructCodec() (codec.Codec[Tenant], error) {
	pb, err := codec.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })
	if err != nil {
		return nil, err
	}
	return codec.Func[Tenant]{
		EncodeFunc: func(t Tenant) ([]byte, error) {
			s, err := toStruct(t)
			if err != nil {
				return nil, err
			}
			return pb.Encode(s)
		},
		DecodeFunc: func(b []byte) (Tenant, error) {
			s, err := pb.Decode(b)
			if err != nil {
				return Tenant{}, err
			}
			return fromStruct(s)
		},
	}, nil
}

func toStruct(t Tenant) (*structpb.Struct, error) {
	m := map[string]any{
		"id":        t.ID.String(),
		"name":      t.Name,
		"slug":      t.Slug,
		"domain":    nil,
		"settings":  nil,
		"is_active": t.IsActive,
	}
	if t.Domain != nil {
		m["domain"] = *t.Domain
	}
	if t.Settings != nil {
		m["settings"] = t.Settings
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct) (Tenant, error) {
	f := s.GetFields()
	id, err := uuid.Parse(f["id"].GetStringValue())
	if err != nil {
		return Tenant{}, fmt.Errorf("tenant: protobuf payload id: %w", err)
	}
	t := Tenant{
		ID:       id,
		Name:     f["name"].GetStringValue(),
		Slug:     f["slug"].GetStringValue(),
		IsActive: f["is_active"].GetBoolValue(),
	}
	if d, ok := f["domain"].GetKind().(*structpb.Value_StringValue); ok {
		t.Domain = &d.StringValue
	}
	if st := f["settings"].GetStructValue(); st != nil {
		t.Settings = st.AsMap()
	}
	return t, nil
}
