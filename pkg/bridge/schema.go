package bridge

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// bridgeFile describes plughost/bridge/v1/bridge.proto:
//
//	message Frame   { repeated Channel channels = 1; repeated Event events = 2; }
//	message Channel { repeated float samples = 1; }
//	message Target  { int32 note_id = 1; int32 port_index = 2; int32 channel = 3; int32 key = 4; }
//	message Event {
//	  uint32 time = 1; uint32 space_id = 2; uint32 flags = 3;
//	  oneof body { Note note = 4; NoteExpression note_expression = 5; ParamValue param_value = 6; Midi midi = 7; }
//	}
//	message Note           { uint32 kind = 1; Target target = 2; double velocity = 3; }
//	message NoteExpression { uint32 expression = 1; Target target = 2; double value = 3; }
//	message ParamValue     { uint32 param_id = 1; Target target = 2; double value = 3; }
//	message Midi           { uint32 port_index = 1; bytes data = 2; }
//
// The rest of the service uses well-known types.
var bridgeFile = &descriptorpb.FileDescriptorProto{
	Name:    proto.String("plughost/bridge/v1/bridge.proto"),
	Package: proto.String("plughost.bridge.v1"),
	Syntax:  proto.String("proto3"),
	MessageType: []*descriptorpb.DescriptorProto{
		message("Frame",
			repeated(messageField("channels", 1, "Channel")),
			repeated(messageField("events", 2, "Event")),
		),
		message("Channel",
			repeated(scalar("samples", 1, descriptorpb.FieldDescriptorProto_TYPE_FLOAT)),
		),
		message("Target",
			scalar("note_id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			scalar("port_index", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			scalar("channel", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			scalar("key", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		),
		withOneof(message("Event",
			scalar("time", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			scalar("space_id", 2, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			scalar("flags", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			inOneof(messageField("note", 4, "Note")),
			inOneof(messageField("note_expression", 5, "NoteExpression")),
			inOneof(messageField("param_value", 6, "ParamValue")),
			inOneof(messageField("midi", 7, "Midi")),
		), "body"),
		message("Note",
			scalar("kind", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			messageField("target", 2, "Target"),
			scalar("velocity", 3, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
		),
		message("NoteExpression",
			scalar("expression", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			messageField("target", 2, "Target"),
			scalar("value", 3, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
		),
		message("ParamValue",
			scalar("param_id", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			messageField("target", 2, "Target"),
			scalar("value", 3, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
		),
		message("Midi",
			scalar("port_index", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			scalar("data", 2, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
		),
	},
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(".plughost.bridge.v1." + typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func inOneof(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.OneofIndex = proto.Int32(0)
	return f
}

func withOneof(m *descriptorpb.DescriptorProto, name string) *descriptorpb.DescriptorProto {
	m.OneofDecl = append(m.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(name)})
	return m
}

var frameDescriptor = mustFrameDescriptor()

func mustFrameDescriptor() protoreflect.MessageDescriptor {
	fd, err := protodesc.NewFile(bridgeFile, new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprint("bridge: invalid frame schema: ", err))
	}
	return fd.Messages().ByName("Frame")
}

func newFrameMessage() *dynamicpb.Message { return dynamicpb.NewMessage(frameDescriptor) }

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(name)
}

func get(m protoreflect.Message, name protoreflect.Name) protoreflect.Value {
	return m.Get(field(m, name))
}

func set(m protoreflect.Message, name protoreflect.Name, v protoreflect.Value) {
	m.Set(field(m, name), v)
}

func mutable(m protoreflect.Message, name protoreflect.Name) protoreflect.Value {
	return m.Mutable(field(m, name))
}
