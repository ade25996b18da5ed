// Package stream broadcasts simulation snapshots to remote viewers over
// websockets.
//
// Frames are protobuf-encoded Snapshot messages as described in
// snapshot.proto, so a viewer can decode them with any protobuf runtime.
package stream

import (
	"github.com/PrincetonUniversity/flock"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// message descriptors of snapshot.proto
var snapshotType, agentType, obstacleType protoreflect.MessageDescriptor

func init() {
	fd, err := protodesc.NewFile(schema(), protoregistry.GlobalFiles)
	if err != nil {
		panic(err)
	}
	msgs := fd.Messages()
	snapshotType = msgs.ByName("Snapshot")
	agentType = msgs.ByName("Agent")
	obstacleType = msgs.ByName("Obstacle")
}

// schema mirrors snapshot.proto.
func schema() *descriptorpb.FileDescriptorProto {
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	repeated := descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	field := func(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(num),
			Label:  optional,
			Type:   typ.Enum(),
		}
	}
	list := func(name string, num int32, msg string) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			Number:   proto.Int32(num),
			Label:    repeated,
			Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
			TypeName: proto.String(".flock." + msg),
		}
	}
	doubles := func(names ...string) []*descriptorpb.FieldDescriptorProto {
		fields := make([]*descriptorpb.FieldDescriptorProto, len(names))
		for k, name := range names {
			fields[k] = field(name, int32(k+1), descriptorpb.FieldDescriptorProto_TYPE_DOUBLE)
		}
		return fields
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("flock/snapshot.proto"),
		Package: proto.String("flock"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Snapshot"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("tick", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT64),
					field("run_id", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					list("agents", 3, "Agent"),
					list("obstacles", 4, "Obstacle"),
				},
			},
			{
				Name:  proto.String("Agent"),
				Field: doubles("x", "y", "heading", "speed", "perception", "fov"),
			},
			{
				Name:  proto.String("Obstacle"),
				Field: doubles("x", "y", "radius"),
			},
		},
	}
}

// Encode serializes a snapshot of the run identified by runID.
func Encode(runID string, snap flock.Snapshot) ([]byte, error) {
	m := dynamicpb.NewMessage(snapshotType)
	fields := snapshotType.Fields()
	m.Set(fields.ByName("tick"), protoreflect.ValueOfUint64(uint64(snap.Tick)))
	m.Set(fields.ByName("run_id"), protoreflect.ValueOfString(runID))

	if len(snap.Agents) > 0 {
		agents := m.Mutable(fields.ByName("agents")).List()
		for _, a := range snap.Agents {
			v := agents.NewElement()
			setDoubles(v.Message(), a.X, a.Y, a.Heading, a.Speed, a.Perception, a.FOV)
			agents.Append(v)
		}
	}
	if len(snap.Obstacles) > 0 {
		obstacles := m.Mutable(fields.ByName("obstacles")).List()
		for _, o := range snap.Obstacles {
			v := obstacles.NewElement()
			setDoubles(v.Message(), o.Center.X, o.Center.Y, o.Radius)
			obstacles.Append(v)
		}
	}

	b, err := proto.Marshal(m)
	return b, errors.Wrap(err, "encoding snapshot")
}

// Decode parses a frame produced by Encode. Unknown fields are skipped.
func Decode(b []byte) (runID string, snap flock.Snapshot, err error) {
	m := dynamicpb.NewMessage(snapshotType)
	if err := proto.Unmarshal(b, m); err != nil {
		return "", flock.Snapshot{}, errors.Wrap(err, "decoding snapshot")
	}
	fields := snapshotType.Fields()
	snap.Tick = int(m.Get(fields.ByName("tick")).Uint())
	runID = m.Get(fields.ByName("run_id")).String()

	agents := m.Get(fields.ByName("agents")).List()
	for k := 0; k < agents.Len(); k++ {
		var a flock.AgentState
		getDoubles(agents.Get(k).Message(), &a.X, &a.Y, &a.Heading, &a.Speed, &a.Perception, &a.FOV)
		snap.Agents = append(snap.Agents, a)
	}
	obstacles := m.Get(fields.ByName("obstacles")).List()
	for k := 0; k < obstacles.Len(); k++ {
		var o flock.Obstacle
		getDoubles(obstacles.Get(k).Message(), &o.Center.X, &o.Center.Y, &o.Radius)
		snap.Obstacles = append(snap.Obstacles, o)
	}
	return runID, snap, nil
}

// setDoubles sets the double fields of m in declaration order.
func setDoubles(m protoreflect.Message, vs ...float64) {
	fields := m.Descriptor().Fields()
	for k, v := range vs {
		m.Set(fields.Get(k), protoreflect.ValueOfFloat64(v))
	}
}

func getDoubles(m protoreflect.Message, vs ...*float64) {
	fields := m.Descriptor().Fields()
	for k, v := range vs {
		*v = m.Get(fields.Get(k)).Float()
	}
}
