package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// RouteType distinguishes the two supported transport modes for a route.
type RouteType uint8

const (
	RouteTCP RouteType = 0
	RouteUDP RouteType = 1
)

func (t RouteType) String() string {
	switch t {
	case RouteTCP:
		return "tcp"
	case RouteUDP:
		return "udp"
	default:
		return fmt.Sprintf("RouteType(%d)", uint8(t))
	}
}

// Auth is the first message written on the handshake substream.
type Auth struct {
	Token string
}

// EncodeAuth serializes an Auth message.
func EncodeAuth(a Auth) []byte {
	var buf bytes.Buffer
	writeString(&buf, a.Token)
	return buf.Bytes()
}

// DecodeAuth parses an Auth message.
func DecodeAuth(payload []byte) (Auth, error) {
	r := bytes.NewReader(payload)
	token, err := readString(r, MaxTokenLen)
	if err != nil {
		return Auth{}, err
	}
	return Auth{Token: token}, nil
}

// RegisterRoute is one entry of the ordered route-set the client registers.
type RegisterRoute struct {
	Name string
	Type RouteType
}

// EncodeRegisterRoutes serializes the ordered route list as a single frame
// payload: varint(count) followed by each entry's name and type byte.
func EncodeRegisterRoutes(routes []RegisterRoute) []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(routes)))
	for _, rt := range routes {
		writeString(&buf, rt.Name)
		buf.WriteByte(byte(rt.Type))
	}
	return buf.Bytes()
}

// DecodeRegisterRoutes parses the route-list frame payload.
func DecodeRegisterRoutes(payload []byte) ([]RegisterRoute, error) {
	r := bytes.NewReader(payload)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: register route count: %v", ErrFraming, err)
	}
	if count > MaxRouteCount {
		return nil, fmt.Errorf("%w: register route count %d exceeds cap %d", ErrFraming, count, MaxRouteCount)
	}
	routes := make([]RegisterRoute, 0, count)
	for i := uint64(0); i < count; i++ {
		name, err := readString(r, MaxRouteNameLen)
		if err != nil {
			return nil, err
		}
		typByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: register route type: %v", ErrFraming, err)
		}
		routes = append(routes, RegisterRoute{Name: name, Type: RouteType(typByte)})
	}
	return routes, nil
}

// ResultKind tags the outcome of a RegisterRouteRes message.
type ResultKind uint8

const (
	ResultOk ResultKind = iota
	ResultRepeated
	ResultRouteNotFound
	ResultOther
)

// RegisterRouteRes is the server's single response to a registration
// attempt: Ok, or Err(kind, route[, reason]).
type RegisterRouteRes struct {
	Kind   ResultKind
	Route  string
	Reason string // only meaningful when Kind == ResultOther
}

// OkRegisterRouteRes builds the success response.
func OkRegisterRouteRes() RegisterRouteRes {
	return RegisterRouteRes{Kind: ResultOk}
}

// ErrRegisterRouteRes builds a failure response naming the offending route.
func ErrRegisterRouteRes(kind ResultKind, route string, reason string) RegisterRouteRes {
	return RegisterRouteRes{Kind: kind, Route: route, Reason: reason}
}

func (r RegisterRouteRes) Error() string {
	switch r.Kind {
	case ResultOk:
		return ""
	case ResultRepeated:
		return fmt.Sprintf("route %q: address already in use", r.Route)
	case ResultRouteNotFound:
		return fmt.Sprintf("route %q: not found", r.Route)
	case ResultOther:
		return fmt.Sprintf("route %q: %s", r.Route, r.Reason)
	default:
		return fmt.Sprintf("route %q: unknown result kind %d", r.Route, r.Kind)
	}
}

// EncodeRegisterRouteRes serializes a RegisterRouteRes message.
func EncodeRegisterRouteRes(res RegisterRouteRes) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(res.Kind))
	if res.Kind != ResultOk {
		writeString(&buf, res.Route)
	}
	if res.Kind == ResultOther {
		writeString(&buf, res.Reason)
	}
	return buf.Bytes()
}

// DecodeRegisterRouteRes parses a RegisterRouteRes message.
func DecodeRegisterRouteRes(payload []byte) (RegisterRouteRes, error) {
	r := bytes.NewReader(payload)
	kindByte, err := r.ReadByte()
	if err != nil {
		return RegisterRouteRes{}, fmt.Errorf("%w: result kind: %v", ErrFraming, err)
	}
	kind := ResultKind(kindByte)
	if kind > ResultOther {
		return RegisterRouteRes{}, fmt.Errorf("%w: unknown result kind %d", ErrFraming, kind)
	}
	res := RegisterRouteRes{Kind: kind}
	if kind == ResultOk {
		return res, nil
	}
	res.Route, err = readString(r, MaxRouteNameLen)
	if err != nil {
		return RegisterRouteRes{}, err
	}
	if kind == ResultOther {
		res.Reason, err = readString(r, MaxReasonLen)
		if err != nil {
			return RegisterRouteRes{}, err
		}
	}
	return res, nil
}

// StreamStart is the preamble the server writes as the first bytes of every
// data substream it opens, telling the client which route to forward to.
type StreamStart struct {
	RouteName string
}

// EncodeStreamStart serializes a StreamStart preamble.
func EncodeStreamStart(s StreamStart) []byte {
	var buf bytes.Buffer
	writeString(&buf, s.RouteName)
	return buf.Bytes()
}

// DecodeStreamStart parses a StreamStart preamble.
func DecodeStreamStart(payload []byte) (StreamStart, error) {
	r := bytes.NewReader(payload)
	name, err := readString(r, MaxRouteNameLen)
	if err != nil {
		return StreamStart{}, err
	}
	return StreamStart{RouteName: name}, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader, maxLen int) (string, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return "", fmt.Errorf("%w: string length: %v", ErrFraming, err)
	}
	if length > uint64(maxLen) {
		return "", fmt.Errorf("%w: string length %d exceeds cap %d", ErrFraming, length, maxLen)
	}
	buf := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("%w: string bytes: %v", ErrFraming, err)
		}
	}
	return string(buf), nil
}
