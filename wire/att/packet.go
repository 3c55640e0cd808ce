package att

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Error Response (Opcode 0x01)
type ErrorResponse struct {
	RequestOpcode uint8  // The opcode that caused the error
	Handle        uint16 // The handle that caused the error
	ErrorCode     uint8
}

// MTU Exchange Request/Response (Opcodes 0x02/0x03)
type ExchangeMTURequest struct {
	ClientRxMTU uint16
}

type ExchangeMTUResponse struct {
	ServerRxMTU uint16
}

// Find Information Request/Response (Opcodes 0x04/0x05)
type FindInformationRequest struct {
	StartHandle uint16
	EndHandle   uint16
}

type FindInformationResponse struct {
	Format uint8  // 0x01 = 16-bit UUIDs, 0x02 = 128-bit UUIDs
	Data   []byte // List of (Handle, UUID) pairs
}

// Read By Type Request/Response (Opcodes 0x08/0x09)
type ReadByTypeRequest struct {
	StartHandle uint16
	EndHandle   uint16
	Type        []byte // 2 or 16 byte UUID
}

type ReadByTypeResponse struct {
	Length        uint8  // Length of each (Handle, Value) pair
	AttributeData []byte // List of (Handle, Value) pairs
}

// Read Request/Response (Opcodes 0x0A/0x0B)
type ReadRequest struct {
	Handle uint16
}

type ReadResponse struct {
	Value []byte
}

// Read By Group Type Request/Response (Opcodes 0x10/0x11)
type ReadByGroupTypeRequest struct {
	StartHandle uint16
	EndHandle   uint16
	Type        []byte // 2 or 16 byte UUID, Primary Service for discovery
}

type ReadByGroupTypeResponse struct {
	Length        uint8  // Length of each (Handle, EndGroupHandle, Value) tuple
	AttributeData []byte
}

// Opcode returns the opcode of an encodable packet, or 0
func Opcode(pkt interface{}) uint8 {
	switch pkt.(type) {
	case *ErrorResponse:
		return OpErrorResponse
	case *ExchangeMTURequest:
		return OpExchangeMTURequest
	case *ExchangeMTUResponse:
		return OpExchangeMTUResponse
	case *FindInformationRequest:
		return OpFindInformationRequest
	case *FindInformationResponse:
		return OpFindInformationResponse
	case *ReadByTypeRequest:
		return OpReadByTypeRequest
	case *ReadByTypeResponse:
		return OpReadByTypeResponse
	case *ReadRequest:
		return OpReadRequest
	case *ReadResponse:
		return OpReadResponse
	case *ReadByGroupTypeRequest:
		return OpReadByGroupTypeRequest
	case *ReadByGroupTypeResponse:
		return OpReadByGroupTypeResponse
	default:
		return 0
	}
}

// EncodePacket encodes an ATT packet to binary format
func EncodePacket(pkt interface{}) ([]byte, error) {
	switch p := pkt.(type) {
	case *ErrorResponse:
		buf := make([]byte, 5)
		buf[0] = OpErrorResponse
		buf[1] = p.RequestOpcode
		binary.LittleEndian.PutUint16(buf[2:4], p.Handle)
		buf[4] = p.ErrorCode
		return buf, nil

	case *ExchangeMTURequest:
		buf := make([]byte, 3)
		buf[0] = OpExchangeMTURequest
		binary.LittleEndian.PutUint16(buf[1:3], p.ClientRxMTU)
		return buf, nil

	case *ExchangeMTUResponse:
		buf := make([]byte, 3)
		buf[0] = OpExchangeMTUResponse
		binary.LittleEndian.PutUint16(buf[1:3], p.ServerRxMTU)
		return buf, nil

	case *FindInformationRequest:
		buf := make([]byte, 5)
		buf[0] = OpFindInformationRequest
		binary.LittleEndian.PutUint16(buf[1:3], p.StartHandle)
		binary.LittleEndian.PutUint16(buf[3:5], p.EndHandle)
		return buf, nil

	case *FindInformationResponse:
		buf := make([]byte, 2+len(p.Data))
		buf[0] = OpFindInformationResponse
		buf[1] = p.Format
		copy(buf[2:], p.Data)
		return buf, nil

	case *ReadByTypeRequest:
		return encodeRangeRequest(OpReadByTypeRequest, p.StartHandle, p.EndHandle, p.Type)

	case *ReadByTypeResponse:
		buf := make([]byte, 2+len(p.AttributeData))
		buf[0] = OpReadByTypeResponse
		buf[1] = p.Length
		copy(buf[2:], p.AttributeData)
		return buf, nil

	case *ReadRequest:
		buf := make([]byte, 3)
		buf[0] = OpReadRequest
		binary.LittleEndian.PutUint16(buf[1:3], p.Handle)
		return buf, nil

	case *ReadResponse:
		buf := make([]byte, 1+len(p.Value))
		buf[0] = OpReadResponse
		copy(buf[1:], p.Value)
		return buf, nil

	case *ReadByGroupTypeRequest:
		return encodeRangeRequest(OpReadByGroupTypeRequest, p.StartHandle, p.EndHandle, p.Type)

	case *ReadByGroupTypeResponse:
		buf := make([]byte, 2+len(p.AttributeData))
		buf[0] = OpReadByGroupTypeResponse
		buf[1] = p.Length
		copy(buf[2:], p.AttributeData)
		return buf, nil

	default:
		return nil, errors.Errorf("att: unknown packet type %T", pkt)
	}
}

func encodeRangeRequest(opcode uint8, start, end uint16, typ []byte) ([]byte, error) {
	if len(typ) != 2 && len(typ) != 16 {
		return nil, errors.Errorf("att: %s with %d byte type", OpcodeNames[opcode], len(typ))
	}
	buf := make([]byte, 5+len(typ))
	buf[0] = opcode
	binary.LittleEndian.PutUint16(buf[1:3], start)
	binary.LittleEndian.PutUint16(buf[3:5], end)
	copy(buf[5:], typ)
	return buf, nil
}

// DecodePacket decodes binary data into an ATT packet
func DecodePacket(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, errors.New("att: packet too short (need at least 1 byte)")
	}

	opcode := data[0]
	tooShort := func(min int) error {
		if len(data) < min {
			return errors.Errorf("att: %s too short (%d < %d bytes)", OpcodeNames[opcode], len(data), min)
		}
		return nil
	}

	switch opcode {
	case OpErrorResponse:
		if err := tooShort(5); err != nil {
			return nil, err
		}
		return &ErrorResponse{
			RequestOpcode: data[1],
			Handle:        binary.LittleEndian.Uint16(data[2:4]),
			ErrorCode:     data[4],
		}, nil

	case OpExchangeMTURequest:
		if err := tooShort(3); err != nil {
			return nil, err
		}
		return &ExchangeMTURequest{ClientRxMTU: binary.LittleEndian.Uint16(data[1:3])}, nil

	case OpExchangeMTUResponse:
		if err := tooShort(3); err != nil {
			return nil, err
		}
		return &ExchangeMTUResponse{ServerRxMTU: binary.LittleEndian.Uint16(data[1:3])}, nil

	case OpFindInformationRequest:
		if err := tooShort(5); err != nil {
			return nil, err
		}
		return &FindInformationRequest{
			StartHandle: binary.LittleEndian.Uint16(data[1:3]),
			EndHandle:   binary.LittleEndian.Uint16(data[3:5]),
		}, nil

	case OpFindInformationResponse:
		if err := tooShort(2); err != nil {
			return nil, err
		}
		return &FindInformationResponse{
			Format: data[1],
			Data:   append([]byte{}, data[2:]...),
		}, nil

	case OpReadByTypeRequest:
		if err := tooShort(7); err != nil { // opcode + start + end + 16-bit type
			return nil, err
		}
		return &ReadByTypeRequest{
			StartHandle: binary.LittleEndian.Uint16(data[1:3]),
			EndHandle:   binary.LittleEndian.Uint16(data[3:5]),
			Type:        append([]byte{}, data[5:]...),
		}, nil

	case OpReadByTypeResponse:
		if err := tooShort(2); err != nil {
			return nil, err
		}
		return &ReadByTypeResponse{
			Length:        data[1],
			AttributeData: append([]byte{}, data[2:]...),
		}, nil

	case OpReadRequest:
		if err := tooShort(3); err != nil {
			return nil, err
		}
		return &ReadRequest{Handle: binary.LittleEndian.Uint16(data[1:3])}, nil

	case OpReadResponse:
		return &ReadResponse{Value: append([]byte{}, data[1:]...)}, nil

	case OpReadByGroupTypeRequest:
		if err := tooShort(7); err != nil {
			return nil, err
		}
		return &ReadByGroupTypeRequest{
			StartHandle: binary.LittleEndian.Uint16(data[1:3]),
			EndHandle:   binary.LittleEndian.Uint16(data[3:5]),
			Type:        append([]byte{}, data[5:]...),
		}, nil

	case OpReadByGroupTypeResponse:
		if err := tooShort(2); err != nil {
			return nil, err
		}
		return &ReadByGroupTypeResponse{
			Length:        data[1],
			AttributeData: append([]byte{}, data[2:]...),
		}, nil

	default:
		return nil, errors.Errorf("att: unknown opcode 0x%02X", opcode)
	}
}
