package att

// ATT opcodes used by GATT discovery (Bluetooth Core Spec v5.3 Vol 3, Part F, Section 3.4)
const (
	OpErrorResponse = 0x01

	OpExchangeMTURequest  = 0x02
	OpExchangeMTUResponse = 0x03

	// Descriptor discovery
	OpFindInformationRequest  = 0x04
	OpFindInformationResponse = 0x05

	// Characteristic discovery and read by UUID
	OpReadByTypeRequest  = 0x08
	OpReadByTypeResponse = 0x09

	OpReadRequest  = 0x0A
	OpReadResponse = 0x0B

	// Primary service discovery
	OpReadByGroupTypeRequest  = 0x10
	OpReadByGroupTypeResponse = 0x11
)

// OpcodeNames maps opcodes to human-readable names
var OpcodeNames = map[uint8]string{
	OpErrorResponse:           "Error Response",
	OpExchangeMTURequest:      "Exchange MTU Request",
	OpExchangeMTUResponse:     "Exchange MTU Response",
	OpFindInformationRequest:  "Find Information Request",
	OpFindInformationResponse: "Find Information Response",
	OpReadByTypeRequest:       "Read By Type Request",
	OpReadByTypeResponse:      "Read By Type Response",
	OpReadRequest:             "Read Request",
	OpReadResponse:            "Read Response",
	OpReadByGroupTypeRequest:  "Read By Group Type Request",
	OpReadByGroupTypeResponse: "Read By Group Type Response",
}

// IsRequest returns true if the opcode is a request that expects a response
func IsRequest(opcode uint8) bool {
	return GetResponseOpcode(opcode) != 0
}

// IsResponse returns true if the opcode is a response
func IsResponse(opcode uint8) bool {
	switch opcode {
	case OpErrorResponse,
		OpExchangeMTUResponse,
		OpFindInformationResponse,
		OpReadByTypeResponse,
		OpReadResponse,
		OpReadByGroupTypeResponse:
		return true
	default:
		return false
	}
}

// GetResponseOpcode returns the expected response opcode for a request opcode,
// or 0 if the opcode is not a request
func GetResponseOpcode(requestOpcode uint8) uint8 {
	switch requestOpcode {
	case OpExchangeMTURequest:
		return OpExchangeMTUResponse
	case OpFindInformationRequest:
		return OpFindInformationResponse
	case OpReadByTypeRequest:
		return OpReadByTypeResponse
	case OpReadRequest:
		return OpReadResponse
	case OpReadByGroupTypeRequest:
		return OpReadByGroupTypeResponse
	default:
		return 0
	}
}
