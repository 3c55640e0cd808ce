package wire

import (
	"time"

	"github.com/ARMmbed/mbed-os-sub118/wire/l2cap"
)

const (
	logPrefix = "wire"

	// MTU limits. The client asks for DefaultClientMTU unless told otherwise.
	DefaultMTU       = l2cap.DefaultMTU
	DefaultClientMTU = 247
	MaxMTU           = l2cap.MaxMTU

	// MTU exchange happens before the read loop starts and is bounded separately.
	mtuExchangeTimeout = 5 * time.Second

	// Events waiting for Run. One request is outstanding per connection,
	// so this only needs room for a response and a disconnection each.
	eventQueueSize = 64
)
