package gattc

import (
	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/logger"
)

const logPrefix = "gattc"

// Expected read-by-UUID value lengths. A characteristic declaration
// carries the properties byte and the value handle ahead of the UUID.
const (
	serviceUUIDValueLen        = ble.LongUUIDLength
	characteristicDeclPrefix   = 3
	characteristicUUIDValueLen = characteristicDeclPrefix + ble.LongUUIDLength
)

type discoveryState uint8

const (
	stateInactive discoveryState = iota
	stateServiceDiscoveryActive
	stateCharacteristicDiscoveryActive
	stateDiscoverServiceUUIDs
	stateDiscoverCharacteristicUUIDs
)

func (s discoveryState) String() string {
	switch s {
	case stateInactive:
		return "inactive"
	case stateServiceDiscoveryActive:
		return "service-discovery"
	case stateCharacteristicDiscoveryActive:
		return "characteristic-discovery"
	case stateDiscoverServiceUUIDs:
		return "service-uuids"
	case stateDiscoverCharacteristicUUIDs:
		return "characteristic-uuids"
	default:
		return "unknown"
	}
}

// ServiceCallback receives each matching service.
type ServiceCallback func(s *DiscoveredService)

// CharacteristicCallback receives each matching characteristic once its
// handle range is complete.
type CharacteristicCallback func(c *DiscoveredCharacteristic)

// TerminationCallback is invoked when a discovery session ends. err is nil
// on normal completion.
type TerminationCallback func(conn ble.ConnHandle, err error)

// ServiceDiscovery walks a peer's primary services and, optionally, the
// characteristics of the services that match the filter. Responses are fed
// in by the owning Client; each one is handled synchronously and either
// issues the next request, invokes callbacks, or ends the session.
//
// A ServiceDiscovery is not safe for concurrent use. Callbacks run on the
// goroutine that delivers events and may call back into the engine.
type ServiceDiscovery struct {
	client    *Client
	transport Transport

	conn  ble.ConnHandle
	state discoveryState

	serviceFilter        ble.UUID
	characteristicFilter ble.UUID
	onService            ServiceCallback
	onCharacteristic     CharacteristicCallback
	onTermination        TerminationCallback

	services     [MaxServicesPerBatch]DiscoveredService
	numServices  int
	serviceIndex int

	characteristics    [MaxCharacteristicsPerBatch]DiscoveredCharacteristic
	numCharacteristics int

	// inflight is the last characteristic of the previous batch, waiting
	// for the next declaration or the end of the service to learn its
	// last handle.
	inflight *DiscoveredCharacteristic

	serviceUUIDs        *uuidQueue
	characteristicUUIDs *uuidQueue
}

func newServiceDiscovery(client *Client, t Transport) *ServiceDiscovery {
	sd := &ServiceDiscovery{
		client:    client,
		transport: t,
		conn:      ble.InvalidConnHandle,
	}
	sd.serviceUUIDs = newUUIDQueue("service", sd, MaxServicesPerBatch,
		stateDiscoverServiceUUIDs, stateServiceDiscoveryActive, sd.readServiceUUID)
	sd.characteristicUUIDs = newUUIDQueue("characteristic", sd, MaxCharacteristicsPerBatch,
		stateDiscoverCharacteristicUUIDs, stateCharacteristicDiscoveryActive, sd.readCharacteristicUUID)
	return sd
}

// Launch starts discovery on conn. Wildcard filters (ble.UUIDUnknown) match
// everything. The service callback only fires when the characteristic
// filter is a wildcard; characteristic discovery only runs when a
// characteristic callback is set.
//
// Launch fails with ble.ErrInvalidState while a session is active. If the
// first request cannot be issued the session is terminated and the
// translated error returned.
func (sd *ServiceDiscovery) Launch(conn ble.ConnHandle, sc ServiceCallback, cc CharacteristicCallback, matchService, matchCharacteristic ble.UUID) error {
	if sd.state != stateInactive {
		return ble.ErrInvalidState
	}

	sd.conn = conn
	sd.onService = sc
	sd.onCharacteristic = cc
	sd.serviceFilter = matchService
	sd.characteristicFilter = matchCharacteristic

	sd.resetDiscoveredServices()
	sd.resetDiscoveredCharacteristics()
	sd.serviceIndex = 0
	sd.inflight = nil
	sd.serviceUUIDs.reset()
	sd.characteristicUUIDs.reset()

	sd.setState(stateServiceDiscoveryActive)
	logger.Debug(logPrefix, "conn %d: service discovery launched (service=%s characteristic=%s)",
		conn, matchService, matchCharacteristic)

	if err := sd.transport.DiscoverPrimaryServices(conn, ble.FirstHandle); err != nil {
		err = ble.TranslateStatus(err)
		logger.Warn(logPrefix, "conn %d: primary service discovery not issued: %v", conn, err)
		sd.terminateServiceDiscovery(err)
		return err
	}
	return nil
}

// IsActive reports whether a session is in progress.
func (sd *ServiceDiscovery) IsActive() bool {
	return sd.state != stateInactive
}

// ConnHandle returns the connection of the current or last session.
func (sd *ServiceDiscovery) ConnHandle() ble.ConnHandle {
	return sd.conn
}

// OnTermination registers the callback invoked when a session ends.
func (sd *ServiceDiscovery) OnTermination(cb TerminationCallback) {
	sd.onTermination = cb
}

// Terminate ends the current session. It does nothing when inactive.
func (sd *ServiceDiscovery) Terminate() {
	sd.terminateServiceDiscovery(nil)
}

// TerminateConnection ends the session if it runs on conn.
func (sd *ServiceDiscovery) TerminateConnection(conn ble.ConnHandle, err error) {
	if sd.state == stateInactive || sd.conn != conn {
		return
	}
	sd.terminateServiceDiscovery(err)
}

// Reset terminates any session and clears all state, including the
// termination callback.
func (sd *ServiceDiscovery) Reset() error {
	sd.terminateServiceDiscovery(nil)

	sd.resetDiscoveredServices()
	sd.resetDiscoveredCharacteristics()
	sd.serviceIndex = 0
	sd.serviceUUIDs.reset()
	sd.characteristicUUIDs.reset()
	sd.onTermination = nil
	sd.conn = ble.InvalidConnHandle
	return nil
}

func (sd *ServiceDiscovery) setState(s discoveryState) {
	if sd.state != s {
		logger.Trace(logPrefix, "conn %d: %s -> %s", sd.conn, sd.state, s)
	}
	sd.state = s
}

func (sd *ServiceDiscovery) terminateServiceDiscovery(err error) {
	sd.inflight = nil

	wasActive := sd.state != stateInactive
	sd.setState(stateInactive)
	if !wasActive {
		return
	}
	logger.Debug(logPrefix, "conn %d: service discovery terminated (err=%v)", sd.conn, err)
	if sd.onTermination != nil {
		sd.onTermination(sd.conn, err)
	}
}

func (sd *ServiceDiscovery) resetDiscoveredServices() {
	sd.numServices = 0
	sd.serviceIndex = 0
	for i := range sd.services {
		sd.services[i] = DiscoveredService{}
	}
}

func (sd *ServiceDiscovery) resetDiscoveredCharacteristics() {
	sd.numCharacteristics = 0
	for i := range sd.characteristics {
		sd.characteristics[i] = DiscoveredCharacteristic{}
	}
}

func (sd *ServiceDiscovery) serviceMatches(s *DiscoveredService) bool {
	return sd.serviceFilter.IsWildcard() || sd.serviceFilter == s.UUID
}

// Characteristic callbacks fire for every characteristic during a full
// enumeration, or for exact matches when a service filter narrows the
// search.
func (sd *ServiceDiscovery) characteristicMatches(c *DiscoveredCharacteristic) bool {
	if sd.characteristicFilter.IsWildcard() {
		return true
	}
	return sd.characteristicFilter == c.uuid && !sd.serviceFilter.IsWildcard()
}

func (sd *ServiceDiscovery) notifyCharacteristic(c *DiscoveredCharacteristic) {
	if sd.onCharacteristic == nil || !sd.characteristicMatches(c) {
		return
	}
	logger.Trace(logPrefix, "conn %d: %s", sd.conn, c)
	sd.onCharacteristic(c)
}

// onPrimaryServices handles a primary service discovery response.
func (sd *ServiceDiscovery) onPrimaryServices(evt *PrimaryServiceDiscoveryResponse) {
	switch {
	case evt.Status == StatusSuccess && len(evt.Services) > 0:
		sd.setupDiscoveredServices(evt.Services)
	case evt.Status == StatusSuccess, evt.Status == StatusAttributeNotFound:
		sd.terminateServiceDiscovery(nil)
	default:
		logger.Warn(logPrefix, "conn %d: primary service discovery failed: %s", sd.conn, evt.Status)
		sd.terminateServiceDiscovery(ble.ErrUnspecified)
	}
}

func (sd *ServiceDiscovery) setupDiscoveredServices(records []ServiceRecord) {
	sd.serviceIndex = 0
	sd.numServices = len(records)
	if sd.numServices > MaxServicesPerBatch {
		logger.Debug(logPrefix, "conn %d: %d services in batch, keeping %d",
			sd.conn, sd.numServices, MaxServicesPerBatch)
		sd.numServices = MaxServicesPerBatch
	}

	for i := 0; i < sd.numServices; i++ {
		rec := records[i]
		if rec.UUID.IsUnknown() {
			sd.serviceUUIDs.enqueue(i)
		}
		sd.services[i].setup(rec.UUID, rec.Range.Start, rec.Range.End)
	}

	if sd.serviceUUIDs.len() > 0 {
		sd.serviceUUIDs.triggerFirst()
	}
}

// progressServiceDiscovery runs the service loop from the current index.
// It stops when characteristic discovery is launched for a service and
// resumes after that phase ends.
func (sd *ServiceDiscovery) progressServiceDiscovery() {
	for sd.state == stateServiceDiscoveryActive && sd.serviceIndex < sd.numServices {
		svc := &sd.services[sd.serviceIndex]
		if !sd.serviceMatches(svc) {
			sd.serviceIndex++
			continue
		}

		if sd.onService != nil && sd.characteristicFilter.IsWildcard() {
			logger.Trace(logPrefix, "conn %d: %s", sd.conn, svc)
			sd.onService(svc)
		}
		if sd.state == stateServiceDiscoveryActive && sd.onCharacteristic != nil {
			sd.launchCharacteristicDiscovery(svc.StartHandle, svc.EndHandle)
		} else {
			sd.serviceIndex++
		}
	}

	if sd.state != stateServiceDiscoveryActive || sd.numServices == 0 || sd.serviceIndex < sd.numServices {
		return
	}

	// The batch is done: continue after the last cached service.
	endHandle := sd.services[sd.numServices-1].EndHandle
	sd.resetDiscoveredServices()
	if endHandle == ble.LastHandle {
		sd.terminateServiceDiscovery(nil)
		return
	}
	if err := sd.transport.DiscoverPrimaryServices(sd.conn, endHandle+1); err != nil {
		err = ble.TranslateStatus(err)
		logger.Warn(logPrefix, "conn %d: primary service discovery not issued: %v", sd.conn, err)
		sd.terminateServiceDiscovery(err)
	}
}

func (sd *ServiceDiscovery) launchCharacteristicDiscovery(start, end ble.Handle) {
	sd.setState(stateCharacteristicDiscoveryActive)
	sd.resetDiscoveredCharacteristics()

	r := ble.HandleRange{Start: start, End: end}
	if err := sd.transport.DiscoverCharacteristics(sd.conn, r); err != nil {
		err = ble.TranslateStatus(err)
		logger.Warn(logPrefix, "conn %d: characteristic discovery over %s not issued: %v", sd.conn, r, err)
		sd.terminateCharacteristicDiscovery(err)
	}
}

// onCharacteristics handles a characteristic discovery response. Every
// non-success status, attribute-not-found or otherwise, ends the phase for
// the current service without an error.
func (sd *ServiceDiscovery) onCharacteristics(evt *CharacteristicDiscoveryResponse) {
	if evt.Status == StatusSuccess {
		sd.setupDiscoveredCharacteristics(evt.Characteristics)
		return
	}
	if evt.Status != StatusAttributeNotFound {
		logger.Warn(logPrefix, "conn %d: characteristic discovery ended by peer status %s", sd.conn, evt.Status)
	}
	sd.terminateCharacteristicDiscovery(nil)
}

func (sd *ServiceDiscovery) setupDiscoveredCharacteristics(records []CharacteristicRecord) {
	sd.numCharacteristics = len(records)
	if sd.numCharacteristics > MaxCharacteristicsPerBatch {
		logger.Debug(logPrefix, "conn %d: %d characteristics in batch, keeping %d",
			sd.conn, sd.numCharacteristics, MaxCharacteristicsPerBatch)
		sd.numCharacteristics = MaxCharacteristicsPerBatch
	}

	for i := 0; i < sd.numCharacteristics; i++ {
		rec := records[i]
		if rec.UUID.IsUnknown() {
			sd.characteristicUUIDs.enqueue(i)
		}
		sd.characteristics[i].setup(sd.client, sd.conn, rec.UUID, rec.Properties, rec.DeclHandle, rec.ValueHandle)
	}

	if sd.characteristicUUIDs.len() > 0 {
		sd.characteristicUUIDs.triggerFirst()
	}
}

// progressCharacteristicDiscovery completes the handle ranges of the cached
// batch, hands them out, and asks for the rest of the service.
func (sd *ServiceDiscovery) progressCharacteristicDiscovery() {
	if sd.state != stateCharacteristicDiscoveryActive {
		return
	}

	if sd.inflight != nil && sd.numCharacteristics > 0 {
		c := sd.inflight
		sd.inflight = nil
		c.setLastHandle(sd.characteristics[0].declHandle - 1)
		sd.notifyCharacteristic(c)
	}

	for i := 0; i < sd.numCharacteristics; i++ {
		if sd.state != stateCharacteristicDiscoveryActive {
			return
		}
		if i == sd.numCharacteristics-1 {
			last := sd.characteristics[i]
			sd.inflight = &last
			break
		}
		sd.characteristics[i].setLastHandle(sd.characteristics[i+1].declHandle - 1)
		sd.notifyCharacteristic(&sd.characteristics[i])
	}
	if sd.state != stateCharacteristicDiscoveryActive {
		return
	}

	// Read both handles before the cache is cleared.
	empty := sd.numCharacteristics == 0
	var start uint32
	if !empty {
		start = uint32(sd.characteristics[sd.numCharacteristics-1].valueHandle) + 1
	}
	end := sd.services[sd.serviceIndex].EndHandle
	sd.resetDiscoveredCharacteristics()

	if empty || start > uint32(end) {
		sd.terminateCharacteristicDiscovery(nil)
		return
	}
	r := ble.HandleRange{Start: ble.Handle(start), End: end}
	if err := sd.transport.DiscoverCharacteristics(sd.conn, r); err != nil {
		err = ble.TranslateStatus(err)
		logger.Warn(logPrefix, "conn %d: characteristic discovery over %s not issued: %v", sd.conn, r, err)
		sd.terminateCharacteristicDiscovery(err)
	}
}

// terminateCharacteristicDiscovery ends the characteristic phase for the
// current service. The carried-over characteristic ends with the service
// and is only reported when err is nil. The service loop always moves on
// to the next index.
func (sd *ServiceDiscovery) terminateCharacteristicDiscovery(err error) {
	if sd.state == stateCharacteristicDiscoveryActive {
		if c := sd.inflight; c != nil {
			sd.inflight = nil
			if err == nil && sd.serviceIndex < sd.numServices {
				c.setLastHandle(sd.services[sd.serviceIndex].EndHandle)
				sd.notifyCharacteristic(c)
			}
		}
		// The callback may have terminated the whole session.
		if sd.state == stateCharacteristicDiscoveryActive {
			sd.setState(stateServiceDiscoveryActive)
		}
	}
	sd.serviceIndex++
}

func (sd *ServiceDiscovery) readServiceUUID(index int) error {
	svc := &sd.services[index]
	return sd.transport.ReadByUUID(sd.conn, ble.UUID16(ble.UUIDPrimaryService), svc.Range())
}

func (sd *ServiceDiscovery) readCharacteristicUUID(index int) error {
	c := &sd.characteristics[index]
	end := uint32(c.declHandle) + 1
	if end > uint32(ble.LastHandle) {
		end = uint32(ble.LastHandle)
	}
	r := ble.HandleRange{Start: c.declHandle, End: ble.Handle(end)}
	return sd.transport.ReadByUUID(sd.conn, ble.UUID16(ble.UUIDCharacteristic), r)
}

// onReadByUUID patches the UUID at the front of the pending queue. A
// response of the wrong shape drops the entry, which keeps its
// placeholder. Either way the next pending read is issued.
func (sd *ServiceDiscovery) onReadByUUID(evt *ReadByUUIDResponse) {
	switch sd.state {
	case stateDiscoverServiceUUIDs:
		index := sd.serviceUUIDs.dequeue()
		if u, ok := longUUIDFromResponse(evt, serviceUUIDValueLen, 0); ok && index != invalidIndex {
			sd.services[index].UUID = u
			logger.Trace(logPrefix, "conn %d: service %d resolved to %s", sd.conn, index, u)
		} else {
			logger.Debug(logPrefix, "conn %d: service %d uuid not resolved (%s count=%d len=%d)",
				sd.conn, index, evt.Status, evt.Count, evt.ValueLen)
		}
		sd.serviceUUIDs.triggerFirst()

	case stateDiscoverCharacteristicUUIDs:
		index := sd.characteristicUUIDs.dequeue()
		if u, ok := longUUIDFromResponse(evt, characteristicUUIDValueLen, characteristicDeclPrefix); ok && index != invalidIndex {
			sd.characteristics[index].setUUID(u)
			logger.Trace(logPrefix, "conn %d: characteristic %d resolved to %s", sd.conn, index, u)
		} else {
			logger.Debug(logPrefix, "conn %d: characteristic %d uuid not resolved (%s count=%d len=%d)",
				sd.conn, index, evt.Status, evt.Count, evt.ValueLen)
		}
		sd.characteristicUUIDs.triggerFirst()
	}
}

func longUUIDFromResponse(evt *ReadByUUIDResponse, valueLen, skip int) (ble.UUID, bool) {
	if evt.Status != StatusSuccess || evt.Count != 1 || evt.ValueLen != valueLen {
		return ble.UUIDUnknown, false
	}
	v := evt.Value(0)
	if v == nil {
		return ble.UUIDUnknown, false
	}
	u, err := ble.UUID128LSB(v[skip:])
	if err != nil {
		return ble.UUIDUnknown, false
	}
	return u, true
}
