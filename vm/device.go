package vm

// numDeviceSlots is fixed by the port encoding: the high nibble of a
// port byte selects one of 16 slots.
const numDeviceSlots = 16

// Device is the contract the port gateway dispatches into. Devices never
// reach into CPU state on their own; the gateway always hands them the
// CPU explicitly, mirroring how the teacher's hardware devices take the
// VM as an argument rather than holding a long-lived back-reference.
type Device interface {
	// Init runs once, right after the device is mounted.
	Init(cpu *CPU)
	// Cycle runs once per host-driven tick; devices with no background
	// work leave this empty.
	Cycle(cpu *CPU)
	// Read returns this device's current byte at the given port-low
	// offset (0-15; a short DEI at offset 15 passes 16 for its second
	// read).
	Read(cpu *CPU, portLow byte) byte
	// WriteByte handles an 8-bit write to the given port-low offset.
	WriteByte(cpu *CPU, portLow byte, value byte)
	// WriteShort handles a 16-bit write to the given port-low offset.
	// Devices that only care about bytes can implement this in terms of
	// two WriteByte calls.
	WriteShort(cpu *CPU, portLow byte, value uint16)
}

// deviceTable holds the 16 nullable device slots. A nil slot reads as
// zero and discards writes, per the port gateway contract.
type deviceTable struct {
	slots [numDeviceSlots]Device
}

func splitPort(port byte) (slot int, portLow byte) {
	return int(port >> 4), port & 0x0F
}

// mount installs a device at the given slot. Mounting twice on the same
// slot is a setup error, not an execution fault.
func (dt *deviceTable) mount(slot int, d Device, cpu *CPU) error {
	if dt.slots[slot] != nil {
		return errSlotOccupied
	}
	dt.slots[slot] = d
	d.Init(cpu)
	return nil
}

func (dt *deviceTable) cycle(cpu *CPU) {
	for _, d := range dt.slots {
		if d != nil {
			d.Cycle(cpu)
		}
	}
}

func (dt *deviceTable) readByte(cpu *CPU, port byte) byte {
	slot, portLow := splitPort(port)
	d := dt.slots[slot]
	if d == nil {
		return 0
	}
	return d.Read(cpu, portLow)
}

// readShort concatenates two consecutive device reads big-endian, the
// way DEI with the short bit set does for memory.
func (dt *deviceTable) readShort(cpu *CPU, port byte) uint16 {
	slot, portLow := splitPort(port)
	d := dt.slots[slot]
	if d == nil {
		return 0
	}
	hi := d.Read(cpu, portLow)
	lo := d.Read(cpu, portLow+1)
	return uint16(hi)<<8 | uint16(lo)
}

func (dt *deviceTable) writeByte(cpu *CPU, port byte, value byte) {
	slot, portLow := splitPort(port)
	d := dt.slots[slot]
	if d == nil {
		return
	}
	d.WriteByte(cpu, portLow, value)
}

func (dt *deviceTable) writeShort(cpu *CPU, port byte, value uint16) {
	slot, portLow := splitPort(port)
	d := dt.slots[slot]
	if d == nil {
		return
	}
	d.WriteShort(cpu, portLow, value)
}
