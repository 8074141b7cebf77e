package blkid

import (
	"bytes"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/submount/submount/internal/log"
)

const (
	// DBus service and interface constants
	dbusService       = "org.freedesktop.UDisks2"
	dbusRootPath      = "/org/freedesktop/UDisks2"
	dbusObjectManager = "org.freedesktop.DBus.ObjectManager"

	dbusBlockInterface     = "org.freedesktop.UDisks2.Block"
	dbusPartitionInterface = "org.freedesktop.UDisks2.Partition"
)

// DBusConnection abstracts the godbus connection for testability
type DBusConnection interface {
	// Object returns a BusObject for the given destination and path
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	// Close closes the connection
	Close() error
}

// systemBusConn wraps *dbus.Conn to implement DBusConnection
type systemBusConn struct {
	conn *dbus.Conn
}

func (c *systemBusConn) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return c.conn.Object(dest, path)
}

func (c *systemBusConn) Close() error {
	return c.conn.Close()
}

// ConnectSystemBus connects to the system DBus and returns a DBusConnection
func ConnectSystemBus() (DBusConnection, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	return &systemBusConn{conn: conn}, nil
}

// UDisksResolver implements Resolver using the udisksd DBus API
type UDisksResolver struct {
	conn      DBusConnection
	connectFn func() (DBusConnection, error)
}

// UDisksResolverOption is a functional option for UDisksResolver
type UDisksResolverOption func(*UDisksResolver)

// WithConnection sets a custom DBus connection (for testing)
func WithConnection(conn DBusConnection) UDisksResolverOption {
	return func(r *UDisksResolver) {
		r.conn = conn
		r.connectFn = nil
	}
}

// NewUDisksResolver creates a new Resolver backed by the udisksd DBus API
func NewUDisksResolver(opts ...UDisksResolverOption) (*UDisksResolver, error) {
	r := &UDisksResolver{
		connectFn: ConnectSystemBus,
	}

	for _, opt := range opts {
		opt(r)
	}

	// Connect if no custom connection provided
	if r.conn == nil {
		conn, err := r.connectFn()
		if err != nil {
			return nil, fmt.Errorf("connect to system bus: %w", err)
		}
		r.conn = conn
	}

	return r, nil
}

// Close closes the DBus connection
func (r *UDisksResolver) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// getManagedObjects calls GetManagedObjects on the ObjectManager interface
// Returns: map[ObjectPath]map[InterfaceName]map[PropertyName]Variant
func (r *UDisksResolver) getManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	obj := r.conn.Object(dbusService, dbus.ObjectPath(dbusRootPath))

	var result map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := obj.Call(dbusObjectManager+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", call.Err)
	}

	if err := call.Store(&result); err != nil {
		return nil, fmt.Errorf("store GetManagedObjects result: %w", err)
	}

	return result, nil
}

// Resolve returns the device node matching the given spec
func (r *UDisksResolver) Resolve(spec string) (string, error) {
	tag, value, ok := splitTag(spec)
	if !ok {
		return spec, nil
	}

	log.Debug("resolving device spec via udisks", "tag", tag, "value", value)

	objects, err := r.getManagedObjects()
	if err != nil {
		return "", fmt.Errorf("get managed objects: %w", err)
	}

	for _, interfaces := range objects {
		blockProps, ok := interfaces[dbusBlockInterface]
		if !ok {
			continue
		}

		if !matchesTag(interfaces, tag, value) {
			continue
		}

		device := devicePath(blockProps)
		if device == "" {
			continue
		}
		return device, nil
	}

	return "", ErrNotFound
}

// Probe returns the identification data for the given device
func (r *UDisksResolver) Probe(device string) (*ProbeInfo, error) {
	log.Debug("probing device via udisks", "device", device)

	objects, err := r.getManagedObjects()
	if err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}

	for _, interfaces := range objects {
		blockProps, ok := interfaces[dbusBlockInterface]
		if !ok {
			continue
		}

		if devicePath(blockProps) != device {
			continue
		}

		return &ProbeInfo{
			Device:    device,
			Type:      stringProp(blockProps, "IdType"),
			UUID:      stringProp(blockProps, "IdUUID"),
			Label:     stringProp(blockProps, "IdLabel"),
			PartUUID:  stringProp(interfaces[dbusPartitionInterface], "UUID"),
			PartLabel: stringProp(interfaces[dbusPartitionInterface], "Name"),
		}, nil
	}

	return nil, ErrNotFound
}

// matchesTag reports whether the object exposing the given interfaces
// carries the tag value. UUID and LABEL live on the Block interface,
// PARTUUID and PARTLABEL on the Partition interface.
func matchesTag(interfaces map[string]map[string]dbus.Variant, tag, value string) bool {
	var got string
	switch tag {
	case "UUID":
		got = stringProp(interfaces[dbusBlockInterface], "IdUUID")
	case "LABEL":
		got = stringProp(interfaces[dbusBlockInterface], "IdLabel")
	case "PARTUUID":
		got = stringProp(interfaces[dbusPartitionInterface], "UUID")
	case "PARTLABEL":
		got = stringProp(interfaces[dbusPartitionInterface], "Name")
	}
	return got != "" && got == value
}

// devicePath extracts the device node from Block properties. UDisks
// exposes Device as a NUL-terminated byte array.
func devicePath(props map[string]dbus.Variant) string {
	v, ok := props["Device"]
	if !ok {
		return ""
	}

	b, ok := v.Value().([]byte)
	if !ok {
		return ""
	}

	return string(bytes.TrimRight(b, "\x00"))
}

// stringProp extracts a string property, or "" when absent
func stringProp(props map[string]dbus.Variant, name string) string {
	v, ok := props[name]
	if !ok {
		return ""
	}

	s, _ := v.Value().(string)
	return s
}
