package mqtt

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const clientIDPrefix = "sensor-gateway"

// ClientID derives a stable MQTT client id for this machine. The machine id
// is hashed with the application name so the raw id never leaves the host.
func ClientID() string {
	id, err := machineid.ProtectedID(clientIDPrefix)
	if err == nil && len(id) >= 12 {
		return clientIDPrefix + "-" + id[:12]
	}
	glog.Warningf("mqtt: machine id unavailable (%v), using hostname", err)
	if host, herr := os.Hostname(); herr == nil && host != "" {
		return clientIDPrefix + "-" + host
	}
	return clientIDPrefix
}
