package mqtt

import (
	"github.com/golang/glog"

	"github.com/sweeney/sensor-gateway/internal/gateway"
)

// Observer forwards gateway events to p. Publish errors are logged and
// otherwise ignored.
func Observer(p Publisher) gateway.Observer {
	return gateway.ObserverFunc(func(e gateway.Event) {
		if err := p.Publish(e); err != nil {
			glog.Warningf("mqtt: publish %s: %v", e.Type, err)
		}
	})
}
