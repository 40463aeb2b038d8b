package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/sensor-gateway/internal/protocol"
	"github.com/sweeney/sensor-gateway/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"name": func(v fmt.Stringer) string {
		return fmt.Sprintf("%s", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sensor Gateway</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.RUNNING { color: green; font-weight: bold; }
.STOPPED { color: red; font-weight: bold; }
.IDLE, .UNKNOWN { color: orange; }
.FIRED { color: red; }
.ARMED { color: #555; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Sensor Gateway<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Nodes</h2>
<table>
<tr><th>Node state</th><td id="node" class="{{.Node}}">{{.Node}}</td></tr>
<tr><th>PC ack lock</th><td id="lock">{{.Lock}}</td></tr>
{{range .Sensors}}<tr><th>{{.Name}}</th><td id="sensor-{{.Name}}">{{.Reading}}{{if .Notified}} (disconnected){{end}}</td></tr>
{{end}}</table>

<h2>Timeouts</h2>
<table>
{{range .Gateway.Channels}}<tr><th>{{name .Channel}}</th><td id="ch-{{name .Channel}}" class="{{.Phase}}">{{.Phase}} ({{.Counter}})</td></tr>
{{end}}</table>

<h2>Traffic</h2>
<table>
<tr><th>Frames</th><td>{{.Gateway.Stats.Frames}}</td></tr>
<tr><th>Unknown ids</th><td>{{.Gateway.Stats.UnknownIDs}}</td></tr>
<tr><th>Inbound queue</th><td>{{.Gateway.InboundLen}} ({{.Gateway.InboundDrops}} dropped)</td></tr>
<tr><th>Outbound queue</th><td>{{.Gateway.OutboundLen}} bytes ({{.Gateway.Stats.UARTDropped}} frames dropped)</td></tr>
<tr><th>CAN errors</th><td>{{.Gateway.Stats.CANErrors}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Serial</th><td>{{.Config.SerialPort}}</td></tr>
<tr><th>CAN</th><td>{{.Config.CANIface}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Threshold</th><td>{{.Config.Threshold}} ticks</td></tr>
</table>

<script>
(function() {
  var dot = document.getElementById("live-dot");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";

  function text(id, v, cls) {
    var el = document.getElementById(id);
    if (!el) return;
    el.textContent = v;
    if (cls !== undefined) el.className = cls;
  }

  function connect() {
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() {
      dot.className = "live-dot err"; dot.title = "offline";
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(m) {
      try {
        var s = JSON.parse(m.data).status;
        text("node", s.node, s.node);
        text("lock", s.pc_ack_lock);
        s.sensors.forEach(function(x) {
          text("sensor-" + x.name, x.last_reading + (x.disconnect_notified ? " (disconnected)" : ""));
        });
        s.timeouts.forEach(function(c) {
          text("ch-" + c.name, c.phase + " (" + c.counter + ")", c.phase);
        });
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

type sensorRow struct {
	Name     string
	Reading  uint16
	Notified bool
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	node, lock := snap.Gateway.Node.String(), snap.Gateway.Lock
	if !snap.Reported {
		node, lock = "UNKNOWN", "UNKNOWN"
	}
	rows := make([]sensorRow, 0, len(protocol.Sensors))
	for _, s := range protocol.Sensors {
		rows = append(rows, sensorRow{
			Name:     s.String(),
			Reading:  snap.Gateway.Readings[s],
			Notified: snap.Gateway.DisconnectNotified[s],
		})
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Node    string
		Lock    string
		Sensors []sensorRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Node:     node,
		Lock:     lock,
		Sensors:  rows,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		glog.Warningf("web: render index: %v", err)
	}
}
