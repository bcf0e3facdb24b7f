package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/status"
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
	"intentClass": func(i logic.Intent) string {
		switch i {
		case logic.IntentHigh:
			return "high"
		case logic.IntentLow:
			return "low"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Ventilation Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.high { color: green; font-weight: bold; }
.low { color: teal; }
.off { color: #888; }
.error { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Ventilation Controller<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Lifecycle</th><td id="lifecycle" class="{{if eq .Lifecycle.String "ERROR"}}error{{end}}">{{.Lifecycle}}</td></tr>
<tr><th>Mode</th><td id="mode">{{.Mode}}</td></tr>
<tr><th>Night</th><td>{{if .Night}}yes{{else}}no{{end}}</td></tr>
{{if .LastAlert}}<tr><th>Last alert</th><td>{{.LastAlert}} ({{.LastAlertAt.UTC.Format "15:04:05Z"}})</td></tr>{{end}}
</table>

<h2>Air</h2>
<table>
{{if .HasReading}}<tr><th>CO2</th><td id="co2">{{printf "%.0f" .Reading.CO2}} ppm{{if .Reading.Degraded}} (cached){{end}}</td></tr>
<tr><th>Temperature</th><td id="temp">{{printf "%.1f" .Reading.Temperature}} &deg;C</td></tr>
<tr><th>Humidity</th><td id="humi">{{printf "%.0f" .Reading.Humidity}} %</td></tr>
{{else}}<tr><th>Sensor</th><td>no reading yet</td></tr>{{end}}
<tr><th>Sensor failures</th><td>{{.SensorFailures}}</td></tr>
{{if .Weather.Valid}}<tr><th>Outdoor PM2.5</th><td>{{printf "%.1f" .Weather.PM25}} &micro;g/m&sup3;</td></tr>
<tr><th>Outdoor temperature</th><td>{{printf "%.1f" .Weather.OutdoorTemp}} &deg;C</td></tr>{{end}}
</table>

<h2>Fans</h2>
<table>
{{range .Fans}}<tr><th>Fan {{.ID}}</th><td id="fan-{{.ID}}" class="{{intentClass .Intent}}">{{.Intent}} ({{.Duty}})</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Transitions</th><td>{{.Counts.Transitions}}</td></tr>
<tr><th>Alerts</th><td>{{.Counts.Alerts}}</td></tr>
<tr><th>Sensor reinits</th><td>{{.Counts.Reinits}}</td></tr>
<tr><th>Actuator errors</th><td>{{.Counts.ActuatorErrors}}</td></tr>
<tr><th>Skipped cycles</th><td>{{.Counts.SkippedCycles}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Profile</th><td>{{.Config.Profile}}{{if .Config.Simulate}} (simulated){{end}}</td></tr>
<tr><th>Thresholds</th><td>{{.Config.LowThreshold}} / {{.Config.HighThreshold}} ppm</td></tr>
<tr><th>Report</th><td>{{.Config.Report}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/events">Events</a> &middot; <a href="/metrics">Metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function setText(id, text, cls) {
    var el = document.getElementById(id);
    if (!el) return;
    el.textContent = text;
    if (cls !== undefined) el.className = cls;
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        setText("lifecycle", s.lifecycle, s.lifecycle === "ERROR" ? "error" : "");
        setText("mode", s.mode);
        if (s.sensor.valid) {
          setText("co2", Math.round(s.sensor.co2) + " ppm" + (s.sensor.degraded ? " (cached)" : ""));
          setText("temp", s.sensor.temp.toFixed(1) + " °C");
          setText("humi", Math.round(s.sensor.humi) + " %");
        }
        s.fans.forEach(function(f) {
          setText("fan-" + f.id, f.intent + " (" + f.duty + ")", f.intent.toLowerCase());
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

type fanRow struct {
	ID     int
	Intent logic.Intent
	Duty   uint8
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	n := snap.Config.Fans
	if n <= 0 || n > logic.FanCount {
		n = logic.FanCount
	}
	intents := snap.Intents.Normalize()
	fans := make([]fanRow, n)
	for i := range fans {
		fans[i] = fanRow{ID: i, Intent: intents[i]}
		if i < len(snap.Duties) {
			fans[i].Duty = snap.Duties[i]
		}
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Fans   []fanRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Fans:     fans,
	}
	return indexTmpl.Execute(w, data)
}
