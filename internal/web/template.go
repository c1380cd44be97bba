package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/lightning-sensor/internal/status"
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
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Lightning Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: red; font-weight: bold; }
.off { color: #888; }
.warn { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Lightning Sensor</h1>

<h2>State</h2>
<table>
<tr><th>Lightning Alert</th><td class="{{if .Alert}}on{{else}}off{{end}}">{{if .Alert}}ON{{else}}OFF{{end}}</td></tr>
{{if .Alert}}<tr><th>Distance</th><td>{{if eq .DistanceKm 1}}overhead{{else if eq .DistanceKm 63}}out of range{{else}}{{.DistanceKm}} km{{end}}</td></tr>
<tr><th>Energy</th><td>{{.Energy}}</td></tr>{{end}}
<tr><th>Disturber</th><td class="{{if .Disturber}}warn{{else}}off{{end}}">{{yesno .Disturber}}</td></tr>
<tr><th>Noise</th><td class="{{if .Noise}}warn{{else}}off{{end}}">{{yesno .Noise}}</td></tr>
{{if not .UpdatedAt.IsZero}}<tr><th>Last Event</th><td>{{.UpdatedAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Topic Prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Lightning</th><td>{{.Counts.Lightning}}</td></tr>
<tr><th>Disturbers</th><td>{{.Counts.Disturber}}</td></tr>
<tr><th>Noise</th><td>{{.Counts.Noise}}</td></tr>
<tr><th>Forwarded</th><td>{{.Counts.Forwarded}}</td></tr>
<tr><th>Throttled</th><td>{{.Counts.Throttled}}</td></tr>
<tr><th>Publish Failures</th><td>{{.Counts.PublishFailures}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Mode</th><td>{{.Config.Mode}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollInterval}}</td></tr>
<tr><th>Throttle Window</th><td>{{if eq .Config.ThrottleWindow 0}}disabled{{else}}{{.Config.ThrottleWindow}}{{end}}</td></tr>
<tr><th>Keepalive</th><td>{{if eq .Config.KeepaliveInterval 0}}disabled{{else}}{{.Config.KeepaliveInterval}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/status.json">status</a> · <a href="/events.json">events</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has an Uptime() method but the template needs a field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
