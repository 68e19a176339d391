package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/gcn/internal/status"
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
	"bit": func(v bool) int {
		if v {
			return 1
		}
		return 0
	},
	"utc": func(t time.Time) string {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>GPIO Change Notifier</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{.Config.Host}}</h1>

<h2>Pin</h2>
<table>
<tr><th>GPIO</th><td>{{.Config.Chip}} line {{.Config.Pin}}</td></tr>
<tr><th>Value</th><td id="pin-value" class="{{if .Value}}on{{else}}off{{end}}">{{bit .Value}}</td></tr>
<tr><th>Raw</th><td>{{bit .Raw}}</td></tr>
<tr><th>Phase</th><td>{{.Phase}}</td></tr>
<tr><th>Last notification</th><td>{{utc .LastNotification}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Network</th><td class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{if .Connected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Network}}<tr><th>Interface</th><td>{{.Network.Interface}}</td></tr>
<tr><th>Address</th><td>{{.Network.Address}}</td></tr>{{end}}
<tr><th>Endpoint</th><td>{{.Config.NotifyURL}}</td></tr>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}})</td></tr>{{end}}
</table>

<h2>Last Dispatch</h2>
<table>
{{with .LastDispatch}}<tr><th>Time</th><td>{{utc .Time}}</td></tr>
<tr><th>Reason</th><td>{{.Reason}}</td></tr>
<tr><th>Value</th><td>{{bit .Value}}</td></tr>
<tr><th>Result</th><td class="{{if .Delivered}}connected{{else}}disconnected{{end}}">{{if .Delivered}}HTTP {{.StatusCode}}{{else}}failed{{if .Error}}: {{.Error}}{{end}}{{end}}</td></tr>
<tr><th>Server time</th><td>{{if .HasRemote}}{{utc .RemoteTime}}{{if .ClockSynced}} (clock set){{end}}{{else}}none{{end}}</td></tr>
{{else}}<tr><th>Time</th><td>never</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Changes</th><td>{{.Counts.Changes}}</td></tr>
<tr><th>Heartbeats</th><td>{{.Counts.Heartbeats}}</td></tr>
<tr><th>Transients</th><td>{{.Counts.Discarded}}</td></tr>
<tr><th>Read errors</th><td>{{.Counts.ReadErrors}}</td></tr>
<tr><th>Failed dispatches</th><td>{{.Failures}}</td></tr>
<tr><th>Clock syncs</th><td>{{.ClockSyncs}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{utc .StartTime}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if le .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Warn().Err(err).Msg("render status page")
	}
}
