package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/goldilocks/internal/status"
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
	"temp": func(v float64) string {
		return fmt.Sprintf("%.1f°", v)
	},
	"age": func(d time.Duration) string {
		return d.Truncate(time.Second).String()
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="15">
<title>Goldilocks</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.big { font-size: 2.4em; }
.heating { color: #c33; font-weight: bold; }
.cooling { color: #36c; font-weight: bold; }
.idle { color: #888; }
.unknown { color: orange; }
.stale { color: #aaa; text-decoration: line-through; }
.connected { color: green; }
.disconnected { color: red; }
form { display: inline; }
button { font-family: monospace; margin: 2px; }
</style>
</head>
<body>
<h1>Goldilocks <small>{{.Name}}</small></h1>

<p class="big">{{temp .Fused}} <span class="{{if eq (stateOrUnknown (printf "%s" .State)) "HEATING"}}heating{{else if eq (stateOrUnknown (printf "%s" .State)) "COOLING"}}cooling{{else if eq (stateOrUnknown (printf "%s" .State)) "IDLE"}}idle{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .State)}}</span>{{if .Time}} <small>{{.Time}}</small>{{end}}</p>

<h2>Range</h2>
<table>
<tr><th>Low</th><td>{{temp .Setpoints.Low}}{{if .Controls}}
<form method="post" action="/api/adjust/low/-1"><button>-</button></form>
<form method="post" action="/api/adjust/low/1"><button>+</button></form>{{end}}</td></tr>
<tr><th>High</th><td>{{temp .Setpoints.High}}{{if .Controls}}
<form method="post" action="/api/adjust/high/-1"><button>-</button></form>
<form method="post" action="/api/adjust/high/1"><button>+</button></form>{{end}}</td></tr>
<tr><th>Preset</th><td>{{if .Preset}}{{.Preset}}{{else}}custom{{end}}</td></tr>
{{if .HasTarget}}<tr><th>Target</th><td>{{temp .Target}}</td></tr>{{end}}
</table>
{{if .Controls}}<p>{{range .Presets}}<form method="post" action="/api/preset/{{.}}"><button>{{.}}</button></form>{{end}}</p>{{end}}

<h2>Sources</h2>
<table>
<tr><th>Source</th><td><b>Value</b></td><td><b>Age</b></td></tr>
{{range .Sources}}<tr class="{{if .Stale}}stale{{end}}"><th>{{.Source}}</th><td>{{temp .Value}}</td><td>{{age .Age}}</td></tr>
{{else}}<tr><td colspan="3">no readings</td></tr>
{{end}}</table>

<h2>Heat Pump</h2>
<table>
<tr><th>Power</th><td>{{if .HeatPump.Power}}on{{else}}off{{end}}</td></tr>
<tr><th>Mode</th><td>{{if .HeatPump.Mode}}{{.HeatPump.Mode}}{{else}}-{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Recoveries</th><td>{{.MQTTRecoveries}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

{{if .Journal}}<h2>Recent</h2>
<table>
{{range .Journal}}<tr><th>{{.At.Local.Format "Jan 2 15:04"}}</th><td>{{.Summary}}</td></tr>
{{end}}</table>{{end}}

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Clock</th><td>{{if .TimeSynced}}synced{{else}}unsynced{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, presets []string, controls bool) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Time     string
		Presets  []string
		Controls bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Presets:  presets,
		Controls: controls,
	}
	if !snap.WallTime.IsZero() {
		data.Time = snap.WallTime.Format("15:04")
	}
	indexTmpl.Execute(w, data)
}
