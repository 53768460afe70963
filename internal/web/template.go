package web

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/sweeney/drivestats/internal/logic"
	"github.com/sweeney/drivestats/internal/status"
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
	"km": func(meters float64) string {
		return fmt.Sprintf("%.1f km", meters/1000)
	},
	"hours": func(seconds float64) string {
		return fmt.Sprintf("%.1f h", seconds/3600)
	},
	"laptime": func(seconds float64) string {
		if !logic.IsSet(seconds) {
			return "-"
		}
		return fmt.Sprintf("%d:%06.3f", int(seconds/60), math.Mod(seconds, 60))
	},
	"rfc3339": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Drive Stats</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.tracking { color: green; font-weight: bold; }
.idle { color: #888; }
.stale { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Drive Stats</h1>

<h2>Session</h2>
<table>
<tr><th>State</th><td class="{{if .Tracking}}tracking{{else}}idle{{end}}">{{.State}}{{if .Paused}} (paused){{end}}</td></tr>
<tr><th>Telemetry</th><td class="{{if .Stale}}stale{{end}}">{{if .Stale}}stale{{else}}live{{end}}</td></tr>
{{if .Tracking}}<tr><th>Track</th><td>{{.Key.Track}}</td></tr>
<tr><th>Subject</th><td>{{.Key.Subject}}</td></tr>
<tr><th>Total distance</th><td>{{km .LiveMeters}}</td></tr>
<tr><th>Session distance</th><td>{{km .Session.Meters}}</td></tr>
<tr><th>Laps</th><td>{{.Session.Valid}} valid / {{.Session.Invalid}} invalid</td></tr>
<tr><th>Session best</th><td>{{laptime .Session.PersonalBest}}</td></tr>
<tr><th>Fuel used</th><td>{{printf "%.1f" .Session.Liters}} L</td></tr>{{end}}
{{if .PendingSetup}}<tr><th>Pending setup</th><td>{{.PendingSetup}}</td></tr>{{end}}
</table>

{{with .LastFlush}}
<h2>Last Saved</h2>
<table>
<tr><th>At</th><td>{{rfc3339 .At}}</td></tr>
<tr><th>Key</th><td>{{.Key.Track}} / {{.Key.Subject}}</td></tr>
<tr><th>Distance</th><td>{{km .Totals.Meters}} (+{{km .Delta.Meters}})</td></tr>
<tr><th>Time on track</th><td>{{hours .Totals.Seconds}}</td></tr>
<tr><th>Races / wins / podiums</th><td>{{.Totals.Races}} / {{.Totals.Wins}} / {{.Totals.Podiums}}</td></tr>
<tr><th>Personal best</th><td>{{laptime .Totals.PersonalBest}}</td></tr>
</table>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Source</th><td>{{.Config.Source}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Ticks</th><td>{{.Counts.Ticks}} ({{.Counts.StaleReads}} stale)</td></tr>
<tr><th>Activations</th><td>{{.Counts.Activations}}</td></tr>
<tr><th>Flushes</th><td>{{.Counts.Flushes}}</td></tr>
<tr><th>Abandoned</th><td>{{.Counts.Abandoned}}</td></tr>
<tr><th>Setups saved</th><td>{{.Counts.SetupsSaved}}</td></tr>
<tr><th>Setups renamed</th><td>{{.Counts.SetupsRenamed}}</td></tr>
</table>

{{if .Recent}}
<h2>Recent</h2>
<table>
{{range .Recent}}<tr><th>{{rfc3339 .At}}</th><td>{{.Event}} {{.Detail}}</td></tr>
{{end}}</table>
{{end}}

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{rfc3339 .StartTime}}</td></tr>
<tr><th>Poll</th><td>{{.Config.IdleIntervalMs}}ms idle / {{.Config.ActiveIntervalMs}}ms active</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Classification</th><td>{{.Config.Classification}}{{if .Config.PodiumByClass}} (podium by class){{end}}</td></tr>
<tr><th>Setup backup</th><td>{{if .Config.SetupEnabled}}{{.Config.SetupDir}}{{else}}disabled{{end}}</td></tr>
<tr><th>Database</th><td>{{.Config.DBPath}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/stats.json">All records</a></p>
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
	indexTmpl.Execute(w, data)
}
