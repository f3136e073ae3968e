package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/dewheater/internal/status"
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
	"onOff": func(on bool) string {
		if on {
			return "ON"
		}
		return "OFF"
	},
	"c": func(f float64) string {
		return fmt.Sprintf("%.1f", f)
	},
	"c2": func(f float64) string {
		return fmt.Sprintf("%.2f", f)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="30">
<title>Dew Heater</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Dew Heater</h1>

<h2>Heater</h2>
<table>
<tr><th>Heater</th><td id="heater-state" class="{{if .HeaterOn}}on{{else}}off{{end}}">{{onOff .HeaterOn}}</td></tr>
<tr><th>Ready</th><td>{{if .Last}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Readings</h2>
{{with .Last}}<table>
<tr><th>Temperature inside</th><td>{{c .TempIn}} &deg;C</td></tr>
<tr><th>Dew point inside</th><td>{{c2 .DewPointIn}} &deg;C</td></tr>
<tr><th>Humidity inside</th><td>{{c .HumidityIn}} %</td></tr>
<tr><th>Temperature outside</th><td>{{c .TempExt}} &deg;C</td></tr>
<tr><th>Dew point outside</th><td>{{c2 .DewPointExt}} &deg;C</td></tr>
<tr><th>Humidity outside</th><td>{{c .HumidityExt}} %</td></tr>
<tr><th>Updated</th><td>{{.Time.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
</table>{{else}}<p class="unknown">waiting for first cycle</p>{{end}}

<h2>Counts</h2>
<table>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Heater ON</th><td>{{.Counts.HeaterOn}}</td></tr>
<tr><th>Heater OFF</th><td>{{.Counts.HeaterOff}}</td></tr>
<tr><th>Sensor faults</th><td>{{.Counts.SensorFaults}}</td></tr>
<tr><th>Weather faults</th><td>{{.Counts.WeatherFaults}}</td></tr>
<tr><th>Reloads</th><td>{{.Counts.Reloads}}</td></tr>
{{if .LastFault}}<tr><th>Last fault</th><td>{{.LastFault}} ({{.LastFaultTime.UTC.Format "2006-01-02T15:04:05Z"}})</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Location</th><td>{{.Config.Latitude}}, {{.Config.Longitude}}</td></tr>
<tr><th>Relay pin</th><td>{{.Config.RelayPin}}</td></tr>
<tr><th>Sensor pin</th><td>{{.Config.SensorPin}}</td></tr>
<tr><th>Dew margin</th><td>{{.Config.DewTempCorrection}} &deg;C</td></tr>
<tr><th>Loop sleep</th><td>{{.Config.LoopSleep}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, v status.View) {
	// View has an Uptime method; the template needs a field.
	data := struct {
		status.View
		Uptime time.Duration
	}{
		View:   v,
		Uptime: v.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
