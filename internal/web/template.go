package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/lamp-control/internal/config"
	"github.com/sweeney/lamp-control/internal/status"
	"github.com/sweeney/lamp-control/internal/store"
)

var tmplFuncs = template.FuncMap{
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
	"conditionOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}

const styleHTML = `<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.dark { color: #44a; font-weight: bold; }
.bright { color: #a80; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
input[type=number] { width: 6em; }
</style>`

var indexTmpl = template.Must(template.New("index").Funcs(tmplFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Lamp Control</title>
` + styleHTML + `
</head>
<body>
<h1>Lamp Control</h1>

<h2>State</h2>
<table>
<tr><th>Lamp</th><td class="{{if .RelayOn}}on{{else}}off{{end}}">{{if .RelayOn}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Light level</th><td>{{.LightLevel}} (dark at &le; {{.Config.DarkThreshold}})</td></tr>
<tr><th>Condition</th><td class="{{if eq (conditionOrUnknown (printf "%s" .Condition)) "DARK"}}dark{{else if eq (conditionOrUnknown (printf "%s" .Condition)) "BRIGHT"}}bright{{else}}unknown{{end}}">{{conditionOrUnknown (printf "%s" .Condition)}}</td></tr>
<tr><th>Stable ticks</th><td>{{.StableTickCount}} / {{.Config.StableTicks}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} / {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Lamp ON</th><td>{{.Counts.LampOn}}</td></tr>
<tr><th>Lamp OFF</th><td>{{.Counts.LampOff}}</td></tr>
</table>

{{if .Recent}}<h2>Recent Switches</h2>
<table>
<tr><th>Time</th><td>Event</td><td>Light</td></tr>
{{range .Recent}}<tr><th>{{.Timestamp.UTC.Format "2006-01-02 15:04:05"}}</th><td class="{{if eq (printf "%s" .Type) "LAMP_ON"}}on{{else}}off{{end}}">{{.Type}}</td><td>{{.LightLevel}}</td></tr>
{{end}}</table>{{end}}

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/config">Configure</a> &middot; <a href="/index.json">JSON</a></p>
</body>
</html>
`))

var configTmpl = template.Must(template.New("config").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Lamp Control - Settings</title>
` + styleHTML + `
</head>
<body>
<h1>Settings</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="POST" action="/config">
<table>
<tr><th><label for="dark_threshold">Dark level</label></th>
<td><input type="number" id="dark_threshold" name="dark_threshold" min="1" max="100" step="1" value="{{.Settings.DarkThreshold}}"> (1..100, dark at or below)</td></tr>
<tr><th><label for="stable_ticks">Delay switch seconds</label></th>
<td><input type="number" id="stable_ticks" name="stable_ticks" min="1" max="100" step="1" value="{{.Settings.StableTicks}}"> (1..100)</td></tr>
</table>
<p><button type="submit">Save &amp; restart</button></p>
</form>
<table>
<tr><th>Broker</th><td>{{.Broker}}</td></tr>
<tr><th>Poll interval</th><td>{{.PollInterval}}</td></tr>
</table>
<p>Saving restarts the controller to apply the new values.</p>
<p><a href="/">Back to status</a></p>
</body>
</html>
`))

var savedTmpl = template.Must(template.New("saved").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5;url=/">
<title>Lamp Control - Saved</title>
` + styleHTML + `
</head>
<body>
<h1>Configuration saved</h1>
<p>Dark level {{.DarkThreshold}}, delay {{.StableTicks}} seconds.</p>
<p>The controller is restarting; this page returns to the status view in a few seconds.</p>
</body>
</html>
`))

func renderIndex(w io.Writer, snap status.Snapshot, recent []store.Entry) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Recent []store.Entry
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Recent:   recent,
	}
	indexTmpl.Execute(w, data)
}

func renderConfig(w io.Writer, cfg *config.Config, errMsg string) {
	configTmpl.Execute(w, struct {
		Settings     config.Settings
		Broker       string
		PollInterval time.Duration
		Error        string
	}{
		Settings:     cfg.Settings,
		Broker:       cfg.MQTT.Broker,
		PollInterval: cfg.PollInterval.Duration(),
		Error:        errMsg,
	})
}

func renderSaved(w io.Writer, settings config.Settings) {
	savedTmpl.Execute(w, settings)
}
