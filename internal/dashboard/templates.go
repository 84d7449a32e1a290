package dashboard

import "html/template"

const styleBlock = `<style>
*{margin:0;padding:0;box-sizing:border-box}
:root{
  --bg:#0b0e14;--surface:#131722;--border:#232a3b;
  --text:#dde3f0;--text2:#8591ad;--text3:#566080;
  --accent:#3b82f6;--danger:#ef4444;--success:#22c55e;--warn:#f59e0b;
  --mono:'SF Mono','Fira Code','JetBrains Mono',monospace;
  --sans:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;
}
body{font-family:var(--sans);background:var(--bg);color:var(--text);padding:32px;max-width:1100px;margin:0 auto}
h1{font-family:var(--mono);font-size:1.3rem;margin-bottom:4px}
h1 span{color:var(--accent)}
.nav{margin:16px 0 28px;color:var(--text3);font-size:0.85rem}
.nav a{color:var(--text2);text-decoration:none;margin-right:16px}
.nav a:hover{color:var(--text)}
.cards{display:flex;gap:16px;flex-wrap:wrap;margin-bottom:28px}
.card{background:var(--surface);border:1px solid var(--border);border-radius:10px;padding:20px 24px;min-width:160px}
.card .label{color:var(--text2);font-size:0.75rem;text-transform:uppercase;letter-spacing:1px}
.card .value{font-family:var(--mono);font-size:1.8rem;margin-top:6px}
.ok{color:var(--success)}.bad{color:var(--danger)}.warn{color:var(--warn)}
table{width:100%;border-collapse:collapse;background:var(--surface);border:1px solid var(--border);border-radius:10px;overflow:hidden}
th,td{padding:10px 14px;text-align:left;font-size:0.83rem;border-bottom:1px solid var(--border)}
th{color:var(--text2);text-transform:uppercase;font-size:0.7rem;letter-spacing:1px}
td.mono{font-family:var(--mono);font-size:0.76rem;color:var(--text2)}
.empty{color:var(--text3);padding:28px;text-align:center}
</style>`

var loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>clearsettle — dashboard</title>
` + styleBlock + `
</head>
<body>
<div style="max-width:380px;margin:15vh auto;text-align:center" class="card">
  <h1>clear<span>settle</span></h1>
  <p style="color:var(--text2);font-size:0.85rem;margin:12px 0 24px">Enter the access code shown in your terminal.<br>Run <code>clearsettle serve</code> to get a code.</p>
  <form method="POST" action="/dashboard/login" autocomplete="off">
    <input type="text" name="code" placeholder="00000000" maxlength="8" pattern="\d{8}" inputmode="numeric" autofocus required
      style="width:100%;padding:12px;background:var(--bg);border:1px solid var(--border);border-radius:8px;color:var(--text);font-family:var(--mono);font-size:1.1rem;text-align:center;letter-spacing:4px">
    <button type="submit" style="width:100%;padding:12px;margin-top:14px;background:var(--accent);color:#fff;border:none;border-radius:8px;font-weight:600;cursor:pointer">Authenticate</button>
  </form>
  {{if .Error}}<p class="bad" style="margin-top:12px;font-size:0.8rem">{{.Error}}</p>{{end}}
</div>
</body>
</html>`))

const navBlock = `<div class="nav">
  <a href="/dashboard">Overview</a>
  <a href="/dashboard/anomalies">Anomalies</a>
  <a href="/dashboard/audit">Audit chain</a>
</div>`

var overviewTmpl = template.Must(template.New("overview").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>clearsettle — overview</title>` + styleBlock + `</head>
<body>
<h1>clear<span>settle</span></h1>
` + navBlock + `
<div class="cards">
  <div class="card"><div class="label">Settlements</div><div class="value">{{.Settlements}}</div></div>
  <div class="card"><div class="label">Flagged</div><div class="value {{if .Flagged}}warn{{end}}">{{.Flagged}}</div></div>
  <div class="card"><div class="label">Failed status</div><div class="value">{{.Failed}}</div></div>
  <div class="card"><div class="label">Audit entries</div><div class="value">{{.AuditEntries}}</div></div>
  <div class="card"><div class="label">Chain</div>
    {{if .ChainOK}}<div class="value ok">intact</div>{{else}}<div class="value bad">broken</div>{{end}}
  </div>
</div>
{{if not .ChainOK}}<p class="bad" style="font-size:0.85rem">{{.ChainReason}}</p>{{end}}
</body>
</html>`))

var anomaliesTmpl = template.Must(template.New("anomalies").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>clearsettle — anomalies</title>` + styleBlock + `</head>
<body>
<h1>clear<span>settle</span></h1>
` + navBlock + `
{{if not .}}<div class="empty">No settlements flagged.</div>{{else}}
<table>
  <tr><th>Transaction</th><th>Status</th><th>ISIN</th><th>Score</th><th>Recommendation</th></tr>
  {{range .}}
  <tr>
    <td class="mono">{{.TransactionID}}</td>
    <td>{{.Status}}</td>
    <td class="mono">{{.ISIN}}</td>
    <td class="mono">{{printf "%.4g" .AnomalyScore}}</td>
    <td>{{.Recommendation}}</td>
  </tr>
  {{end}}
</table>
{{end}}
</body>
</html>`))

var auditTmpl = template.Must(template.New("audit").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>clearsettle — audit chain</title>` + styleBlock + `</head>
<body>
<h1>clear<span>settle</span></h1>
` + navBlock + `
{{if not .}}<div class="empty">Audit log is empty.</div>{{else}}
<table>
  <tr><th>Time</th><th>Transaction</th><th>Action</th><th>Actor</th><th>Hash</th><th>Prev</th></tr>
  {{range .}}
  <tr>
    <td class="mono">{{.Timestamp}}</td>
    <td class="mono">{{.TransactionID}}</td>
    <td>{{.Action}}</td>
    <td>{{.Actor}}</td>
    <td class="mono">{{printf "%.8s" .Hash}}</td>
    <td class="mono">{{printf "%.8s" .PreviousHash}}</td>
  </tr>
  {{end}}
</table>
{{end}}
</body>
</html>`))
