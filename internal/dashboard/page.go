package dashboard

import "html/template"

type pageData struct {
	Threshold float64
}

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ramwatch</title>
<style>
  body { background: #0A0A0F; color: #FFFFFF; font-family: ui-monospace, monospace; margin: 2rem; }
  h1 { color: #FF2E97; letter-spacing: .2em; }
  .card { background: #12121A; border: 1px solid #2A2A4A; border-radius: 8px; padding: 1rem 1.5rem; margin-bottom: 1rem; }
  .gauge { font-size: 3rem; }
  .muted { color: #6B6B8D; }
  .high { color: #FF0055; }
  .normal { color: #39FF14; }
  li { margin: .2rem 0; }
</style>
</head>
<body>
<h1>RAMWATCH</h1>
<div class="card">
  <div class="gauge" id="ram">--%</div>
  <div>status: <span id="status" class="muted">unknown</span></div>
  <div class="muted">threshold {{.Threshold}}% · high since <span id="since">-</span> · updated <span id="updated">-</span></div>
</div>
<div class="card">
  <div class="muted">top processes</div>
  <ol id="procs"></ol>
</div>
<div class="card">
  <div class="muted">events</div>
  <ul id="events"></ul>
</div>
<script>
const threshold = {{.Threshold}};
function time(s) { return s ? new Date(s).toLocaleTimeString() : '-'; }
function procs(list) {
  const ol = document.getElementById('procs');
  ol.innerHTML = '';
  (list || []).forEach(p => {
    const li = document.createElement('li');
    li.textContent = p.name + ': ' + p.percent.toFixed(1) + '%';
    ol.appendChild(li);
  });
}
function refresh() {
  fetch('/api/status').then(r => r.json()).then(d => {
    const ram = document.getElementById('ram');
    ram.textContent = d.ram_percent.toFixed(1) + '%';
    ram.className = 'gauge ' + (d.ram_percent >= threshold ? 'high' : 'normal');
    const st = document.getElementById('status');
    st.textContent = d.status;
    st.className = d.status;
    document.getElementById('since').textContent = time(d.high_since);
    document.getElementById('updated').textContent = time(d.updated_at);
    procs(d.top_processes);
  }).catch(() => { document.getElementById('ram').textContent = '??'; });
}
function stream() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = m => {
    const ev = JSON.parse(m.data);
    const li = document.createElement('li');
    li.textContent = time(ev.timestamp) + '  ' + ev.type + '  ' + ev.ram_percent.toFixed(1) + '%';
    const ul = document.getElementById('events');
    ul.insertBefore(li, ul.firstChild);
    while (ul.children.length > 20) ul.removeChild(ul.lastChild);
    refresh();
  };
  ws.onclose = () => setTimeout(stream, 5000);
}
refresh();
stream();
setInterval(refresh, 5000);
</script>
</body>
</html>
`))
